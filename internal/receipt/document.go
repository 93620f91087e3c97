// internal/receipt/document.go

// Package receipt turns kitchen orders into vendor-neutral print documents.
package receipt

// TextSize selects character magnification
type TextSize int

const (
	SizeNormal TextSize = iota
	SizeDoubleHeight
	SizeDoubleWidth
)

// Alignment selects line justification
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// CutKind selects how the paper is cut
type CutKind int

const (
	CutFull CutKind = iota
	CutPartial
)

// Op is one unit of receipt content
type Op interface {
	isOp()
}

// TextOp prints one line of text
type TextOp struct {
	Text      string
	Bold      bool
	Underline bool
	Size      TextSize
	Align     Alignment
}

// LineFeedOp advances the paper by Count lines
type LineFeedOp struct {
	Count int
}

// SeparatorOp prints a dashed rule. A zero Width spans the full paper width.
type SeparatorOp struct {
	Width int
}

// CutOp cuts the paper
type CutOp struct {
	Kind CutKind
}

func (TextOp) isOp()      {}
func (LineFeedOp) isOp()  {}
func (SeparatorOp) isOp() {}
func (CutOp) isOp()       {}

// Document is an ordered sequence of ops
type Document []Op

// Text returns a plain left-aligned text op
func Text(s string) TextOp {
	return TextOp{Text: s}
}

// Lines returns the text of every TextOp in order
func (d Document) Lines() []string {
	var lines []string
	for _, op := range d {
		if t, ok := op.(TextOp); ok {
			lines = append(lines, t.Text)
		}
	}
	return lines
}
