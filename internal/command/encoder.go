// internal/command/encoder.go
package command

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"kitchen-print-service/internal/model"
	"kitchen-print-service/internal/receipt"
)

// ErrEmptyDocument is returned when there is nothing to encode
var ErrEmptyDocument = errors.New("receipt document is empty")

const separatorChar = "-"

// Encoder serializes receipt documents for one printer
type Encoder struct {
	set       *CommandSet
	lineWidth int
	codePage  []byte
}

// NewEncoder creates an encoder for a family, line width in characters and character set
func NewEncoder(family model.CommandFamily, lineWidth int, charset string) (*Encoder, error) {
	set, err := Lookup(family)
	if err != nil {
		return nil, err
	}
	if lineWidth <= 0 {
		return nil, model.NewConfigurationError("paper_width", "paper width must be positive, got %d", lineWidth)
	}
	codePage, err := set.CodePage(charset)
	if err != nil {
		return nil, err
	}

	return &Encoder{
		set:       set,
		lineWidth: lineWidth,
		codePage:  codePage,
	}, nil
}

// NewProfileEncoder creates an encoder configured from a device profile
func NewProfileEncoder(profile model.DeviceProfile) (*Encoder, error) {
	return NewEncoder(profile.CommandSet, profile.PaperWidth, profile.CharacterSet)
}

// Encode serializes a document with the default character set
func Encode(doc receipt.Document, family model.CommandFamily, lineWidth int) ([]byte, error) {
	enc, err := NewEncoder(family, lineWidth, model.DefaultCharacterSet)
	if err != nil {
		return nil, err
	}
	return enc.Encode(doc)
}

// Family returns the encoder's command family
func (e *Encoder) Family() model.CommandFamily {
	return e.set.Family
}

// Encode serializes the document. The output always starts with the
// initialization sequence and always ends with a cut.
func (e *Encoder) Encode(doc receipt.Document) ([]byte, error) {
	if len(doc) == 0 {
		return nil, ErrEmptyDocument
	}

	var buf bytes.Buffer
	buf.Write(e.set.Initialize)
	buf.Write(e.codePage)

	endsWithCut := false
	for i, op := range doc {
		endsWithCut = false

		switch v := op.(type) {
		case receipt.TextOp:
			e.writeText(&buf, v)
		case receipt.LineFeedOp:
			for n := 0; n < v.Count; n++ {
				buf.Write(e.set.LineFeed)
			}
		case receipt.SeparatorOp:
			e.writeSeparator(&buf, v)
		case receipt.CutOp:
			buf.Write(e.set.Cut(v.Kind == receipt.CutPartial))
			endsWithCut = true
		default:
			return nil, fmt.Errorf("unsupported receipt op %T at position %d", op, i)
		}
	}

	if !endsWithCut {
		buf.Write(e.set.FullCut)
	}

	return buf.Bytes(), nil
}

// writeText emits the on codes, the text, then the matching off codes so no
// formatting state survives into the next op
func (e *Encoder) writeText(buf *bytes.Buffer, op receipt.TextOp) {
	switch op.Align {
	case receipt.AlignCenter:
		buf.Write(e.set.AlignCenter)
	case receipt.AlignRight:
		buf.Write(e.set.AlignRight)
	}
	if op.Bold {
		buf.Write(e.set.BoldOn)
	}
	if op.Underline {
		buf.Write(e.set.UnderlineOn)
	}
	switch op.Size {
	case receipt.SizeDoubleHeight:
		buf.Write(e.set.DoubleHeightOn)
	case receipt.SizeDoubleWidth:
		buf.Write(e.set.DoubleWidthOn)
	}

	// Text goes out verbatim; no code page translation happens here.
	buf.WriteString(op.Text)

	if op.Size != receipt.SizeNormal {
		buf.Write(e.set.TextSizeNormal)
	}
	if op.Underline {
		buf.Write(e.set.UnderlineOff)
	}
	if op.Bold {
		buf.Write(e.set.BoldOff)
	}

	buf.Write(e.set.LineFeed)

	if op.Align != receipt.AlignLeft {
		buf.Write(e.set.AlignLeft)
	}
}

func (e *Encoder) writeSeparator(buf *bytes.Buffer, op receipt.SeparatorOp) {
	width := e.lineWidth
	if op.Width > 0 && op.Width < width {
		width = op.Width
	}
	buf.WriteString(strings.Repeat(separatorChar, width))
	buf.Write(e.set.LineFeed)
}
