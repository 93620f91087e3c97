// internal/receipt/renderer.go
package receipt

import (
	"fmt"
	"strings"
	"time"

	"kitchen-print-service/internal/model"
)

const (
	DefaultHeader     = "KITCHEN ORDER"
	OrderTimeLayout   = "2006-01-02 15:04"
	PrintedTimeLayout = "2006-01-02 15:04:05"

	itemIndent = "  "
)

// Renderer builds kitchen tickets. It never sees a device profile.
type Renderer struct {
	header string
	now    func() time.Time
}

// Option configures a Renderer
type Option func(*Renderer)

// WithHeader overrides the banner printed at the top of every ticket
func WithHeader(header string) Option {
	return func(r *Renderer) {
		r.header = header
	}
}

// WithClock overrides the clock used for the "Printed:" footer
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		r.now = now
	}
}

// NewRenderer creates a renderer
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		header: DefaultHeader,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render renders the order stamped with the renderer clock
func (r *Renderer) Render(order *model.KitchenOrder) Document {
	return r.RenderAt(order, r.now())
}

// RenderAt renders the order with an explicit print time. The result depends
// only on its arguments.
func (r *Renderer) RenderAt(order *model.KitchenOrder, printedAt time.Time) Document {
	b := &builder{}

	b.banner(r.header)

	b.line(fmt.Sprintf("Order #: %s", order.OrderNumber))
	b.line(fmt.Sprintf("Time: %s", order.Timestamp.Format(OrderTimeLayout)))
	b.line(fmt.Sprintf("Type: %s", strings.ToUpper(string(order.OrderType))))
	if order.TableNumber != "" {
		b.line(fmt.Sprintf("Table: %s", order.TableNumber))
	}
	if order.CustomerName != "" {
		b.line(fmt.Sprintf("Customer: %s", order.CustomerName))
	}
	if order.ServerName != "" {
		b.line(fmt.Sprintf("Server: %s", order.ServerName))
	}
	b.separator()

	if order.Priority.IsElevated() {
		b.banner(fmt.Sprintf("%s ORDER", strings.ToUpper(string(order.Priority))))
		b.separator()
	}

	b.bold("ITEMS")
	for i, item := range order.Items {
		b.bold(fmt.Sprintf("%dx %s", item.Quantity, item.Name))
		for _, modifier := range item.Modifiers {
			b.line(itemIndent + "+ " + modifier)
		}
		if item.Notes != "" {
			b.line(itemIndent + "NOTE: " + item.Notes)
		}
		if i < len(order.Items)-1 {
			b.feed(1)
		}
	}

	if order.SpecialInstructions != "" {
		b.separator()
		b.bold("SPECIAL INSTRUCTIONS")
		b.line(order.SpecialInstructions)
	}

	b.separator()
	b.add(TextOp{Text: "Printed: " + printedAt.Format(PrintedTimeLayout), Align: AlignCenter})
	b.feed(2)
	b.add(CutOp{Kind: CutFull})

	return b.doc
}

// Render renders with a default renderer at the given time
func Render(order *model.KitchenOrder, printedAt time.Time) Document {
	return NewRenderer().RenderAt(order, printedAt)
}

type builder struct {
	doc Document
}

func (b *builder) add(op Op) {
	b.doc = append(b.doc, op)
}

func (b *builder) banner(text string) {
	b.add(TextOp{Text: text, Bold: true, Size: SizeDoubleHeight, Align: AlignCenter})
}

func (b *builder) line(text string) {
	b.add(TextOp{Text: text})
}

func (b *builder) bold(text string) {
	b.add(TextOp{Text: text, Bold: true})
}

func (b *builder) separator() {
	b.add(SeparatorOp{})
}

func (b *builder) feed(n int) {
	b.add(LineFeedOp{Count: n})
}
