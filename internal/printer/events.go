// internal/printer/events.go
package printer

import "time"

// EventType names a client lifecycle change
type EventType string

const (
	EventAdded         EventType = "printer.added"
	EventRemoved       EventType = "printer.removed"
	EventConnected     EventType = "printer.connected"
	EventConnectFailed EventType = "printer.connect_failed"
	EventDisconnected  EventType = "printer.disconnected"
	EventPrinted       EventType = "printer.printed"
	EventPrintFailed   EventType = "printer.print_failed"
)

// Event reports a change on one client together with its new status
type Event struct {
	Type      EventType `json:"type"`
	PrinterID string    `json:"printer_id"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// EventHandler receives client events. It is called synchronously and must not block.
type EventHandler func(Event)
