// internal/handler/event_bus.go
package handler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"kitchen-print-service/internal/printer"
)

// EventBus decouples printer clients from slow event consumers. Publish
// never blocks; events are dropped when the buffer is full.
type EventBus struct {
	subscribers []subscription
	events      chan printer.Event
	mutex       sync.RWMutex
	logger      *zap.Logger
}

type subscription struct {
	types map[printer.EventType]bool
	ch    chan printer.Event
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		events: make(chan printer.Event, 1000),
		logger: logger.With(zap.String("component", "event-bus")),
	}
}

// Start distributes events until ctx is done, then closes every subscriber channel
func (eb *EventBus) Start(ctx context.Context) {
	defer eb.closeSubscribers()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eb.events:
			eb.distributeEvent(event)
		}
	}
}

// Publish publishes an event. It satisfies printer.EventHandler.
func (eb *EventBus) Publish(event printer.Event) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("printer_id", event.PrinterID),
		)
	}
}

// Subscribe returns a channel receiving events of the given types, or of
// every type when none are given
func (eb *EventBus) Subscribe(types ...printer.EventType) <-chan printer.Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	sub := subscription{ch: make(chan printer.Event, 100)}
	if len(types) > 0 {
		sub.types = make(map[printer.EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	eb.subscribers = append(eb.subscribers, sub)
	return sub.ch
}

func (eb *EventBus) distributeEvent(event printer.Event) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, sub := range eb.subscribers {
		if sub.types != nil && !sub.types[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// slow subscriber
		}
	}
}

func (eb *EventBus) closeSubscribers() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	for _, sub := range eb.subscribers {
		close(sub.ch)
	}
	eb.subscribers = nil
}
