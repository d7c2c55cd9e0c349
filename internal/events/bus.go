package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(SessionStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	// Use type switch to call the generic Publish with the correct type
	switch e := ev.(type) {
	case SessionStartedEvent:
		event.Publish(b.dispatcher, e)
	case SessionFinishedEvent:
		event.Publish(b.dispatcher, e)
	case SessionStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case OverrunEvent:
		event.Publish(b.dispatcher, e)
	case FlushEvent:
		event.Publish(b.dispatcher, e)
	case SessionMetricsEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives (type inference)
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e SessionStartedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	// The kelindar/event library uses the handler's parameter type to route
	// events, so dispatch by asserting against each known signature.
	switch h := handler.(type) {
	case func(SessionStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(OverrunEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FlushEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
