// Package events provides the in-process event bus the modules decouple
// through. It carries no business logic.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName uniquely identifies the event type and is the subscription
	// key.
	EventName() string
	// OccurredAt is when the event happened.
	OccurredAt() time.Time
}

// BaseEvent supplies the timestamp field events embed.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt is when the event happened.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events it subscribed to.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus routes published events to subscribed handlers.
type Bus interface {
	// Publish fans the event out to its handlers asynchronously. Handlers
	// run on a context detached from the caller, so publishing from a
	// finished HTTP request is safe.
	Publish(ctx context.Context, event Event)

	// PublishSync runs handlers in subscription order and joins their
	// errors.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under the event name; the name must
	// match Event.EventName() of the published value.
	Subscribe(eventName string, handler Handler)
}
