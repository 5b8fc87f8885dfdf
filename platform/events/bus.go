package events

import (
	"context"
	"errors"
	"sync"

	"measurehub_backend/platform/logger"
)

// InMemoryBus dispatches events to handlers within the same process.
type InMemoryBus struct {
	log      *logger.Logger
	mu       sync.RWMutex
	handlers map[string][]Handler
}

var _ Bus = (*InMemoryBus)(nil)

// NewInMemoryBus creates an empty in-process event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		log:      log,
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish runs each handler in its own goroutine. Handlers receive a context
// detached from the caller so a finished HTTP request does not cancel them.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	handlers := b.handlersFor(event.EventName())
	if len(handlers) == 0 {
		return
	}

	detached := context.WithoutCancel(ctx)
	for _, h := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event handler panicked",
						"event", event.EventName(),
						"panic", r)
				}
			}()
			if err := h.Handle(detached, event); err != nil {
				b.log.Error("event handler failed",
					"event", event.EventName(),
					"error", err)
			}
		}(h)
	}
}

// PublishSync runs handlers in subscription order and joins their errors.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	var errs []error
	for _, h := range b.handlersFor(event.EventName()) {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *InMemoryBus) handlersFor(eventName string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]Handler, len(b.handlers[eventName]))
	copy(handlers, b.handlers[eventName])
	return handlers
}
