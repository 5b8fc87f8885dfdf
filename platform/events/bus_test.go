package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"measurehub_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvent struct {
	BaseEvent
	name string
}

func (e stubEvent) EventName() string { return e.name }

func newStubEvent(name string) stubEvent {
	return stubEvent{BaseEvent: NewBaseEvent(), name: name}
}

func TestPublishSyncRunsHandlersInOrder(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	var calls []string
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, e Event) error {
		calls = append(calls, "first")
		return nil
	}))
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, e Event) error {
		calls = append(calls, "second")
		return nil
	}))

	err := bus.PublishSync(context.Background(), newStubEvent("thing.happened"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestPublishSyncJoinsHandlerErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	wantErr := errors.New("handler broke")
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, e Event) error {
		return wantErr
	}))
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, e Event) error {
		return nil
	}))

	err := bus.PublishSync(context.Background(), newStubEvent("thing.happened"))
	require.ErrorIs(t, err, wantErr)
}

func TestPublishSyncWithoutHandlers(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))
	err := bus.PublishSync(context.Background(), newStubEvent("nobody.listens"))
	assert.NoError(t, err)
}

func TestPublishRunsHandlersAsync(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	done := make(chan string, 1)
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, e Event) error {
		done <- e.EventName()
		return nil
	}))

	bus.Publish(context.Background(), newStubEvent("thing.happened"))

	select {
	case name := <-done:
		assert.Equal(t, "thing.happened", name)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestPublishSurvivesPanickingHandler(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	done := make(chan struct{}, 1)
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, e Event) error {
		panic("boom")
	}))
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, e Event) error {
		done <- struct{}{}
		return nil
	}))

	bus.Publish(context.Background(), newStubEvent("thing.happened"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler was not invoked")
	}
}

func TestPublishDetachesFromCallerContext(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	done := make(chan error, 1)
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, e Event) error {
		done <- ctx.Err()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, newStubEvent("thing.happened"))

	select {
	case err := <-done:
		assert.NoError(t, err, "handler context should not inherit cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}
