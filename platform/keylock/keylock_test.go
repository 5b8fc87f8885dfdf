package keylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireSerializesSameKey(t *testing.T) {
	l := New()

	release, err := l.Acquire(context.Background(), "job:1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := l.Acquire(context.Background(), "job:1")
		if err != nil {
			return
		}
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire never succeeded after release")
	}
}

func TestAcquireDifferentKeysDoNotBlock(t *testing.T) {
	l := New()

	releaseA, err := l.Acquire(context.Background(), "job:1")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	releaseB, err := l.Acquire(ctx, "job:2")
	require.NoError(t, err)
	releaseB()
}

func TestAcquireHonorsContextDeadline(t *testing.T) {
	l := New()

	release, err := l.Acquire(context.Background(), "job:1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, "job:1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReleaseIsIdempotent(t *testing.T) {
	l := New()

	release, err := l.Acquire(context.Background(), "job:1")
	require.NoError(t, err)
	release()
	release()

	again, err := l.Acquire(context.Background(), "job:1")
	require.NoError(t, err)
	again()
}

func TestAcquireProtectsSharedState(t *testing.T) {
	l := New()

	const workers = 32
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "pool:global")
			if err != nil {
				return
			}
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestEntriesAreReclaimed(t *testing.T) {
	l := New()

	release, err := l.Acquire(context.Background(), "job:1")
	require.NoError(t, err)
	release()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.entries)
}
