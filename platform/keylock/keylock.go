// Package keylock provides per-key mutual exclusion with context-aware
// acquisition. This is part of the platform layer and contains no business
// logic.
package keylock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// KeyLock serializes work per string key. Keys that nobody holds or waits on
// consume no memory.
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{entries: make(map[string]*entry)}
}

// Acquire blocks until the key's lock is held or ctx is done. On success the
// returned release function must be called when the critical section ends;
// calling it more than once is safe.
func (l *KeyLock) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.unref(key, e)
		return nil, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			e.sem.Release(1)
			l.unref(key, e)
		})
	}
	return release, nil
}

func (l *KeyLock) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}
