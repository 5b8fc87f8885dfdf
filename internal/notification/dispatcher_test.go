package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"measurehub_backend/internal/telegram"
	"measurehub_backend/platform/logger"
)

type testNotificationConfig struct {
	sendTimeout time.Duration
}

func (c testNotificationConfig) GetNotificationSendTimeout() time.Duration {
	if c.sendTimeout == 0 {
		return time.Second
	}
	return c.sendTimeout
}
func (c testNotificationConfig) GetReservationMaxAge() time.Duration { return 10 * time.Minute }
func (c testNotificationConfig) GetJanitorInterval() time.Duration   { return time.Minute }

type storedRow struct {
	key       string
	chatID    int64
	messageID int64
	sent      bool
	createdAt time.Time
}

// memoryStore is an in-memory Store with the same dedup semantics as the
// notifications table.
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*storedRow
	keys   map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[int64]*storedRow), keys: make(map[string]int64)}
}

func dedupKey(measurementID int64, notificationType string, recipientID int64) string {
	return fmt.Sprintf("%d|%s|%d", measurementID, notificationType, recipientID)
}

func (s *memoryStore) Reserve(_ context.Context, measurementID int64, notificationType string, recipientID int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey(measurementID, notificationType, recipientID)
	if _, exists := s.keys[key]; exists {
		return 0, false, nil
	}
	s.nextID++
	s.rows[s.nextID] = &storedRow{key: key, createdAt: time.Now()}
	s.keys[key] = s.nextID
	return s.nextID, true, nil
}

func (s *memoryStore) Finalize(_ context.Context, reservationID, chatID, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[reservationID]
	if !ok {
		return errors.New("reservation vanished")
	}
	row.chatID = chatID
	row.messageID = messageID
	row.sent = true
	return nil
}

func (s *memoryStore) DeleteReservation(_ context.Context, reservationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[reservationID]
	if !ok || row.sent {
		return nil
	}
	delete(s.keys, row.key)
	delete(s.rows, reservationID)
	return nil
}

func (s *memoryStore) ReleaseStale(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released int64
	for id, row := range s.rows {
		if !row.sent && row.createdAt.Before(cutoff) {
			delete(s.keys, row.key)
			delete(s.rows, id)
			released++
		}
	}
	return released, nil
}

func (s *memoryStore) countRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func newTestDispatcher(store Store, timeout time.Duration) *Dispatcher {
	return NewDispatcher(store, testNotificationConfig{sendTimeout: timeout}, logger.New("development"))
}

func okSend(delivery telegram.Delivery, calls *int) SendFunc {
	return func(context.Context) (telegram.Delivery, error) {
		*calls++
		return delivery, nil
	}
}

func TestDispatchSendsAndFinalizes(t *testing.T) {
	store := newMemoryStore()
	d := newTestDispatcher(store, time.Second)

	var calls int
	result, err := d.Dispatch(context.Background(), 1, TypeAssigned, 7, okSend(telegram.Delivery{ChatID: 77, MessageID: 5}, &calls))
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if result.Status != StatusSent {
		t.Fatalf("status = %q, want %q", result.Status, StatusSent)
	}
	if calls != 1 {
		t.Fatalf("sendFn called %d times, want 1", calls)
	}

	row := store.rows[1]
	if !row.sent || row.chatID != 77 || row.messageID != 5 {
		t.Fatalf("stored row = %+v, want finalized with handle {77 5}", row)
	}
}

func TestDispatchSecondIdenticalCallIsAlreadySent(t *testing.T) {
	store := newMemoryStore()
	d := newTestDispatcher(store, time.Second)

	var calls int
	send := okSend(telegram.Delivery{ChatID: 77, MessageID: 5}, &calls)

	if _, err := d.Dispatch(context.Background(), 1, TypeAssigned, 7, send); err != nil {
		t.Fatalf("first Dispatch returned error: %v", err)
	}
	result, err := d.Dispatch(context.Background(), 1, TypeAssigned, 7, send)
	if err != nil {
		t.Fatalf("second Dispatch returned error: %v", err)
	}

	if result.Status != StatusAlreadySent {
		t.Fatalf("second status = %q, want %q", result.Status, StatusAlreadySent)
	}
	if calls != 1 {
		t.Fatalf("sendFn called %d times across both dispatches, want 1", calls)
	}
}

func TestDispatchDistinguishesDedupKeyParts(t *testing.T) {
	store := newMemoryStore()
	d := newTestDispatcher(store, time.Second)
	ctx := context.Background()

	var calls int
	send := okSend(telegram.Delivery{}, &calls)

	cases := []struct {
		measurementID int64
		ntype         string
		recipientID   int64
	}{
		{1, TypeAssigned, 7},
		{2, TypeAssigned, 7},
		{1, TypeConfirmed, 7},
		{1, TypeAssigned, 8},
	}
	for _, tc := range cases {
		result, err := d.Dispatch(ctx, tc.measurementID, tc.ntype, tc.recipientID, send)
		if err != nil {
			t.Fatalf("Dispatch(%+v) returned error: %v", tc, err)
		}
		if result.Status != StatusSent {
			t.Fatalf("Dispatch(%+v) = %q, want sent (distinct key)", tc, result.Status)
		}
	}
	if calls != len(cases) {
		t.Fatalf("sendFn called %d times, want %d", calls, len(cases))
	}
}

func TestDispatchSendFailureRollsBackReservation(t *testing.T) {
	store := newMemoryStore()
	d := newTestDispatcher(store, time.Second)
	ctx := context.Background()

	failing := func(context.Context) (telegram.Delivery, error) {
		return telegram.Delivery{}, errors.New("chat not found")
	}
	result, err := d.Dispatch(ctx, 1, TypeAssigned, 7, failing)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if result.Status != StatusSendFailed {
		t.Fatalf("status = %q, want %q", result.Status, StatusSendFailed)
	}
	if result.Error == "" {
		t.Fatal("failed result carries no error text")
	}
	if store.countRows() != 0 {
		t.Fatalf("reservation not rolled back, %d rows left", store.countRows())
	}

	// The rollback must let a retry through.
	var calls int
	retry, err := d.Dispatch(ctx, 1, TypeAssigned, 7, okSend(telegram.Delivery{ChatID: 77, MessageID: 9}, &calls))
	if err != nil {
		t.Fatalf("retry Dispatch returned error: %v", err)
	}
	if retry.Status != StatusSent || calls != 1 {
		t.Fatalf("retry = %q with %d calls, want sent with 1 call", retry.Status, calls)
	}
}

func TestDispatchTimeoutCountsAsSendFailed(t *testing.T) {
	store := newMemoryStore()
	d := newTestDispatcher(store, 20*time.Millisecond)

	blocked := func(ctx context.Context) (telegram.Delivery, error) {
		<-ctx.Done()
		return telegram.Delivery{}, ctx.Err()
	}
	result, err := d.Dispatch(context.Background(), 1, TypeAssigned, 7, blocked)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if result.Status != StatusSendFailed {
		t.Fatalf("status = %q, want %q", result.Status, StatusSendFailed)
	}
	if store.countRows() != 0 {
		t.Fatal("timed-out reservation was not rolled back")
	}
}

func TestDispatchConcurrentDuplicatesSendOnce(t *testing.T) {
	store := newMemoryStore()
	d := newTestDispatcher(store, time.Second)

	var mu sync.Mutex
	var calls int
	send := func(context.Context) (telegram.Delivery, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return telegram.Delivery{ChatID: 77, MessageID: 1}, nil
	}

	var wg sync.WaitGroup
	statuses := make([]DispatchStatus, 8)
	for i := 0; i < len(statuses); i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			result, err := d.Dispatch(context.Background(), 1, TypeAssigned, 7, send)
			if err != nil {
				t.Errorf("Dispatch returned error: %v", err)
				return
			}
			statuses[slot] = result.Status
		}(i)
	}
	wg.Wait()

	var sent, already int
	for _, s := range statuses {
		switch s {
		case StatusSent:
			sent++
		case StatusAlreadySent:
			already++
		}
	}
	if sent != 1 || already != len(statuses)-1 {
		t.Fatalf("sent=%d already=%d, want exactly one send", sent, already)
	}
	if calls != 1 {
		t.Fatalf("sendFn called %d times, want 1", calls)
	}
}

func TestReleaseStaleClearsOnlyUnsentReservations(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	oldID, _, _ := store.Reserve(ctx, 1, TypeAssigned, 7)
	store.rows[oldID].createdAt = time.Now().Add(-time.Hour)

	sentID, _, _ := store.Reserve(ctx, 1, TypeAssigned, 8)
	store.rows[sentID].createdAt = time.Now().Add(-time.Hour)
	if err := store.Finalize(ctx, sentID, 88, 2); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}

	released, err := store.ReleaseStale(ctx, time.Now().Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("ReleaseStale returned error: %v", err)
	}
	if released != 1 {
		t.Fatalf("released %d reservations, want 1", released)
	}
	if _, exists := store.rows[sentID]; !exists {
		t.Fatal("ReleaseStale deleted a finalized notification")
	}
}
