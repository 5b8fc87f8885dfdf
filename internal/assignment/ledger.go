package assignment

import (
	"context"
	"sort"

	"measurehub_backend/platform/keylock"
	"measurehub_backend/platform/logger"
)

// Ledger hands out pool members in round-robin order. The cursor is persisted
// per pool key, so fairness survives restarts; concurrent calls on the same
// pool serialize through a per-pool critical section.
type Ledger struct {
	store CursorStore
	locks *keylock.KeyLock
	log   *logger.Logger
}

// NewLedger creates a round-robin ledger over the given cursor store.
func NewLedger(store CursorStore, log *logger.Logger) *Ledger {
	return &Ledger{
		store: store,
		locks: keylock.New(),
		log:   log,
	}
}

// Next picks the pool member following the last assignment in ascending
// user-id order, wrapping to the smallest. A pool whose last-assigned user is
// no longer eligible, or that has no cursor yet, starts at the smallest
// member. The cursor is advanced before the pick is returned, so a crash after
// Next never replays the same member. An empty eligible set returns
// ErrNoEligibleMeasurer.
func (l *Ledger) Next(ctx context.Context, poolKey string, eligible []int64) (int64, error) {
	if len(eligible) == 0 {
		return 0, ErrNoEligibleMeasurer
	}

	release, err := l.locks.Acquire(ctx, poolKey)
	if err != nil {
		return 0, err
	}
	defer release()

	members := append([]int64(nil), eligible...)
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

	cursor, found, err := l.store.GetCursor(ctx, poolKey)
	if err != nil {
		return 0, err
	}

	pick := members[0]
	if found && cursor.LastAssignedUserID != nil {
		if idx := indexOf(members, *cursor.LastAssignedUserID); idx >= 0 {
			pick = members[(idx+1)%len(members)]
		}
	}

	if err := l.store.AdvanceCursor(ctx, poolKey, pick); err != nil {
		return 0, err
	}

	l.log.Info("round-robin pick", "pool", poolKey, "userId", pick, "poolSize", len(members))
	return pick, nil
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
