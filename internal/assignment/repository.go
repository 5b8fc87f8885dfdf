package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Cursor is the persisted round-robin position of one pool.
type Cursor struct {
	PoolKey            string
	LastAssignedUserID *int64
	AssignCount        int64
	UpdatedAt          time.Time
}

// CursorStore persists round-robin cursors across restarts.
type CursorStore interface {
	// GetCursor loads the cursor for a pool. A missing row is (Cursor{}, false, nil).
	GetCursor(ctx context.Context, poolKey string) (Cursor, bool, error)
	// AdvanceCursor records userID as the pool's last assignment and bumps the
	// assignment counter.
	AdvanceCursor(ctx context.Context, poolKey string, userID int64) error
}

// CursorRepo implements CursorStore with PostgreSQL.
type CursorRepo struct {
	pool *pgxpool.Pool
}

// NewCursorRepo creates a new cursor repository.
func NewCursorRepo(pool *pgxpool.Pool) *CursorRepo {
	return &CursorRepo{pool: pool}
}

var _ CursorStore = (*CursorRepo)(nil)

// GetCursor loads the cursor row for a pool.
func (r *CursorRepo) GetCursor(ctx context.Context, poolKey string) (Cursor, bool, error) {
	query := `
		SELECT pool_key, last_assigned_user_id, assign_count, updated_at
		FROM round_robin_cursors
		WHERE pool_key = $1`

	var c Cursor
	err := r.pool.QueryRow(ctx, query, poolKey).Scan(
		&c.PoolKey, &c.LastAssignedUserID, &c.AssignCount, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cursor{}, false, nil
		}
		return Cursor{}, false, fmt.Errorf("get cursor: %w", err)
	}
	return c, true, nil
}

// AdvanceCursor upserts the pool cursor to point at userID.
func (r *CursorRepo) AdvanceCursor(ctx context.Context, poolKey string, userID int64) error {
	query := `
		INSERT INTO round_robin_cursors (pool_key, last_assigned_user_id, assign_count, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (pool_key) DO UPDATE
		SET last_assigned_user_id = EXCLUDED.last_assigned_user_id,
		    assign_count = round_robin_cursors.assign_count + 1,
		    updated_at = now()`

	if _, err := r.pool.Exec(ctx, query, poolKey, userID); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}
