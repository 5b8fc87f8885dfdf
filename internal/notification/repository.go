package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists notification reservations and delivery handles.
type Store interface {
	// Reserve inserts a reservation row with no delivery handle. When the
	// (measurement, type, recipient) key already exists, whether delivered
	// earlier or reserved by a concurrent dispatch, created is false.
	Reserve(ctx context.Context, measurementID int64, notificationType string, recipientID int64) (reservationID int64, created bool, err error)
	// Finalize fills in the delivery handle after a successful send.
	Finalize(ctx context.Context, reservationID, chatID, messageID int64) error
	// DeleteReservation rolls back a reservation whose send failed. Finalized
	// rows are never deleted.
	DeleteReservation(ctx context.Context, reservationID int64) error
	// ReleaseStale deletes reservations that never got a delivery handle and
	// are older than the cutoff: leftovers of a crash between reserve and
	// finalize.
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repo implements Store with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// NewRepo creates a new notification store.
func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Store = (*Repo)(nil)

// Reserve claims the dedup key for this dispatch. The unique constraint on
// (measurement_id, notification_type, recipient_user_id) is the cross-process
// backstop: whoever loses the insert race sees created=false.
func (r *Repo) Reserve(ctx context.Context, measurementID int64, notificationType string, recipientID int64) (int64, bool, error) {
	query := `
		INSERT INTO notifications (measurement_id, notification_type, recipient_user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (measurement_id, notification_type, recipient_user_id) DO NOTHING
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query, measurementID, notificationType, recipientID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("reserve notification: %w", err)
	}
	return id, true, nil
}

// Finalize records the delivery handle and marks the notification sent.
func (r *Repo) Finalize(ctx context.Context, reservationID, chatID, messageID int64) error {
	query := `
		UPDATE notifications
		SET telegram_chat_id = $2, telegram_message_id = $3, sent_at = now()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, reservationID, chatID, messageID)
	if err != nil {
		return fmt.Errorf("finalize notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finalize notification: reservation %d vanished", reservationID)
	}
	return nil
}

// DeleteReservation removes an unfinalized reservation so a retry can pass.
func (r *Repo) DeleteReservation(ctx context.Context, reservationID int64) error {
	query := `DELETE FROM notifications WHERE id = $1 AND sent_at IS NULL`

	if _, err := r.pool.Exec(ctx, query, reservationID); err != nil {
		return fmt.Errorf("delete notification reservation: %w", err)
	}
	return nil
}

// ReleaseStale clears reservations stuck without a delivery handle.
func (r *Repo) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM notifications WHERE sent_at IS NULL AND created_at < $1`

	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("release stale reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}
