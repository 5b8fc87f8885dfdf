package notification

import (
	"context"
	"fmt"
	"time"

	"measurehub_backend/platform/config"
	"measurehub_backend/platform/logger"
)

// reservationCleanupTimeout bounds the rollback delete when a send failed
// with an already-expired request context.
const reservationCleanupTimeout = 5 * time.Second

// Dispatcher performs deduplicated notification sends: reserve, send,
// finalize. Sends are bounded by the configured timeout; a timeout counts as
// a failed send and rolls the reservation back.
type Dispatcher struct {
	store       Store
	sendTimeout time.Duration
	log         *logger.Logger
}

// NewDispatcher creates a dispatcher over the given store.
func NewDispatcher(store Store, cfg config.NotificationConfig, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:       store,
		sendTimeout: cfg.GetNotificationSendTimeout(),
		log:         log,
	}
}

// Dispatch sends one notification exactly once. The returned error is only
// for storage failures; a failed transport send is reported in the result, so
// the caller can aggregate per-recipient outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, measurementID int64, notificationType string, recipientID int64, send SendFunc) (Result, error) {
	result := Result{Type: notificationType, RecipientID: recipientID}

	reservationID, created, err := d.store.Reserve(ctx, measurementID, notificationType, recipientID)
	if err != nil {
		return result, err
	}
	if !created {
		result.Status = StatusAlreadySent
		d.log.NotificationDispatch(notificationType, measurementID, recipientID, string(StatusAlreadySent))
		return result, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	delivery, sendErr := send(sendCtx)
	if sendErr != nil {
		d.rollback(ctx, reservationID)
		result.Status = StatusSendFailed
		result.Error = sendErr.Error()
		d.log.NotificationDispatch(notificationType, measurementID, recipientID, string(StatusSendFailed))
		return result, nil
	}

	result.Status = StatusSent
	if err := d.store.Finalize(ctx, reservationID, delivery.ChatID, delivery.MessageID); err != nil {
		// The message is out. Keep the reservation so no retry double-sends;
		// the missing handle is the price of the storage failure.
		return result, fmt.Errorf("notification sent but not finalized: %w", err)
	}

	d.log.NotificationDispatch(notificationType, measurementID, recipientID, string(StatusSent))
	return result, nil
}

// rollback deletes the reservation on a detached context: the request context
// may already be expired, and a stuck reservation would block retries until
// the janitor runs.
func (d *Dispatcher) rollback(ctx context.Context, reservationID int64) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reservationCleanupTimeout)
	defer cancel()

	if err := d.store.DeleteReservation(cleanupCtx, reservationID); err != nil {
		d.log.Error("notification reservation rollback failed, janitor will release it",
			"reservationId", reservationID, "error", err.Error())
	}
}
