// Package notification delivers exactly-once job notifications over the chat
// transport. The deduplicator reserves a row per (measurement, type,
// recipient) before sending, so retries and concurrent duplicates collapse to
// a single delivery.
package notification

import (
	"context"
	"errors"

	"measurehub_backend/internal/telegram"
)

// ErrSendFailed marks a dispatch whose transport send did not go through.
// The reservation is rolled back, so the next attempt may retry.
var ErrSendFailed = errors.New("notification send failed")

// DispatchStatus is the outcome of one dispatch attempt.
type DispatchStatus string

const (
	StatusSent        DispatchStatus = "sent"
	StatusAlreadySent DispatchStatus = "already_sent"
	StatusSendFailed  DispatchStatus = "send_failed"
)

// Result describes one dispatch attempt for the orchestrator outcome.
type Result struct {
	Type        string         `json:"type"`
	RecipientID int64          `json:"recipientId"`
	Status      DispatchStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
}

// Failed reports whether this dispatch needs a retry.
func (r Result) Failed() bool {
	return r.Status == StatusSendFailed
}

// SendFunc performs the actual transport send. It must honor ctx; the
// dispatcher bounds it with the configured send timeout.
type SendFunc func(ctx context.Context) (telegram.Delivery, error)
