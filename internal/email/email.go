// Package email delivers operational alerts over SMTP. It is intentionally
// small: the engine talks to people through the chat transport, email exists
// for the ops inbox when a job needs human attention.
package email

import (
	"context"
	"time"

	"measurehub_backend/platform/config"
)

// Sender delivers ops alerts.
type Sender interface {
	// SendMeasurementEscalation alerts the ops address about a job that is
	// still unassigned after the escalation delay.
	SendMeasurementEscalation(ctx context.Context, leadID int64, name, address string, age time.Duration) error
}

// NoopSender drops alerts. Used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendMeasurementEscalation(context.Context, int64, string, string, time.Duration) error {
	return nil
}

// New picks the sender for the configuration: SMTP when fully configured,
// otherwise a noop.
func New(cfg config.SMTPConfig) Sender {
	if !cfg.IsSMTPEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(cfg)
}
