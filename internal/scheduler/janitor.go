package scheduler

import (
	"context"
	"time"

	"measurehub_backend/internal/notification"
	"measurehub_backend/platform/config"
	"measurehub_backend/platform/logger"
)

const (
	defaultJanitorInterval   = 5 * time.Minute
	defaultReservationMaxAge = 10 * time.Minute
)

// ReservationJanitor periodically releases notification reservations whose
// send never completed, so the next retry can claim them again.
type ReservationJanitor struct {
	store    notification.Store
	log      *logger.Logger
	interval time.Duration
	maxAge   time.Duration
}

func NewReservationJanitor(store notification.Store, cfg config.NotificationConfig, log *logger.Logger) *ReservationJanitor {
	interval := cfg.GetJanitorInterval()
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	maxAge := cfg.GetReservationMaxAge()
	if maxAge <= 0 {
		maxAge = defaultReservationMaxAge
	}

	return &ReservationJanitor{
		store:    store,
		log:      log,
		interval: interval,
		maxAge:   maxAge,
	}
}

func (j *ReservationJanitor) Run(ctx context.Context) {
	if j == nil || j.store == nil {
		return
	}

	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *ReservationJanitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.maxAge)

	released, err := j.store.ReleaseStale(ctx, cutoff)
	if err != nil {
		j.log.Warn("reservation sweep failed", "error", err)
		return
	}

	if released > 0 {
		j.log.Info("released stale notification reservations", "released", released)
	}
}
