package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"measurehub_backend/internal/email"
	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/internal/measurements/orchestrator"
	measurementsrepo "measurehub_backend/internal/measurements/repository"
	"measurehub_backend/internal/notification"
	"measurehub_backend/platform/apperr"
	"measurehub_backend/platform/config"
	"measurehub_backend/platform/logger"
)

// EventHandler applies one inbound event. Implemented by the measurements
// orchestrator.
type EventHandler interface {
	Handle(ctx context.Context, event domain.InboundEvent) (orchestrator.Outcome, error)
}

// EscalationNotifier warns watchers about a stuck job.
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, job domain.Job) []notification.Result
}

// Worker consumes background tasks.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	events   EventHandler
	repo     measurementsrepo.Reader
	notifier EscalationNotifier
	email    email.Sender
	log      *logger.Logger
}

// NewWorker creates the asynq worker with the retry and escalation handlers
// registered.
func NewWorker(cfg config.SchedulerConfig, events EventHandler, repo measurementsrepo.Reader, notifier EscalationNotifier, emailSender email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		events:   events,
		repo:     repo,
		notifier: notifier,
		email:    emailSender,
		log:      log,
	}

	mux.HandleFunc(TaskNotificationRetry, w.handleNotificationRetry)
	mux.HandleFunc(TaskMeasurementEscalation, w.handleMeasurementEscalation)

	return w, nil
}

// Run serves tasks until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleNotificationRetry replays the inbound event. The orchestrator is
// idempotent and dispatch deduplicates, so only recipients that never got
// their message are sent to again.
func (w *Worker) handleNotificationRetry(ctx context.Context, task *asynq.Task) error {
	event, err := ParseNotificationRetryPayload(task)
	if err != nil {
		return fmt.Errorf("notification retry payload: %v: %w", err, asynq.SkipRetry)
	}

	outcome, err := w.events.Handle(ctx, event)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindValidation {
			// The event will never become applicable; burn the task.
			return fmt.Errorf("event rejected: %v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if outcome.HasSendFailures() {
		return fmt.Errorf("notifications still failing for lead %d", event.ExternalLeadID)
	}

	w.log.Info("notification retry clean",
		"externalLeadId", event.ExternalLeadID, "kind", event.Kind)
	return nil
}

// handleMeasurementEscalation re-checks a job created without a measurer.
// Jobs that got a measurer or ended in the meantime are left alone.
func (w *Worker) handleMeasurementEscalation(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseMeasurementEscalationPayload(task)
	if err != nil {
		return fmt.Errorf("escalation payload: %v: %w", err, asynq.SkipRetry)
	}

	job, err := w.repo.GetByExternalLeadID(ctx, payload.ExternalLeadID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if job.AssignedMeasurerID != nil || job.Status.IsTerminal() {
		return nil
	}

	w.log.Warn("measurement still unassigned, escalating",
		"measurementId", job.ID, "externalLeadId", job.ExternalLeadID)

	results := w.notifier.NotifyEscalation(ctx, job)
	for _, r := range results {
		if r.Failed() {
			return fmt.Errorf("escalation notification failed for recipient %d", r.RecipientID)
		}
	}

	age := time.Since(job.CreatedAt)
	if err := w.email.SendMeasurementEscalation(ctx, job.ExternalLeadID, job.Name, job.Address, age); err != nil {
		return fmt.Errorf("escalation email: %w", err)
	}
	return nil
}
