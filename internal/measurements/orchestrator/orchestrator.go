// Package orchestrator applies inbound job events to measurement state and
// fans out the resulting notifications. Every path that mutates a job (the
// CRM webhook, the admin API, the retry queue) goes through Handle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"measurehub_backend/internal/assignment"
	"measurehub_backend/internal/events"
	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/internal/measurements/repository"
	"measurehub_backend/internal/notification"
	"measurehub_backend/platform/apperr"
	"measurehub_backend/platform/config"
	"measurehub_backend/platform/keylock"
	"measurehub_backend/platform/logger"
)

// Resolver picks a measurer for jobs that arrive without one.
type Resolver interface {
	Resolve(ctx context.Context, facts assignment.JobFacts) (assignment.Resolution, error)
}

// Notifier fans a transition out to its recipients.
type Notifier interface {
	NotifyTransition(ctx context.Context, t notification.Transition) []notification.Result
}

// Outcome is what one handled event did. Webhook and retry callers look at
// HasSendFailures to decide whether a redelivery is needed.
type Outcome struct {
	MeasurementID    int64                 `json:"measurementId"`
	ExternalLeadID   int64                 `json:"externalLeadId"`
	Status           domain.Status         `json:"status"`
	AssignmentReason assignment.Reason     `json:"assignmentReason"`
	MeasurerID       *int64                `json:"measurerId,omitempty"`
	Changed          bool                  `json:"changed"`
	Notifications    []notification.Result `json:"notifications,omitempty"`
}

// HasSendFailures reports whether any notification in this outcome still
// needs a retry.
func (o Outcome) HasSendFailures() bool {
	for _, r := range o.Notifications {
		if r.Failed() {
			return true
		}
	}
	return false
}

// Orchestrator applies inbound job events: it creates or transitions the
// measurement, then fans out notifications. Events for the same external
// lead are serialized on a per-job lock, so handlers never observe a
// half-applied transition.
type Orchestrator struct {
	repo     repository.Repository
	resolver Resolver
	notifier Notifier
	bus      events.Bus
	locks    *keylock.KeyLock
	cfg      config.OrchestratorConfig
	log      *logger.Logger
	now      func() time.Time
}

// New creates the event orchestrator. bus may be nil when no module
// subscribes to measurement events.
func New(repo repository.Repository, resolver Resolver, notifier Notifier, bus events.Bus, cfg config.OrchestratorConfig, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		resolver: resolver,
		notifier: notifier,
		bus:      bus,
		locks:    keylock.New(),
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

func jobLockKey(leadID int64) string {
	return fmt.Sprintf("measurement:%d", leadID)
}

// Handle validates the event, takes the job lock and applies the event. It
// is safe to call again with the same event: creation is idempotent on the
// external lead id and notifications deduplicate per recipient, which is
// exactly what the retry queue relies on.
func (o *Orchestrator) Handle(ctx context.Context, event domain.InboundEvent) (Outcome, error) {
	if err := event.Validate(); err != nil {
		return Outcome{}, apperr.Wrap(apperr.KindValidation, "event rejected", err).WithOp("measurements.Handle")
	}

	lockCtx, cancel := context.WithTimeout(ctx, o.cfg.GetJobLockTimeout())
	defer cancel()
	release, err := o.locks.Acquire(lockCtx, jobLockKey(event.ExternalLeadID))
	if err != nil {
		return Outcome{}, apperr.Wrap(apperr.KindConflict, "another event for this job is still being processed", err)
	}
	defer release()

	switch event.Kind {
	case domain.EventCreated:
		return o.handleCreated(ctx, event)
	case domain.EventReassigned:
		return o.handleReassigned(ctx, event)
	default:
		return o.handleStatusChange(ctx, event)
	}
}

func (o *Orchestrator) handleCreated(ctx context.Context, event domain.InboundEvent) (Outcome, error) {
	existing, err := o.repo.GetByExternalLeadID(ctx, event.ExternalLeadID)
	switch {
	case err == nil:
		// Redelivered creation. Re-run the fan-out: the deduplicator turns
		// anything already delivered into already_sent and only failed
		// recipients get a fresh send.
		o.log.Info("creation replay for existing measurement",
			"externalLeadId", event.ExternalLeadID, "measurementId", existing.ID)
		results := o.notifier.NotifyTransition(ctx, notification.Transition{Kind: domain.EventCreated, Job: existing})
		return o.outcome(existing, false, results), nil
	case !errors.Is(err, domain.ErrNotFound):
		return Outcome{}, fmt.Errorf("lookup lead %d: %w", event.ExternalLeadID, err)
	}

	resolution, err := o.resolver.Resolve(ctx, assignment.JobFacts{
		DealerName: event.DealerName,
		ZoneHint:   event.ZoneHint,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve assignment for lead %d: %w", event.ExternalLeadID, err)
	}

	job, err := o.repo.Create(ctx, repository.CreateParams{
		ExternalLeadID: event.ExternalLeadID,
		Name:           event.Name,
		ContactName:    event.ContactName,
		ContactPhone:   event.ContactPhone,
		Address:        event.Address,
		OrderCode:      optional(event.OrderCode),
		DealerName:     optional(event.DealerName),
		ZoneHint:       optional(event.ZoneHint),
		MeasurerID:     resolution.MeasurerID,
		Reason:         resolution.Reason,
	})
	if err != nil {
		return Outcome{}, err
	}

	o.log.Info("measurement created",
		"measurementId", job.ID,
		"externalLeadId", job.ExternalLeadID,
		"reason", job.AssignmentReason,
		"measurerId", job.AssignedMeasurerID)

	o.publish(ctx, events.MeasurementCreated{
		BaseEvent:        events.NewBaseEvent(),
		MeasurementID:    job.ID,
		ExternalLeadID:   job.ExternalLeadID,
		MeasurerID:       job.AssignedMeasurerID,
		AssignmentReason: string(job.AssignmentReason),
	})

	results := o.notifier.NotifyTransition(ctx, notification.Transition{Kind: domain.EventCreated, Job: job})
	return o.outcome(job, true, results), nil
}

func (o *Orchestrator) handleStatusChange(ctx context.Context, event domain.InboundEvent) (Outcome, error) {
	job, err := o.repo.GetByExternalLeadID(ctx, event.ExternalLeadID)
	if err != nil {
		return Outcome{}, err
	}

	expected := job.Status
	changed := false

	switch event.Kind {
	case domain.EventConfirmed:
		actor := event.ActorUserID
		if actor == nil {
			// CRM confirmations carry no actor; credit the assigned measurer.
			actor = job.AssignedMeasurerID
		}
		if actor == nil {
			return Outcome{}, apperr.Wrap(apperr.KindConflict, "cannot confirm an unassigned measurement", domain.ErrInvalidTransition)
		}
		changed, err = job.Confirm(*actor, o.now())
	case domain.EventCompleted:
		err = job.Complete(o.now())
		changed = err == nil
	case domain.EventCancelled:
		err = job.Cancel()
		changed = err == nil
	}
	if err != nil {
		return Outcome{}, transitionError(event.Kind, err)
	}

	if !changed {
		// Same-user re-confirmation. Nothing moved, nobody to tell.
		return o.outcome(job, false, nil), nil
	}

	saved, err := o.repo.SaveTransition(ctx, job, expected)
	if err != nil {
		return Outcome{}, err
	}

	o.log.Info("measurement transitioned",
		"measurementId", saved.ID,
		"externalLeadId", saved.ExternalLeadID,
		"from", expected,
		"to", saved.Status)

	o.publish(ctx, events.MeasurementStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		MeasurementID:  saved.ID,
		ExternalLeadID: saved.ExternalLeadID,
		OldStatus:      string(expected),
		NewStatus:      string(saved.Status),
		ActorID:        event.ActorUserID,
	})

	results := o.notifier.NotifyTransition(ctx, notification.Transition{Kind: event.Kind, Job: saved})
	return o.outcome(saved, true, results), nil
}

func (o *Orchestrator) handleReassigned(ctx context.Context, event domain.InboundEvent) (Outcome, error) {
	job, err := o.repo.GetByExternalLeadID(ctx, event.ExternalLeadID)
	if err != nil {
		return Outcome{}, err
	}

	previous := job.AssignedMeasurerID

	var target *int64
	var reason assignment.Reason
	if event.NewMeasurerID != nil {
		target = event.NewMeasurerID
		reason = assignment.ReasonManual
	} else {
		// No explicit target: run the job back through the resolver using
		// the facts it was created with.
		resolution, err := o.resolver.Resolve(ctx, assignment.JobFacts{
			DealerName: deref(job.DealerName),
			ZoneHint:   deref(job.ZoneHint),
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("re-resolve assignment for lead %d: %w", event.ExternalLeadID, err)
		}
		target = resolution.MeasurerID
		reason = resolution.Reason
	}

	expected := job.Status
	if err := job.Reassign(target, reason, o.now()); err != nil {
		return Outcome{}, transitionError(event.Kind, err)
	}

	saved, err := o.repo.SaveTransition(ctx, job, expected)
	if err != nil {
		return Outcome{}, err
	}

	o.log.Info("measurement reassigned",
		"measurementId", saved.ID,
		"externalLeadId", saved.ExternalLeadID,
		"previousMeasurerId", previous,
		"measurerId", saved.AssignedMeasurerID,
		"reason", saved.AssignmentReason)

	o.publish(ctx, events.MeasurementReassigned{
		BaseEvent:        events.NewBaseEvent(),
		MeasurementID:    saved.ID,
		ExternalLeadID:   saved.ExternalLeadID,
		PreviousMeasurer: previous,
		NewMeasurer:      saved.AssignedMeasurerID,
		AssignedByID:     event.ActorUserID,
	})

	results := o.notifier.NotifyTransition(ctx, notification.Transition{
		Kind:               domain.EventReassigned,
		Job:                saved,
		PreviousMeasurerID: previous,
	})
	return o.outcome(saved, true, results), nil
}

func (o *Orchestrator) outcome(job domain.Job, changed bool, results []notification.Result) Outcome {
	return Outcome{
		MeasurementID:    job.ID,
		ExternalLeadID:   job.ExternalLeadID,
		Status:           job.Status,
		AssignmentReason: job.AssignmentReason,
		MeasurerID:       job.AssignedMeasurerID,
		Changed:          changed,
		Notifications:    results,
	}
}

func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(ctx, event)
}

// transitionError maps domain transition failures onto transport kinds.
func transitionError(kind domain.EventKind, err error) error {
	switch {
	case errors.Is(err, domain.ErrAlreadyConfirmed):
		return apperr.Wrap(apperr.KindConflict, "measurement already confirmed by another user", err)
	case errors.Is(err, domain.ErrInvalidTransition):
		return apperr.Wrap(apperr.KindConflict, fmt.Sprintf("measurement cannot be %s in its current status", kind), err)
	}
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
