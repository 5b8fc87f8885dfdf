package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/internal/measurements/orchestrator"
	"measurehub_backend/internal/measurements/repository"
	"measurehub_backend/internal/notification"
	"measurehub_backend/platform/apperr"
	"measurehub_backend/platform/logger"
)

type stubEvents struct {
	events  []domain.InboundEvent
	outcome orchestrator.Outcome
	err     error
}

func (s *stubEvents) Handle(_ context.Context, event domain.InboundEvent) (orchestrator.Outcome, error) {
	s.events = append(s.events, event)
	return s.outcome, s.err
}

type stubJobs struct {
	jobs map[int64]domain.Job
}

func (s *stubJobs) GetByExternalLeadID(_ context.Context, leadID int64) (domain.Job, error) {
	job, ok := s.jobs[leadID]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return job, nil
}

func (s *stubJobs) List(context.Context, repository.ListParams) ([]domain.Job, int, error) {
	return nil, 0, nil
}

type stubEscalationNotifier struct {
	jobs    []domain.Job
	results []notification.Result
}

func (s *stubEscalationNotifier) NotifyEscalation(_ context.Context, job domain.Job) []notification.Result {
	s.jobs = append(s.jobs, job)
	return s.results
}

type stubEmailSender struct {
	leadIDs []int64
	err     error
}

func (s *stubEmailSender) SendMeasurementEscalation(_ context.Context, leadID int64, _, _ string, _ time.Duration) error {
	s.leadIDs = append(s.leadIDs, leadID)
	return s.err
}

func newTestWorker(events *stubEvents, jobs *stubJobs, notifier *stubEscalationNotifier, emailSender *stubEmailSender) *Worker {
	return &Worker{
		events:   events,
		repo:     jobs,
		notifier: notifier,
		email:    emailSender,
		log:      logger.New("test"),
	}
}

func sentResult() []notification.Result {
	return []notification.Result{{Type: notification.TypeAssigned, RecipientID: 7, Status: notification.StatusSent}}
}

func TestNotificationRetryTaskRoundTrip(t *testing.T) {
	actor := int64(12)
	event := domain.InboundEvent{
		Kind:           domain.EventConfirmed,
		ExternalLeadID: 9001,
		ActorUserID:    &actor,
	}

	task, err := NewNotificationRetryTask(event)
	if err != nil {
		t.Fatalf("NewNotificationRetryTask: %v", err)
	}
	if task.Type() != TaskNotificationRetry {
		t.Fatalf("task type = %q, want %q", task.Type(), TaskNotificationRetry)
	}

	got, err := ParseNotificationRetryPayload(task)
	if err != nil {
		t.Fatalf("ParseNotificationRetryPayload: %v", err)
	}
	if got.Kind != event.Kind || got.ExternalLeadID != event.ExternalLeadID {
		t.Fatalf("parsed event = %+v, want %+v", got, event)
	}
	if got.ActorUserID == nil || *got.ActorUserID != actor {
		t.Fatalf("parsed actor = %v, want %d", got.ActorUserID, actor)
	}
}

func TestMeasurementEscalationTaskRoundTrip(t *testing.T) {
	task, err := NewMeasurementEscalationTask(MeasurementEscalationPayload{ExternalLeadID: 4242})
	if err != nil {
		t.Fatalf("NewMeasurementEscalationTask: %v", err)
	}
	if task.Type() != TaskMeasurementEscalation {
		t.Fatalf("task type = %q, want %q", task.Type(), TaskMeasurementEscalation)
	}

	payload, err := ParseMeasurementEscalationPayload(task)
	if err != nil {
		t.Fatalf("ParseMeasurementEscalationPayload: %v", err)
	}
	if payload.ExternalLeadID != 4242 {
		t.Fatalf("lead id = %d, want 4242", payload.ExternalLeadID)
	}
}

func TestRetryHandlerSucceedsWhenNotificationsClean(t *testing.T) {
	events := &stubEvents{outcome: orchestrator.Outcome{Notifications: sentResult()}}
	w := newTestWorker(events, &stubJobs{}, &stubEscalationNotifier{}, &stubEmailSender{})

	task, err := NewNotificationRetryTask(domain.InboundEvent{Kind: domain.EventCreated, ExternalLeadID: 55})
	if err != nil {
		t.Fatalf("NewNotificationRetryTask: %v", err)
	}

	if err := w.handleNotificationRetry(context.Background(), task); err != nil {
		t.Fatalf("handleNotificationRetry: %v", err)
	}
	if len(events.events) != 1 || events.events[0].ExternalLeadID != 55 {
		t.Fatalf("handled events = %+v, want one event for lead 55", events.events)
	}
}

func TestRetryHandlerFailsWhenSendFailuresRemain(t *testing.T) {
	events := &stubEvents{outcome: orchestrator.Outcome{Notifications: []notification.Result{
		{Type: notification.TypeAssigned, RecipientID: 7, Status: notification.StatusSendFailed, Error: "telegram down"},
	}}}
	w := newTestWorker(events, &stubJobs{}, &stubEscalationNotifier{}, &stubEmailSender{})

	task, _ := NewNotificationRetryTask(domain.InboundEvent{Kind: domain.EventCreated, ExternalLeadID: 55})

	err := w.handleNotificationRetry(context.Background(), task)
	if err == nil {
		t.Fatal("expected error so the task is retried")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("send failures must stay retryable, got %v", err)
	}
}

func TestRetryHandlerSkipsUnparseablePayload(t *testing.T) {
	w := newTestWorker(&stubEvents{}, &stubJobs{}, &stubEscalationNotifier{}, &stubEmailSender{})

	task := asynq.NewTask(TaskNotificationRetry, []byte("{not json"))

	err := w.handleNotificationRetry(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for garbage payload, got %v", err)
	}
}

func TestRetryHandlerSkipsRejectedEvent(t *testing.T) {
	events := &stubEvents{err: apperr.New(apperr.KindValidation, "event rejected")}
	w := newTestWorker(events, &stubJobs{}, &stubEscalationNotifier{}, &stubEmailSender{})

	task, _ := NewNotificationRetryTask(domain.InboundEvent{Kind: domain.EventCreated, ExternalLeadID: 55})

	err := w.handleNotificationRetry(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for rejected event, got %v", err)
	}
}

func TestRetryHandlerPropagatesTransientError(t *testing.T) {
	events := &stubEvents{err: errors.New("db unavailable")}
	w := newTestWorker(events, &stubJobs{}, &stubEscalationNotifier{}, &stubEmailSender{})

	task, _ := NewNotificationRetryTask(domain.InboundEvent{Kind: domain.EventCreated, ExternalLeadID: 55})

	err := w.handleNotificationRetry(context.Background(), task)
	if err == nil {
		t.Fatal("expected transient error to propagate")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("transient errors must stay retryable, got %v", err)
	}
}

func TestEscalationHandlerAlertsWhenStillUnassigned(t *testing.T) {
	jobs := &stubJobs{jobs: map[int64]domain.Job{
		9001: {
			ID:             42,
			ExternalLeadID: 9001,
			Name:           "Kitchen remodel",
			Address:        "Lenina 5",
			Status:         domain.StatusAssigned,
			CreatedAt:      time.Now().Add(-30 * time.Minute),
		},
	}}
	notifier := &stubEscalationNotifier{results: sentResult()}
	emailSender := &stubEmailSender{}
	w := newTestWorker(&stubEvents{}, jobs, notifier, emailSender)

	task, _ := NewMeasurementEscalationTask(MeasurementEscalationPayload{ExternalLeadID: 9001})

	if err := w.handleMeasurementEscalation(context.Background(), task); err != nil {
		t.Fatalf("handleMeasurementEscalation: %v", err)
	}
	if len(notifier.jobs) != 1 || notifier.jobs[0].ID != 42 {
		t.Fatalf("notified jobs = %+v, want job 42", notifier.jobs)
	}
	if len(emailSender.leadIDs) != 1 || emailSender.leadIDs[0] != 9001 {
		t.Fatalf("emailed leads = %v, want [9001]", emailSender.leadIDs)
	}
}

func TestEscalationHandlerSkipsAssignedJob(t *testing.T) {
	measurer := int64(7)
	jobs := &stubJobs{jobs: map[int64]domain.Job{
		9001: {ID: 42, ExternalLeadID: 9001, Status: domain.StatusAssigned, AssignedMeasurerID: &measurer},
	}}
	notifier := &stubEscalationNotifier{}
	emailSender := &stubEmailSender{}
	w := newTestWorker(&stubEvents{}, jobs, notifier, emailSender)

	task, _ := NewMeasurementEscalationTask(MeasurementEscalationPayload{ExternalLeadID: 9001})

	if err := w.handleMeasurementEscalation(context.Background(), task); err != nil {
		t.Fatalf("handleMeasurementEscalation: %v", err)
	}
	if len(notifier.jobs) != 0 || len(emailSender.leadIDs) != 0 {
		t.Fatal("a job that got its measurer must not be escalated")
	}
}

func TestEscalationHandlerSkipsTerminalJob(t *testing.T) {
	jobs := &stubJobs{jobs: map[int64]domain.Job{
		9001: {ID: 42, ExternalLeadID: 9001, Status: domain.StatusCancelled},
	}}
	notifier := &stubEscalationNotifier{}
	emailSender := &stubEmailSender{}
	w := newTestWorker(&stubEvents{}, jobs, notifier, emailSender)

	task, _ := NewMeasurementEscalationTask(MeasurementEscalationPayload{ExternalLeadID: 9001})

	if err := w.handleMeasurementEscalation(context.Background(), task); err != nil {
		t.Fatalf("handleMeasurementEscalation: %v", err)
	}
	if len(notifier.jobs) != 0 || len(emailSender.leadIDs) != 0 {
		t.Fatal("a cancelled job must not be escalated")
	}
}

func TestEscalationHandlerIgnoresMissingJob(t *testing.T) {
	w := newTestWorker(&stubEvents{}, &stubJobs{}, &stubEscalationNotifier{}, &stubEmailSender{})

	task, _ := NewMeasurementEscalationTask(MeasurementEscalationPayload{ExternalLeadID: 404})

	if err := w.handleMeasurementEscalation(context.Background(), task); err != nil {
		t.Fatalf("missing job should not be retried, got %v", err)
	}
}

func TestEscalationHandlerRetriesWhenNotifyFails(t *testing.T) {
	jobs := &stubJobs{jobs: map[int64]domain.Job{
		9001: {ID: 42, ExternalLeadID: 9001, Status: domain.StatusAssigned, CreatedAt: time.Now()},
	}}
	notifier := &stubEscalationNotifier{results: []notification.Result{
		{Type: notification.TypeEscalated, RecipientID: 7, Status: notification.StatusSendFailed, Error: "telegram down"},
	}}
	emailSender := &stubEmailSender{}
	w := newTestWorker(&stubEvents{}, jobs, notifier, emailSender)

	task, _ := NewMeasurementEscalationTask(MeasurementEscalationPayload{ExternalLeadID: 9001})

	err := w.handleMeasurementEscalation(context.Background(), task)
	if err == nil {
		t.Fatal("expected error so the escalation is retried")
	}
	if len(emailSender.leadIDs) != 0 {
		t.Fatal("email must wait until watchers were reached; dedup keeps the retry cheap")
	}
}

func TestEscalationHandlerRetriesWhenEmailFails(t *testing.T) {
	jobs := &stubJobs{jobs: map[int64]domain.Job{
		9001: {ID: 42, ExternalLeadID: 9001, Status: domain.StatusAssigned, CreatedAt: time.Now()},
	}}
	notifier := &stubEscalationNotifier{results: sentResult()}
	emailSender := &stubEmailSender{err: errors.New("smtp down")}
	w := newTestWorker(&stubEvents{}, jobs, notifier, emailSender)

	task, _ := NewMeasurementEscalationTask(MeasurementEscalationPayload{ExternalLeadID: 9001})

	if err := w.handleMeasurementEscalation(context.Background(), task); err == nil {
		t.Fatal("expected smtp failure to be retried")
	}
}
