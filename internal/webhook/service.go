package webhook

import (
	"context"

	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/internal/measurements/orchestrator"
	"measurehub_backend/platform/config"
	"measurehub_backend/platform/logger"
	"measurehub_backend/platform/phone"
	"measurehub_backend/platform/sanitize"
)

// EventHandler applies one inbound event. Implemented by the measurements
// orchestrator.
type EventHandler interface {
	Handle(ctx context.Context, event domain.InboundEvent) (orchestrator.Outcome, error)
}

// TaskEnqueuer schedules background follow-ups. Implemented by the scheduler
// client; nil disables enqueueing.
type TaskEnqueuer interface {
	EnqueueNotificationRetry(ctx context.Context, event domain.InboundEvent) error
	EnqueueEscalation(ctx context.Context, externalLeadID int64) error
}

// Result summarizes one webhook delivery. The CRM only checks the HTTP
// status, the body exists for operators reading logs.
type Result struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Processed int    `json:"processed"`
	Ignored   int    `json:"ignored"`
	Failed    int    `json:"failed"`
}

// Service turns CRM webhook payloads into orchestrator events.
type Service struct {
	events EventHandler
	tasks  TaskEnqueuer
	kinds  map[int64]string
	log    *logger.Logger
}

// NewService creates the webhook intake service.
func NewService(events EventHandler, tasks TaskEnqueuer, cfg config.WebhookConfig, log *logger.Logger) *Service {
	return &Service{
		events: events,
		tasks:  tasks,
		kinds:  cfg.GetWebhookStatusKinds(),
		log:    log,
	}
}

// Process applies every lead entry in the payload. Entries that fail are
// logged and counted; one bad lead never blocks the rest of the batch.
func (s *Service) Process(ctx context.Context, p payload) Result {
	result := Result{Status: "success"}

	for _, lead := range p.Added {
		s.processLead(ctx, lead, domain.EventCreated, &result)
	}
	for _, lead := range p.StatusChanges {
		kindName, ok := s.kinds[lead.StatusID]
		if !ok {
			s.log.Info("webhook status not mapped, ignoring",
				"externalLeadId", lead.ID, "statusId", lead.StatusID)
			result.Ignored++
			continue
		}
		kind, err := domain.ParseEventKind(kindName)
		if err != nil {
			s.log.Error("webhook status mapped to unknown kind",
				"statusId", lead.StatusID, "kind", kindName)
			result.Ignored++
			continue
		}
		s.processLead(ctx, lead, kind, &result)
	}

	if result.Processed == 0 && result.Failed == 0 {
		result.Status = "ignored"
	}
	if result.Failed > 0 {
		result.Status = "error"
	}
	return result
}

func (s *Service) processLead(ctx context.Context, lead leadPayload, kind domain.EventKind, result *Result) {
	event := s.toEvent(lead, kind)

	outcome, err := s.events.Handle(ctx, event)
	if err != nil {
		s.log.Error("webhook event failed",
			"externalLeadId", event.ExternalLeadID, "kind", event.Kind, "error", err.Error())
		result.Failed++
		return
	}
	result.Processed++

	if outcome.HasSendFailures() {
		s.enqueueRetry(ctx, event)
	}
	if kind == domain.EventCreated && outcome.MeasurerID == nil {
		s.enqueueEscalation(ctx, event.ExternalLeadID)
	}
}

func (s *Service) toEvent(lead leadPayload, kind domain.EventKind) domain.InboundEvent {
	return domain.InboundEvent{
		Kind:           kind,
		ExternalLeadID: lead.ID,
		Name:           sanitize.Text(lead.Name),
		ContactName:    sanitize.Text(lead.contactName()),
		ContactPhone:   phone.NormalizeE164(sanitize.Text(lead.phone())),
		Address:        sanitize.Text(lead.address()),
		OrderCode:      sanitize.Text(lead.orderCode()),
		DealerName:     sanitize.Text(lead.dealerName()),
		ZoneHint:       sanitize.Text(lead.zoneHint()),
		ActorUserID:    lead.ResponsibleUserID,
	}
}

func (s *Service) enqueueRetry(ctx context.Context, event domain.InboundEvent) {
	if s.tasks == nil {
		s.log.Warn("send failures without a task queue, notifications stay undelivered",
			"externalLeadId", event.ExternalLeadID)
		return
	}
	if err := s.tasks.EnqueueNotificationRetry(ctx, event); err != nil {
		s.log.Error("enqueue notification retry failed",
			"externalLeadId", event.ExternalLeadID, "error", err.Error())
	}
}

func (s *Service) enqueueEscalation(ctx context.Context, leadID int64) {
	if s.tasks == nil {
		return
	}
	if err := s.tasks.EnqueueEscalation(ctx, leadID); err != nil {
		s.log.Error("enqueue escalation failed", "externalLeadId", leadID, "error", err.Error())
	}
}
