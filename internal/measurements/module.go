// Package measurements provides the measurement job bounded context: the job
// lifecycle, its event orchestrator and the read API over jobs.
package measurements

import (
	"context"

	"measurehub_backend/internal/events"
	apphttp "measurehub_backend/internal/http"
	"measurehub_backend/internal/measurements/handler"
	"measurehub_backend/internal/measurements/orchestrator"
	"measurehub_backend/internal/measurements/repository"
	"measurehub_backend/internal/measurements/service"
	"measurehub_backend/platform/config"
	"measurehub_backend/platform/logger"
	"measurehub_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the measurements bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	orch    *orchestrator.Orchestrator
	repo    repository.Repository
	log     *logger.Logger
}

// NewModule creates and initializes the measurements module. The resolver and
// notifier come from the assignment and notification modules; the webhook and
// scheduler modules reuse the orchestrator this constructs.
func NewModule(pool *pgxpool.Pool, resolver orchestrator.Resolver, notifier orchestrator.Notifier, bus events.Bus, cfg config.OrchestratorConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	orch := orchestrator.New(repo, resolver, notifier, bus, cfg, log)
	svc := service.New(repo, log)
	h := handler.New(svc, orch, val)

	return &Module{
		handler: h,
		orch:    orch,
		repo:    repo,
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "measurements"
}

// Orchestrator returns the event orchestrator for the webhook and scheduler
// modules.
func (m *Module) Orchestrator() *orchestrator.Orchestrator {
	return m.orch
}

// Repository returns the measurements repository for exports and escalation
// checks.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts measurement routes on the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Protected.Group("/measurements")
	g.GET("", m.handler.List)
	g.GET("/:leadID", m.handler.Get)
	g.POST("/:leadID/confirm", m.handler.Confirm)
	g.POST("/:leadID/complete", m.handler.Complete)
	g.POST("/:leadID/cancel", m.handler.Cancel)
	g.POST("/:leadID/reassign", m.handler.Reassign)
}

// RegisterHandlers subscribes the module's audit listener to the lifecycle
// events the orchestrator publishes after commit. Notification dispatch is
// synchronous inside Handle; these listeners only observe.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.MeasurementCreated{}.EventName(), m)
	bus.Subscribe(events.MeasurementStatusChanged{}.EventName(), m)
	bus.Subscribe(events.MeasurementReassigned{}.EventName(), m)
}

// Handle writes the audit trail entry for a lifecycle event.
func (m *Module) Handle(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.MeasurementCreated:
		m.log.Info("audit: measurement created",
			"measurementId", e.MeasurementID,
			"externalLeadId", e.ExternalLeadID,
			"reason", e.AssignmentReason,
			"measurerId", e.MeasurerID)
	case events.MeasurementStatusChanged:
		m.log.Info("audit: measurement status changed",
			"measurementId", e.MeasurementID,
			"externalLeadId", e.ExternalLeadID,
			"from", e.OldStatus,
			"to", e.NewStatus,
			"actorId", e.ActorID)
	case events.MeasurementReassigned:
		m.log.Info("audit: measurement reassigned",
			"measurementId", e.MeasurementID,
			"externalLeadId", e.ExternalLeadID,
			"previousMeasurer", e.PreviousMeasurer,
			"newMeasurer", e.NewMeasurer,
			"assignedById", e.AssignedByID)
	}
	return nil
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
var _ events.Handler = (*Module)(nil)
