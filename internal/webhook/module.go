// Package webhook ingests CRM lead events. Deliveries are signature-checked,
// parsed from JSON or form bodies, mapped to inbound events through the
// configured status table and handed to the measurements orchestrator.
package webhook

import (
	apphttp "measurehub_backend/internal/http"
	"measurehub_backend/platform/config"
	"measurehub_backend/platform/logger"
)

// Module is the CRM webhook ingress module implementing http.Module.
type Module struct {
	handler *Handler
	secret  string
}

// NewModule creates the webhook module. tasks may be nil when no worker
// queue is configured.
func NewModule(events EventHandler, tasks TaskEnqueuer, cfg config.WebhookConfig, log *logger.Logger) *Module {
	service := NewService(events, tasks, cfg, log)
	return &Module{
		handler: NewHandler(service, log),
		secret:  cfg.GetWebhookSecret(),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the CRM ingress outside /api/v1: the CRM is not a
// JWT caller, it authenticates with the body signature.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Engine.POST("/webhooks/crm", SignatureMiddleware(m.secret), m.handler.HandleCRM)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
