package exports

import (
	apphttp "measurehub_backend/internal/http"
	"measurehub_backend/platform/logger"
	"measurehub_backend/platform/validator"
)

// Module is the exports bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the exports module.
func NewModule(repo MeasurementSource, names NameLookup, uploader Uploader, val *validator.Validator, log *logger.Logger) *Module {
	exporter := NewExporter(repo, names, log)
	return &Module{handler: NewHandler(exporter, uploader, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "exports"
}

// RegisterRoutes mounts export routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/exports/measurements", m.handler.ExportMeasurements)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
