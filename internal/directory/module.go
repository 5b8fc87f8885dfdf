// Package directory provides the measurer directory bounded context: the user
// catalog, service zones with membership, and external dealer name bindings.
// The assignment resolver reads from here; admins manage it over HTTP.
package directory

import (
	"measurehub_backend/internal/directory/handler"
	"measurehub_backend/internal/directory/repository"
	"measurehub_backend/internal/directory/service"
	apphttp "measurehub_backend/internal/http"
	"measurehub_backend/platform/logger"
	"measurehub_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the directory bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the directory module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "directory"
}

// Service returns the service layer for the resolver and notification modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts directory administration routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	users := ctx.Admin.Group("/users")
	users.GET("", m.handler.ListUsers)
	users.POST("", m.handler.CreateUser)
	users.PATCH("/:id", m.handler.UpdateUser)
	users.DELETE("/:id", m.handler.DeleteUser)

	zones := ctx.Admin.Group("/zones")
	zones.GET("", m.handler.ListZones)
	zones.POST("", m.handler.CreateZone)
	zones.GET("/:id", m.handler.GetZone)
	zones.DELETE("/:id", m.handler.DeleteZone)
	zones.POST("/:id/members", m.handler.AddZoneMember)
	zones.DELETE("/:id/members/:userID", m.handler.RemoveZoneMember)

	names := ctx.Admin.Group("/measurer-names")
	names.GET("", m.handler.ListMeasurerNames)
	names.POST("", m.handler.CreateMeasurerName)
	names.DELETE("/:id", m.handler.DeleteMeasurerName)
	names.PUT("/:id/assignment", m.handler.AssignMeasurerName)
	names.DELETE("/:id/assignment", m.handler.UnassignMeasurerName)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
