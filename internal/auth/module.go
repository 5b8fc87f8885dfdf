// Package auth provides the authentication module: operator login against
// the user catalog and access token issuing.
package auth

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"measurehub_backend/internal/auth/handler"
	"measurehub_backend/internal/auth/repository"
	"measurehub_backend/internal/auth/service"
	apphttp "measurehub_backend/internal/http"
	"measurehub_backend/platform/config"
	"measurehub_backend/platform/logger"
	"measurehub_backend/platform/validator"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the auth module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg, log)

	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// RegisterRoutes mounts auth routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public, behind the stricter per-IP limiter.
	group := ctx.V1.Group("/auth")
	group.Use(ctx.AuthRateLimiter.RateLimit())
	group.POST("/login", m.handler.Login)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
