// Package invites provides the invite link module: role-scoped onboarding
// links with QR codes, redeemed into provisioned user accounts.
package invites

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "measurehub_backend/internal/http"
	"measurehub_backend/internal/invites/handler"
	"measurehub_backend/internal/invites/repository"
	"measurehub_backend/internal/invites/service"
	"measurehub_backend/platform/config"
	"measurehub_backend/platform/logger"
	"measurehub_backend/platform/validator"
)

// Module is the invites bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the invites module with all its
// dependencies.
func NewModule(pool *pgxpool.Pool, users service.UserProvisioner, cfg config.InviteConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, users, cfg, log)

	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "invites"
}

// RegisterRoutes mounts invite routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	admin := ctx.Admin.Group("/invites")
	admin.POST("", m.handler.Create)
	admin.GET("", m.handler.List)
	admin.DELETE("/:id", m.handler.Revoke)
	admin.GET("/:id/qr", m.handler.QR)

	// Redemption is public: the caller has no account yet. Same limiter as
	// the login endpoint.
	public := ctx.V1.Group("/invites")
	public.Use(ctx.AuthRateLimiter.RateLimit())
	public.POST("/redeem", m.handler.Redeem)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
