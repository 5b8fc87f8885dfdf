// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"measurehub_backend/platform/config"
	"measurehub_backend/platform/logger"
)

// RouterConfig combines the config interfaces the router itself reads: CORS
// settings and the JWT secret backing the protected groups.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker is what /health probes. Satisfied by the pgx pool adapter.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App carries the dependencies main wires into the router. Modules are
// registered in slice order.
type App struct {
	Config  RouterConfig
	Logger  *logger.Logger
	Health  HealthChecker
	Modules []Module
}
