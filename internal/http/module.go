// Package http provides HTTP server infrastructure including the Module
// interface every domain module implements for route registration.
package http

import (
	"measurehub_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module is a bounded context that mounts its own routes. Keeping route
// setup inside each module keeps the router free of endpoint knowledge.
type Module interface {
	// Name identifies the module in startup logs.
	Name() string
	// RegisterRoutes mounts the module's routes on the shared groups.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext hands modules the route groups and shared middleware they
// mount onto.
type RouterContext struct {
	// Engine is the root engine, for routes outside /api/v1 such as the
	// CRM webhook.
	Engine *gin.Engine
	// V1 is the public /api/v1 group.
	V1 *gin.RouterGroup
	// Protected requires a valid access token.
	Protected *gin.RouterGroup
	// Admin additionally requires the admin role.
	Admin *gin.RouterGroup
	// AuthRateLimiter is the stricter per-IP limiter for login and invite
	// redemption.
	AuthRateLimiter *httpkit.AuthRateLimiter
}
