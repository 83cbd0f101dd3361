package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires the health/status admin endpoints onto admin (a
// group carrying its own middleware, e.g. SecurityHeaders) and every
// configured RouteHandler directly onto e. Proxied routes are mounted with
// a trailing wildcard so the full sub-path reaches the pass pipeline.
func RegisterRoutes(e *echo.Echo, admin *echo.Group, routes []*RouteHandler, health *HealthHandler) {
	admin.GET("/healthz", health.Healthz)
	admin.GET("/proxy/status", health.Status)

	for _, r := range routes {
		e.Any(r.ListenPath, r.Handle)
		e.Any(r.ListenPath+"/*", r.Handle)
	}
}
