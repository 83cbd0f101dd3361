package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"reverseproxyd/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information: build version and the set of
// configured routes.
func (h *HealthHandler) Status(c echo.Context) error {
	routes := make([]map[string]string, 0, len(h.cfg.Routes))
	for _, r := range h.cfg.Routes {
		upstream := r.Target
		if upstream == "" {
			upstream = r.Forward
		}
		routes = append(routes, map[string]string{
			"listen_path": r.ListenPath,
			"upstream":    upstream,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": string(h.version),
		"routes":  routes,
	})
}
