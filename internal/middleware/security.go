package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders returns an Echo middleware that adds security headers to
// the response. It is meant for the daemon's own admin routes (health,
// status, metrics) — not for proxied routes, since a byte-transparent
// reverse proxy must not strip or add to the hop-by-hop headers (Connection,
// Upgrade, ...) that its own pass pipeline already manages.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-Content-Type-Options", "nosniff")
			c.Response().Header().Set("X-Frame-Options", "DENY")

			return next(c)
		}
	}
}
