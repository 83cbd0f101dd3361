// Package middleware provides Echo middleware for logging and security.
package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"reverseproxyd/internal/metrics"
)

// RequestLogger returns an Echo middleware that logs each request with slog.
// knownRoutes bounds the "route" field to a configured listen_path (or the
// daemon's own admin routes) the same way MetricsMiddleware bounds its
// "route" label, so a proxied request's log line names which route handled
// it instead of the raw, high-cardinality request path.
func RequestLogger(logger *slog.Logger, knownRoutes []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			logger.Info("request",
				"method", req.Method,
				"path", req.URL.Path,
				"route", metrics.NormalizeRoute(req.URL.Path, knownRoutes),
				"status", res.Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"remote_ip", c.RealIP(),
				"bytes_out", res.Size,
				"upgrade", strings.EqualFold(req.Header.Get("Upgrade"), "websocket"),
			)

			return err
		}
	}
}
