package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"reverseproxyd/internal/metrics"
)

// RateLimiter wraps Echo's own RateLimiterWithConfig with a per-route
// identifier instead of the default per-IP-only one: a client hitting one
// proxied route hard gets its own budget rather than also throttling that
// same client's requests to every other configured route. knownRoutes
// bounds the route component of the identifier the same way
// MetricsMiddleware and RequestLogger bound their "route" label/field.
func RateLimiter(store echomw.RateLimiterStore, knownRoutes []string) echo.MiddlewareFunc {
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			route := metrics.NormalizeRoute(c.Request().URL.Path, knownRoutes)
			return c.RealIP() + "|" + route, nil
		},
	})
}
