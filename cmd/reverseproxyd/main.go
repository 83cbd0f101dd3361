// Command reverseproxyd runs the programmable HTTP/HTTPS/WebSocket
// reverse proxy engine as a standalone daemon: it reads a TOML config file
// describing one or more routes and fronts each with its own pass
// pipeline behind a single Echo listener.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"golang.org/x/time/rate"

	"reverseproxyd/internal/config"
	"reverseproxyd/internal/handler"
	"reverseproxyd/internal/metrics"
	"reverseproxyd/internal/middleware"
	"reverseproxyd/internal/proxy"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("reverseproxyd"),
		kong.Description("Programmable HTTP/HTTPS/WebSocket reverse proxy."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			newAppMetrics,
			newProxyMetrics,
			newRouteHandlers,
			handler.NewHealthHandler,
			newEcho,
			newAdminGroup,
		),
		fx.Invoke(handler.RegisterRoutes, mountMetrics, warnConfigPermissions, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

// newAppMetrics builds the ambient listener-level metrics. Its registry is
// shared with the pass pipeline's own metrics (newProxyMetrics) so a single
// /metrics endpoint exposes both.
func newAppMetrics() *metrics.Metrics {
	return metrics.New()
}

// newProxyMetrics registers the pass pipeline's collectors against the
// same registry as the ambient listener metrics.
func newProxyMetrics(m *metrics.Metrics) *proxy.Metrics {
	return proxy.NewMetrics(m.Registry)
}

// newRouteHandlers builds one *handler.RouteHandler per configured route.
func newRouteHandlers(cfg *config.Config, logger *slog.Logger, pm *proxy.Metrics) ([]*handler.RouteHandler, error) {
	routes := make([]*handler.RouteHandler, 0, len(cfg.Routes))
	for _, rc := range cfg.Routes {
		rh, err := handler.NewRouteHandler(rc, logger, pm)
		if err != nil {
			return nil, err
		}
		routes = append(routes, rh)
	}
	return routes, nil
}

// knownRoutePaths lists the daemon's own admin routes plus every
// configured listen_path, bounding the metrics middleware's route label.
func knownRoutePaths(cfg *config.Config) []string {
	paths := []string{"/healthz", "/proxy/status"}
	if cfg.Metrics.Enabled {
		paths = append(paths, cfg.Metrics.Path)
	}
	for _, r := range cfg.Routes {
		paths = append(paths, r.ListenPath)
	}
	return paths
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout is disabled (0) to avoid cutting off long-running
	// streamed or WebSocket responses. Protection is instead provided by
	// each route's own ProxyTimeout/Timeout, ReadTimeout, and IdleTimeout.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.ConnContext = proxy.ConnContext

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger, knownRoutePaths(cfg)))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.MetricsMiddleware(m, knownRoutePaths(cfg)))

	if cfg.Server.RateLimit.Enabled {
		store := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit.RequestsPerSecond))
		e.Use(middleware.RateLimiter(store, knownRoutePaths(cfg)))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

// newAdminGroup scopes SecurityHeaders to the daemon's own health/status/
// metrics endpoints: proxied routes must not have their headers touched by
// anything outside their own pass pipeline.
func newAdminGroup(e *echo.Echo) *echo.Group {
	return e.Group("", middleware.SecurityHeaders())
}

// mountMetrics exposes the shared Prometheus registry at cfg.Metrics.Path
// when metrics are enabled.
func mountMetrics(admin *echo.Group, cfg *config.Config, m *metrics.Metrics) {
	if !cfg.Metrics.Enabled {
		return
	}
	admin.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", "addr", addr, "routes", len(cfg.Routes))
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
