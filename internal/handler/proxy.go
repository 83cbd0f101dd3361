package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"reverseproxyd/internal/config"
	"reverseproxyd/internal/proxy"
)

// RouteHandler adapts one configured route's *proxy.Server pass pipeline to
// an Echo route.
type RouteHandler struct {
	ListenPath string
	server     *proxy.Server
}

// NewRouteHandler translates a config.RouteConfig into proxy.Options and
// builds the *proxy.Server that will handle every request under its
// listen path.
func NewRouteHandler(rc config.RouteConfig, logger *slog.Logger, m *proxy.Metrics) (*RouteHandler, error) {
	opts, err := optionsFromRouteConfig(rc)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", rc.ListenPath, err)
	}

	srv := proxy.NewServer(opts, logger.With("route", rc.ListenPath))
	if m != nil {
		srv.WithMetrics(m)
	}

	// The library's own default Error listener rethrows (spec.md §7); a
	// route mounted on the ambient HTTP server needs to answer the client
	// instead, so it attaches its own listener rather than relying on the
	// default. With two listeners registered, the default no-ops and this
	// one runs.
	srv.Hooks.Error = append(srv.Hooks.Error, respondBadGateway)

	return &RouteHandler{ListenPath: rc.ListenPath, server: srv}, nil
}

func respondBadGateway(err error, req *http.Request, w interface{}, targetURL string) {
	if rw, ok := w.(http.ResponseWriter); ok && rw != nil {
		http.Error(rw, "Bad Gateway", http.StatusBadGateway)
	}
}

// Handle dispatches the request through the route's pass pipeline. It
// implements echo.HandlerFunc directly so it can be registered with
// e.Any(path, h.Handle) without an extra WrapHandler indirection.
func (h *RouteHandler) Handle(c echo.Context) error {
	h.server.ServeHTTP(c.Response(), c.Request())
	return nil
}

// optionsFromRouteConfig converts the config-layer route description into
// the engine's Options struct (spec.md §3).
func optionsFromRouteConfig(rc config.RouteConfig) (*proxy.Options, error) {
	opts := &proxy.Options{}

	if rc.Target != "" {
		t, err := proxy.ParseTarget(rc.Target)
		if err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}
		opts.Target = t
	}
	if rc.Forward != "" {
		f, err := proxy.ParseTarget(rc.Forward)
		if err != nil {
			return nil, fmt.Errorf("forward: %w", err)
		}
		opts.Forward = f
	}

	opts.WS = rc.WS
	opts.XFwd = rc.XFwd
	opts.Secure = rc.Secure
	opts.ToProxy = rc.ToProxy
	opts.PrependPath = rc.PrependPath
	opts.IgnorePath = rc.IgnorePath
	opts.LocalAddress = rc.LocalAddress
	opts.ChangeOrigin = rc.ChangeOrigin
	opts.PreserveHeaderKeyCase = rc.PreserveHeaderKeyCase
	opts.Auth = rc.Auth
	opts.HostRewrite = rc.HostRewrite
	opts.AutoRewrite = rc.AutoRewrite
	opts.ProtocolRewrite = rc.ProtocolRewrite
	opts.Method = rc.Method
	opts.FollowRedirects = rc.FollowRedirects
	opts.SelfHandleResponse = rc.SelfHandleResponse

	if rc.ProxyTimeoutSeconds > 0 {
		opts.ProxyTimeout = time.Duration(rc.ProxyTimeoutSeconds) * time.Second
	}
	if rc.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(rc.TimeoutSeconds) * time.Second
	}
	if rc.CookieDomainRewrite != "" {
		opts.CookieDomainRewrite = proxy.NewCookieRewriteString(rc.CookieDomainRewrite)
	}
	if rc.CookiePathRewrite != "" {
		opts.CookiePathRewrite = proxy.NewCookieRewriteString(rc.CookiePathRewrite)
	}

	return opts, nil
}
