package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"reverseproxyd/internal/config"
	"reverseproxyd/internal/proxy"
)

func TestRouteHandler_Handle_GET(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") != "test" {
			t.Errorf("query = %q, want %q", r.URL.Query().Get("query"), "test")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer upstream.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rh, err := NewRouteHandler(config.RouteConfig{ListenPath: "/api", Target: upstream.URL}, logger, nil)
	if err != nil {
		t.Fatalf("NewRouteHandler: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/search?query=test", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := rh.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"result":"ok"`) {
		t.Errorf("body = %q, want it to contain upstream payload", rec.Body.String())
	}
}

func TestRouteHandler_Handle_POST(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("received:" + string(body)))
	}))
	defer upstream.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rh, err := NewRouteHandler(config.RouteConfig{ListenPath: "/api", Target: upstream.URL}, logger, nil)
	if err != nil {
		t.Fatalf("NewRouteHandler: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader("hello"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := rh.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "received:hello" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "received:hello")
	}
}

func TestRouteHandler_Handle_UpstreamUnreachable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rh, err := NewRouteHandler(config.RouteConfig{ListenPath: "/api", Target: "http://127.0.0.1:1"}, logger, nil)
	if err != nil {
		t.Fatalf("NewRouteHandler: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/search", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := rh.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestOptionsFromRouteConfig(t *testing.T) {
	prepend := false
	rc := config.RouteConfig{
		ListenPath:            "/api",
		Target:                "https://backend.internal:8443/base",
		XFwd:                  true,
		ChangeOrigin:          true,
		PreserveHeaderKeyCase: true,
		PrependPath:           &prepend,
		ProxyTimeoutSeconds:   5,
		TimeoutSeconds:        10,
		CookieDomainRewrite:   "backend.internal",
	}

	opts, err := optionsFromRouteConfig(rc)
	if err != nil {
		t.Fatalf("optionsFromRouteConfig: %v", err)
	}
	if opts.Target == nil || opts.Target.Hostname != "backend.internal" {
		t.Errorf("Target = %+v, want hostname backend.internal", opts.Target)
	}
	if !opts.XFwd || !opts.ChangeOrigin || !opts.PreserveHeaderKeyCase {
		t.Error("expected XFwd/ChangeOrigin/PreserveHeaderKeyCase to be true")
	}
	if opts.PrependPathEnabled() {
		t.Error("expected PrependPath override to disable path prepending")
	}
	if opts.ProxyTimeout.Seconds() != 5 {
		t.Errorf("ProxyTimeout = %v, want 5s", opts.ProxyTimeout)
	}
	if opts.Timeout.Seconds() != 10 {
		t.Errorf("Timeout = %v, want 10s", opts.Timeout)
	}
}

func TestOptionsFromRouteConfig_InvalidTarget(t *testing.T) {
	rc := config.RouteConfig{ListenPath: "/api", Target: "://bad-url"}
	if _, err := optionsFromRouteConfig(rc); err == nil {
		t.Fatal("expected error for malformed target URL")
	}
}

func TestNewRouteHandler_WithMetrics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := proxy.NewMetrics(prometheus.NewRegistry())
	rh, err := NewRouteHandler(config.RouteConfig{ListenPath: "/api", Target: "https://backend.internal"}, logger, m)
	if err != nil {
		t.Fatalf("NewRouteHandler: %v", err)
	}
	if rh.server == nil {
		t.Fatal("expected server to be constructed")
	}
}
