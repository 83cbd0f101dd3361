package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"reverseproxyd/internal/config"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rc := config.RouteConfig{ListenPath: "/api", Target: upstream.URL}
	rh, err := NewRouteHandler(rc, logger, nil)
	if err != nil {
		t.Fatalf("NewRouteHandler: %v", err)
	}

	cfg := &config.Config{Routes: []config.RouteConfig{rc}}
	health := NewHealthHandler(cfg, "test")

	e := echo.New()
	admin := e.Group("")
	RegisterRoutes(e, admin, []*RouteHandler{rh}, health)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET /healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"GET /proxy/status", http.MethodGet, "/proxy/status", http.StatusOK},
		{"GET /api/search", http.MethodGet, "/api/search?query=test", http.StatusOK},
		{"POST /api/search", http.MethodPost, "/api/search", http.StatusOK},
		{"GET /unknown returns 404", http.MethodGet, "/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
