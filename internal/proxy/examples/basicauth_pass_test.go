package examples

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"reverseproxyd/internal/proxy"
)

func TestNewBasicAuthPass_RejectsMissingCredentials(t *testing.T) {
	pass := NewBasicAuthPass("test", func(user, pass string) bool { return true })

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	halt := pass(rec, req, &proxy.Options{}, nil, nil)
	if !halt {
		t.Error("expected the pipeline to halt without credentials")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected a WWW-Authenticate challenge header")
	}
}

func TestNewBasicAuthPass_RejectsBadCredentials(t *testing.T) {
	pass := NewBasicAuthPass("test", func(user, pass string) bool { return false })

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.SetBasicAuth("user", "wrong")
	rec := httptest.NewRecorder()

	if halt := pass(rec, req, &proxy.Options{}, nil, nil); !halt {
		t.Error("expected the pipeline to halt for a failed check")
	}
}

func TestNewBasicAuthPass_AcceptsValidCredentials(t *testing.T) {
	pass := NewBasicAuthPass("test", func(user, pw string) bool {
		return user == "admin" && pw == "secret"
	})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()

	if halt := pass(rec, req, &proxy.Options{}, nil, nil); halt {
		t.Error("expected the pipeline to continue for valid credentials")
	}
	if rec.Code != http.StatusOK && rec.Code != 0 {
		t.Errorf("status = %d, expected no error response written", rec.Code)
	}
}
