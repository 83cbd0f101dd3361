package proxy

import "testing"

func TestURLJoin(t *testing.T) {
	tests := []struct {
		name string
		segs []string
		want string
	}{
		{"empty segments", nil, ""},
		{"single segment", []string{"/api"}, "/api"},
		{"joins with slash", []string{"/api", "search"}, "/api/search"},
		{"collapses double slash", []string{"/api/", "/search"}, "/api/search"},
		{"skips empty segments", []string{"/api", "", "search"}, "/api/search"},
		{"preserves scheme double slash", []string{"http://backend.internal", "search"}, "http://backend.internal/search"},
		{"preserves query on last segment", []string{"/api", "search?q=1&x=2"}, "/api/search?q=1&x=2"},
		{"does not touch earlier query strings", []string{"/api?a=1", "search"}, "/api?a=1/search"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := urlJoin(tt.segs...); got != tt.want {
				t.Errorf("urlJoin(%v) = %q, want %q", tt.segs, got, tt.want)
			}
		})
	}
}
