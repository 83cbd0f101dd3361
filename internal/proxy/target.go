// Package proxy implements a programmable HTTP/HTTPS/WebSocket reverse
// proxy engine: an ordered pass pipeline that rewrites requests, dispatches
// them to a configured upstream target, and streams the response back,
// including WebSocket upgrade splicing.
package proxy

import (
	"net/url"
	"strings"
)

// Target describes an upstream endpoint: either a bare URL string (resolved
// lazily into these fields on first use) or a fully structured record
// carrying TLS material for the upstream connection.
type Target struct {
	Protocol string // e.g. "http:", "https:", "ws:", "wss:"
	Host     string // host[:port]
	Hostname string
	Port     string
	Path     string // pathname + search, matching net/url's legacy convention

	SocketPath string // optional Unix-domain socket path

	// TLS material for the upstream connection.
	Cert           string
	Key            string
	Passphrase     string
	CA             string
	Ciphers        string
	SecureProtocol string
	PFX            string
}

// ParseTarget parses a target URL string into a structured Target. It
// mirrors the legacy URL parser convention spec.md depends on: Path is
// pathname+search, not just pathname.
func ParseTarget(raw string) (*Target, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	t := &Target{
		Protocol: u.Scheme + ":",
		Hostname: u.Hostname(),
		Port:     u.Port(),
	}
	if u.Host != "" {
		t.Host = u.Host
	} else {
		t.Host = t.Hostname
	}
	if u.RawQuery != "" {
		t.Path = u.Path + "?" + u.RawQuery
	} else {
		t.Path = u.Path
	}
	return t, nil
}

// IsEmpty reports whether the target resolves to nothing usable: neither a
// host nor a Unix socket path.
func (t *Target) IsEmpty() bool {
	return t == nil || (t.Host == "" && t.SocketPath == "")
}

// isSecureScheme reports whether the scheme requires TLS on the wire.
// Matches the /^https|wss/ pattern from spec.md §4.1 step 1 (colon
// optional): any scheme starting with "https" or "wss".
func isSecureScheme(scheme string) bool {
	s := strings.ToLower(strings.TrimSuffix(scheme, ":"))
	return strings.HasPrefix(s, "https") || strings.HasPrefix(s, "wss")
}

// isSSL reports whether a target's protocol requires a TLS dial.
func isSSL(protocol string) bool {
	s := strings.ToLower(strings.TrimSuffix(protocol, ":"))
	return s == "https" || s == "wss"
}

// requiresPort reports whether port is non-default for the given scheme,
// per the "requires-port" heuristic in spec.md §4.1 step 10: 80 for
// http/ws, 443 for https/wss.
func requiresPort(port, scheme string) bool {
	if port == "" {
		return false
	}
	s := strings.ToLower(strings.TrimSuffix(scheme, ":"))
	switch s {
	case "http", "ws":
		return port != "80"
	case "https", "wss":
		return port != "443"
	default:
		return true
	}
}
