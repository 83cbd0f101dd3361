package proxy

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// passDeleteLength implements the deleteLength pass (spec.md §4.2): for
// DELETE/OPTIONS requests with no Content-Length, sets it to 0 and drops
// Transfer-Encoding so upstream parsers don't hang waiting for a chunked
// body that will never arrive.
func passDeleteLength(w http.ResponseWriter, req *http.Request, options *Options, s *Server, onError ErrorCallback) bool {
	if (req.Method == http.MethodDelete || req.Method == http.MethodOptions) && req.Header.Get("Content-Length") == "" {
		req.Header.Set("Content-Length", "0")
		req.Header.Del("Transfer-Encoding")
	}
	return false
}

// passTimeout implements the timeout pass (spec.md §4.2): arms an idle
// timeout on the incoming client connection when options.Timeout is set.
func passTimeout(w http.ResponseWriter, req *http.Request, options *Options, s *Server, onError ErrorCallback) bool {
	if options.Timeout <= 0 {
		return false
	}
	if conn := connFromRequest(req); conn != nil {
		_ = conn.SetDeadline(time.Now().Add(options.Timeout))
	}
	return false
}

// passWebXHeaders implements the XHeaders pass for the web-incoming
// pipeline (spec.md §4.2): appends X-Forwarded-{For,Port,Proto,Host}.
func passWebXHeaders(w http.ResponseWriter, req *http.Request, options *Options, s *Server, onError ErrorCallback) bool {
	if !options.XFwd {
		return false
	}
	applyXForwarded(req.Header, req, schemeOf(req) == "https", remoteHost(req))
	return false
}

// applyXForwarded appends the four X-Forwarded-* headers to header, per
// spec.md §4.2. isHTTPS chooses "https"/"http" for X-Forwarded-Proto (the
// ws-incoming pipeline uses its own variant emitting ws/wss and no
// X-Forwarded-Host, see ws_incoming.go).
func applyXForwarded(header http.Header, req *http.Request, isHTTPS bool, remote string) {
	appendHeader(header, "X-Forwarded-For", remote)
	appendHeader(header, "X-Forwarded-Port", forwardedPort(req, isHTTPS))
	proto := "http"
	if isHTTPS {
		proto = "https"
	}
	appendHeader(header, "X-Forwarded-Proto", proto)

	host := header.Get("X-Forwarded-Host")
	if host == "" {
		host = req.Host
	}
	header.Set("X-Forwarded-Host", host)
}

// appendHeader appends value to an existing comma-separated header value,
// or sets it if absent, preserving any existing forwarding chain.
func appendHeader(header http.Header, key, value string) {
	if value == "" {
		return
	}
	if existing := header.Get(key); existing != "" {
		header.Set(key, existing+", "+value)
	} else {
		header.Set(key, value)
	}
}

// remoteHost extracts the client address (without port) from the request.
func remoteHost(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// forwardedPort derives the effective port for X-Forwarded-Port from the
// Host header, defaulting to 443/80 by scheme when Host carries none.
func forwardedPort(req *http.Request, isHTTPS bool) string {
	host := req.Host
	if idx := strings.LastIndex(host, ":"); idx >= 0 && !strings.Contains(host[idx:], "]") {
		return host[idx+1:]
	}
	if isHTTPS {
		return "443"
	}
	return "80"
}

// schemeOf returns "https" when the request arrived over TLS.
func schemeOf(req *http.Request) string {
	if req.TLS != nil {
		return "https"
	}
	return "http"
}

// connContextKey is the context key under which ConnContext stashes the
// raw net.Conn for a request, so passes can reach the socket without
// net/http exposing it directly.
type connContextKey struct{}

// ConnContext should be installed as http.Server.ConnContext so the
// timeout pass can arm a deadline on the underlying connection (see
// cmd/reverseproxyd). Without it, connFromRequest returns nil and the
// timeout pass is a documented no-op.
func ConnContext(ctx context.Context, c net.Conn) context.Context {
	return context.WithValue(ctx, connContextKey{}, c)
}

// connFromRequest is a best-effort accessor for the raw connection behind
// an *http.Request, used to arm socket-level deadlines (spec.md §4.2,
// "arm an idle timeout on the incoming client socket").
func connFromRequest(req *http.Request) net.Conn {
	if c, ok := req.Context().Value(connContextKey{}).(net.Conn); ok {
		return c
	}
	return nil
}
