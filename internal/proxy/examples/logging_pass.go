// Package examples provides small, illustrative passes that third parties
// can splice into a proxy.Server via Before/After — grounded in the
// teacher repo's internal/middleware package layout: one file per
// concern, a constructor returning the hook function.
package examples

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"reverseproxyd/internal/proxy"
)

// NewLoggingPass returns a web-incoming pass that logs each proxied
// request's method and path before it reaches the stream pass. Intended
// to be spliced in with server.BeforeWeb("stream", NewLoggingPass(logger)).
func NewLoggingPass(logger *slog.Logger) proxy.WebPass {
	return func(w http.ResponseWriter, req *http.Request, options *proxy.Options, s *proxy.Server, onError proxy.ErrorCallback) bool {
		logger.Info("proxying request",
			"method", req.Method,
			"path", req.URL.Path,
			"remote", req.RemoteAddr,
			"time", time.Now().Format(time.RFC3339),
		)
		return false
	}
}

// NewWSLoggingPass is the ws-incoming analogue of NewLoggingPass.
func NewWSLoggingPass(logger *slog.Logger) proxy.WSPass {
	return func(conn net.Conn, req *http.Request, options *proxy.Options, s *proxy.Server, head []byte, onError proxy.ErrorCallback) bool {
		logger.Info("proxying websocket upgrade",
			"path", req.URL.Path,
			"remote", req.RemoteAddr,
		)
		return false
	}
}
