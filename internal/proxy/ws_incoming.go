package proxy

import (
	"net"
	"net/http"
	"strings"
)

// passCheckMethodAndHeader is the single gatekeeper for malformed
// upgrades (spec.md §4.3): rejects anything that isn't a GET with an
// Upgrade: websocket header, destroying the client socket without firing
// any event (spec.md §7, MalformedUpgrade).
func passCheckMethodAndHeader(conn net.Conn, req *http.Request, options *Options, s *Server, head []byte, onError ErrorCallback) bool {
	if req.Method != http.MethodGet {
		_ = conn.Close()
		return true
	}
	upgrade := req.Header.Get("Upgrade")
	if upgrade == "" || !strings.EqualFold(strings.TrimSpace(upgrade), "websocket") {
		_ = conn.Close()
		return true
	}
	return false
}

// passWSXHeaders implements the XHeaders pass for the ws-incoming
// pipeline (spec.md §4.3): identical to the web variant but emits ws/wss
// in X-Forwarded-Proto and never sets X-Forwarded-Host.
func passWSXHeaders(conn net.Conn, req *http.Request, options *Options, s *Server, head []byte, onError ErrorCallback) bool {
	if !options.XFwd {
		return false
	}
	isHTTPS := schemeOf(req) == "https"
	appendHeader(req.Header, "X-Forwarded-For", remoteHost(req))
	appendHeader(req.Header, "X-Forwarded-Port", forwardedPort(req, isHTTPS))
	proto := "ws"
	if isHTTPS {
		proto = "wss"
	}
	appendHeader(req.Header, "X-Forwarded-Proto", proto)
	return false
}
