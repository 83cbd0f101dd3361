package proxy

import (
	"net"
	"net/http"
)

// Hooks is the typed event surface described in spec.md §6. Each field is
// a slice of listeners rather than a single emitter instance, so multiple
// observers can be registered without one overwriting another; DESIGN.md
// records why this repo prefers a typed table over an untyped event-bus
// library. A nil slice means "no listeners".
type Hooks struct {
	Start      []func(req *http.Request, target *Target)
	ProxyReq   []func(outReq *http.Request, req *http.Request, w http.ResponseWriter, options *Options)
	ProxyReqWS []func(outReq *http.Request, req *http.Request, conn net.Conn, options *Options, head []byte)
	ProxyRes   []func(res *http.Response, req *http.Request, w http.ResponseWriter)
	Open       []func(upstream net.Conn)
	Close      []func(res *http.Response, upstream net.Conn, head []byte)
	End        []func(req *http.Request, w http.ResponseWriter, res *http.Response)
	Error      []func(err error, req *http.Request, w interface{}, targetURL string)
	ECONNRESET []func(err error, req *http.Request, w http.ResponseWriter, targetURL string)
}

func (h *Hooks) emitStart(req *http.Request, target *Target) {
	for _, fn := range h.Start {
		fn(req, target)
	}
}

func (h *Hooks) emitProxyReq(outReq, req *http.Request, w http.ResponseWriter, options *Options) {
	for _, fn := range h.ProxyReq {
		fn(outReq, req, w, options)
	}
}

func (h *Hooks) emitProxyReqWS(outReq, req *http.Request, conn net.Conn, options *Options, head []byte) {
	for _, fn := range h.ProxyReqWS {
		fn(outReq, req, conn, options, head)
	}
}

func (h *Hooks) emitProxyRes(res *http.Response, req *http.Request, w http.ResponseWriter) {
	for _, fn := range h.ProxyRes {
		fn(res, req, w)
	}
}

func (h *Hooks) emitOpen(upstream net.Conn) {
	for _, fn := range h.Open {
		fn(upstream)
	}
}

func (h *Hooks) emitClose(res *http.Response, upstream net.Conn, head []byte) {
	for _, fn := range h.Close {
		fn(res, upstream, head)
	}
}

func (h *Hooks) emitEnd(req *http.Request, w http.ResponseWriter, res *http.Response) {
	for _, fn := range h.End {
		fn(req, w, res)
	}
}

// emitError calls every Error listener in registration order. It returns
// nothing; the "rethrow when only the default listener is registered"
// policy lives in Server.defaultErrorHandler, which checks len(Hooks.Error).
func (h *Hooks) emitError(err error, req *http.Request, w interface{}, targetURL string) {
	for _, fn := range h.Error {
		fn(err, req, w, targetURL)
	}
}

func (h *Hooks) emitECONNRESET(err error, req *http.Request, w http.ResponseWriter, targetURL string) {
	for _, fn := range h.ECONNRESET {
		fn(err, req, w, targetURL)
	}
}
