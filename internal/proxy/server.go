package proxy

import (
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// WebPass is one step of the web-incoming pipeline (spec.md §4.2).
// Returning true halts the pipeline.
type WebPass func(w http.ResponseWriter, req *http.Request, options *Options, s *Server, onError ErrorCallback) bool

// WSPass is one step of the ws-incoming pipeline (spec.md §4.3).
type WSPass func(conn net.Conn, req *http.Request, options *Options, s *Server, head []byte, onError ErrorCallback) bool

// WebOutgoingPass is one step of the web-outgoing pipeline (spec.md §4.4),
// run against the upstream response before it is relayed to the client.
type WebOutgoingPass func(w http.ResponseWriter, req *http.Request, res *http.Response, options *Options) bool

// Server is a ProxyServer facade (spec.md §4.7): it owns per-instance
// copies of the web-incoming and ws-incoming pipelines, a shared
// web-outgoing pipeline, the event hook table, and default options.
type Server struct {
	Options *Options
	Hooks   *Hooks
	Logger  *slog.Logger

	webPasses         PassList[WebPass]
	wsPasses          PassList[WSPass]
	webOutgoingPasses PassList[WebOutgoingPass]

	listener net.Listener
	metrics  *Metrics
}

// NewServer builds a ProxyServer with the standard pass pipelines
// installed in spec.md's order, and PrependPath defaulted to true.
func NewServer(options *Options, logger *slog.Logger) *Server {
	if options == nil {
		options = &Options{}
	}
	if options.PrependPath == nil {
		enabled := true
		options.PrependPath = &enabled
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Options: options,
		Hooks:   &Hooks{},
		Logger:  logger.With("component", "proxy_server"),
	}

	s.webPasses = PassList[WebPass]{
		{Name: "deleteLength", Fn: passDeleteLength},
		{Name: "timeout", Fn: passTimeout},
		{Name: "XHeaders", Fn: passWebXHeaders},
		{Name: "stream", Fn: s.passWebStream},
	}
	s.wsPasses = PassList[WSPass]{
		{Name: "checkMethodAndHeader", Fn: passCheckMethodAndHeader},
		{Name: "XHeaders", Fn: passWSXHeaders},
		{Name: "stream", Fn: s.passWSStream},
	}
	s.webOutgoingPasses = PassList[WebOutgoingPass]{
		{Name: "removeChunked", Fn: passRemoveChunked},
		{Name: "setConnection", Fn: passSetConnection},
		{Name: "setRedirectHostRewrite", Fn: passSetRedirectHostRewrite},
		{Name: "writeHeaders", Fn: passWriteHeaders},
		{Name: "writeStatusCode", Fn: passWriteStatusCode},
	}

	s.registerDefaultErrorHandler()

	return s
}

// WithMetrics attaches a Metrics recorder used by the streaming passes.
func (s *Server) WithMetrics(m *Metrics) *Server {
	s.metrics = m
	return s
}

// resolveCallOptions merges per-call options over the server's defaults
// and re-parses string targets into structured form, matching
// ProxyServer.web/ws's per-call resolution step (spec.md §4.7).
func (s *Server) resolveCallOptions(override *Options) (*Options, error) {
	opts := Merge(s.Options, override)
	if opts.Target.IsEmpty() && opts.Forward.IsEmpty() {
		return nil, ErrNoTarget
	}
	return opts, nil
}

// Web runs the web-incoming pipeline for one HTTP request/response pair.
func (s *Server) Web(w http.ResponseWriter, req *http.Request, override *Options, onError ErrorCallback) error {
	opts, err := s.resolveCallOptions(override)
	if err != nil {
		if onError != nil {
			onError(err, req, w, "")
		} else {
			s.Hooks.emitError(err, req, w, "")
		}
		return err
	}

	for _, p := range s.webPasses {
		if p.Fn(w, req, opts, s, onError) {
			break
		}
	}
	return nil
}

// WS runs the ws-incoming pipeline for one upgrade request.
func (s *Server) WS(conn net.Conn, req *http.Request, head []byte, override *Options, onError ErrorCallback) error {
	opts, err := s.resolveCallOptions(override)
	if err != nil {
		_ = conn.Close()
		if onError != nil {
			onError(err, req, nil, "")
		} else {
			s.Hooks.emitError(err, req, nil, "")
		}
		return err
	}

	for _, p := range s.wsPasses {
		if p.Fn(conn, req, opts, s, head, onError) {
			break
		}
	}
	return nil
}

// BeforeWeb splices fn immediately before the pass named name in the
// web-incoming pipeline (spec.md §3, "Pass").
func (s *Server) BeforeWeb(name string, fn WebPass) error {
	list, err := s.webPasses.Before("web", name, fn)
	if err != nil {
		return err
	}
	s.webPasses = list
	return nil
}

// AfterWeb splices fn immediately after the pass named name in the
// web-incoming pipeline.
func (s *Server) AfterWeb(name string, fn WebPass) error {
	list, err := s.webPasses.After("web", name, fn)
	if err != nil {
		return err
	}
	s.webPasses = list
	return nil
}

// BeforeWS splices fn immediately before the pass named name in the
// ws-incoming pipeline.
func (s *Server) BeforeWS(name string, fn WSPass) error {
	list, err := s.wsPasses.Before("ws", name, fn)
	if err != nil {
		return err
	}
	s.wsPasses = list
	return nil
}

// AfterWS splices fn immediately after the pass named name in the
// ws-incoming pipeline.
func (s *Server) AfterWS(name string, fn WSPass) error {
	list, err := s.wsPasses.After("ws", name, fn)
	if err != nil {
		return err
	}
	s.wsPasses = list
	return nil
}

// registerDefaultErrorHandler installs the sole default Error listener; if
// it is still the only listener when an error fires, it logs and rethrows
// via panic to surface unhandled errors, mirroring the platform's default
// "unhandled 'error' event" behavior (spec.md §4.7, §7, §8 property 10).
// Callers that want to answer the client instead of terminating the
// connection must attach their own listener to s.Hooks.Error (or pass an
// onError callback to Web/WS) — the default never degrades into a normal
// response on its own.
func (s *Server) registerDefaultErrorHandler() {
	s.Hooks.Error = []func(err error, req *http.Request, w interface{}, targetURL string){
		s.defaultErrorHandler,
	}
}

func (s *Server) defaultErrorHandler(err error, req *http.Request, w interface{}, targetURL string) {
	if len(s.Hooks.Error) != 1 {
		return
	}
	s.Logger.Error("unhandled proxy error, rethrowing", "err", err, "target", targetURL)
	panic(err)
}

// Close releases the listener started by Listen, if any.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.listener = nil
	return err
}

// Listen creates a plain or TLS TCP listener and serves both plain
// requests (via Web) and, when Options.WS is set, upgrade requests (via
// WS), matching spec.md §4.7's `listen` helper. It blocks until the
// listener is closed.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if s.Options.SSL != nil {
		cert, err := tls.LoadX509KeyPair(s.Options.SSL.CertFile, s.Options.SSL.KeyFile)
		if err != nil {
			_ = ln.Close()
			return err
		}
		ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12})
	}
	s.listener = ln

	srv := &http.Server{Handler: http.HandlerFunc(s.ServeHTTP), ConnContext: ConnContext}
	return srv.Serve(ln)
}

// ServeHTTP makes Server usable as a plain http.Handler: any mount point
// (a raw listener, an http.ServeMux route, or a wrapped framework handler
// like Echo's echo.WrapHandler) gets the same WS-hijack-or-Web dispatch
// Listen uses internally.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if s.Options.WS && isUpgradeRequest(req) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "upgrade unsupported", http.StatusInternalServerError)
			return
		}
		conn, buf, err := hj.Hijack()
		if err != nil {
			http.Error(w, "hijack failed", http.StatusInternalServerError)
			return
		}
		var head []byte
		if buf != nil && buf.Reader.Buffered() > 0 {
			head = make([]byte, buf.Reader.Buffered())
			_, _ = buf.Reader.Read(head)
		}
		_ = s.WS(conn, req, head, nil, nil)
		return
	}
	_ = s.Web(w, req, nil, nil)
}

// isUpgradeRequest reports whether req is a WebSocket upgrade attempt,
// independent of validity (checkMethodAndHeader does the strict check).
func isUpgradeRequest(req *http.Request) bool {
	return strings.EqualFold(req.Header.Get("Upgrade"), "websocket")
}
