package proxy

import (
	"io"
	"net/http"
	"time"
)

// CookieRewrite configures Set-Cookie domain/path rewriting (spec.md §4.8).
// It is either disabled, a single string (sugar for {"*": s}), or an
// explicit old-value -> new-value mapping. An empty new value removes the
// attribute entirely.
type CookieRewrite struct {
	Disabled bool
	Mapping  map[string]string
}

// NewCookieRewriteString builds the sugar form: every old value maps to s.
func NewCookieRewriteString(s string) CookieRewrite {
	return CookieRewrite{Mapping: map[string]string{"*": s}}
}

// NewCookieRewriteMap builds an explicit old->new mapping.
func NewCookieRewriteMap(m map[string]string) CookieRewrite {
	return CookieRewrite{Mapping: m}
}

// enabled reports whether any rewriting should occur.
func (c CookieRewrite) enabled() bool {
	return !c.Disabled && c.Mapping != nil
}

// Options is the per-call / per-server proxy configuration (spec.md §3).
type Options struct {
	Target  *Target // primary upstream; required unless Forward is set
	Forward *Target // secondary upstream; response discarded

	// Agent is an opaque connection-pool handle passed to the HTTP
	// client. Nil means "no pooling" and forces Connection: close.
	Agent *http.Client

	WS bool // enables WebSocket upgrade handling on the Listen() helper

	XFwd   bool
	Secure *bool // nil defaults to true (verify upstream TLS)

	ToProxy      bool
	PrependPath  *bool // nil defaults to true
	IgnorePath   bool
	LocalAddress string

	ChangeOrigin           bool
	PreserveHeaderKeyCase  bool
	Auth                   string // "user:pass"

	HostRewrite      string
	AutoRewrite      bool
	ProtocolRewrite  string

	CookieDomainRewrite CookieRewrite
	CookiePathRewrite   CookieRewrite

	Headers http.Header
	Method  string

	ProxyTimeout time.Duration
	Timeout      time.Duration

	FollowRedirects bool

	// SelfHandleResponse, when true, skips the web-outgoing pipeline and
	// body piping; the caller is expected to consume ProxyRes itself.
	SelfHandleResponse bool

	// Buffer, if set, is piped to the upstream instead of the client
	// request body (pre-buffered bodies, request replay, etc.).
	Buffer io.Reader

	// SSL carries listener-side TLS configuration consumed only by
	// Listen(); the streaming engine never reads it.
	SSL *ListenTLSConfig
}

// ListenTLSConfig is TLS material for the Listen() convenience wrapper,
// consumed only there (spec.md §1: TLS certificate loading for the listener
// side is an external collaborator).
type ListenTLSConfig struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

// PrependPathEnabled returns the effective PrependPath, defaulting to true.
func (o *Options) PrependPathEnabled() bool {
	return o.PrependPath == nil || *o.PrependPath
}

// SecureEnabled returns the effective Secure flag, defaulting to true.
func (o *Options) SecureEnabled() bool {
	return o.Secure == nil || *o.Secure
}

// Clone returns a shallow copy of Options suitable for per-call
// merging: header maps are copied so a per-call override cannot mutate the
// server-wide default.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	c := *o
	if o.Headers != nil {
		c.Headers = o.Headers.Clone()
	}
	return &c
}

// Merge overlays non-zero fields of override onto a clone of the base
// options, matching ProxyServer.Web/WS's "merge per-call options over
// global options" behavior (spec.md §4.7).
func Merge(base, override *Options) *Options {
	out := base.Clone()
	if override == nil {
		return out
	}
	if override.Target != nil {
		out.Target = override.Target
	}
	if override.Forward != nil {
		out.Forward = override.Forward
	}
	if override.Agent != nil {
		out.Agent = override.Agent
	}
	if override.WS {
		out.WS = true
	}
	if override.XFwd {
		out.XFwd = true
	}
	if override.Secure != nil {
		out.Secure = override.Secure
	}
	if override.ToProxy {
		out.ToProxy = true
	}
	if override.PrependPath != nil {
		out.PrependPath = override.PrependPath
	}
	if override.IgnorePath {
		out.IgnorePath = true
	}
	if override.LocalAddress != "" {
		out.LocalAddress = override.LocalAddress
	}
	if override.ChangeOrigin {
		out.ChangeOrigin = true
	}
	if override.PreserveHeaderKeyCase {
		out.PreserveHeaderKeyCase = true
	}
	if override.Auth != "" {
		out.Auth = override.Auth
	}
	if override.HostRewrite != "" {
		out.HostRewrite = override.HostRewrite
	}
	if override.AutoRewrite {
		out.AutoRewrite = true
	}
	if override.ProtocolRewrite != "" {
		out.ProtocolRewrite = override.ProtocolRewrite
	}
	if override.CookieDomainRewrite.enabled() {
		out.CookieDomainRewrite = override.CookieDomainRewrite
	}
	if override.CookiePathRewrite.enabled() {
		out.CookiePathRewrite = override.CookiePathRewrite
	}
	if override.Headers != nil {
		out.Headers = override.Headers
	}
	if override.Method != "" {
		out.Method = override.Method
	}
	if override.ProxyTimeout != 0 {
		out.ProxyTimeout = override.ProxyTimeout
	}
	if override.Timeout != 0 {
		out.Timeout = override.Timeout
	}
	if override.FollowRedirects {
		out.FollowRedirects = true
	}
	if override.SelfHandleResponse {
		out.SelfHandleResponse = true
	}
	if override.Buffer != nil {
		out.Buffer = override.Buffer
	}
	if override.SSL != nil {
		out.SSL = override.SSL
	}
	return out
}
