package proxy

import (
	"encoding/base64"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpguts"
)

// Role selects which configured upstream setupOutgoing builds a descriptor
// for.
type Role int

const (
	RoleTarget Role = iota
	RoleForward
)

// Outgoing is the upstream-request descriptor setupOutgoing produces:
// everything the streaming pass needs to open a connection and issue a
// request, independent of any particular HTTP client implementation.
type Outgoing struct {
	Host     string
	Hostname string
	Port     string

	SocketPath string

	Cert           string
	Key            string
	Passphrase     string
	CA             string
	Ciphers        string
	SecureProtocol string
	PFX            string

	RejectUnauthorized bool

	Method  string
	Path    string
	Headers http.Header

	Agent        *http.Client
	LocalAddress string

	Protocol string // scheme of the selected target, for isSSL decisions downstream
}

// setupOutgoing deterministically builds the upstream request descriptor
// from configuration and the client request (spec.md §4.1).
func setupOutgoing(options *Options, req *http.Request, role Role) (*Outgoing, error) {
	target := options.Target
	if role == RoleForward {
		target = options.Forward
	}
	if target == nil {
		target = &Target{}
	}

	out := &Outgoing{Protocol: target.Protocol}

	// 1. Port.
	switch {
	case target.Port != "":
		out.Port = target.Port
	case isSecureScheme(target.Protocol):
		out.Port = "443"
	default:
		out.Port = "80"
	}

	// 2. TLS / connection fields.
	out.Host = target.Host
	out.Hostname = target.Hostname
	out.SocketPath = target.SocketPath
	out.PFX = target.PFX
	out.Key = target.Key
	out.Passphrase = target.Passphrase
	out.Cert = target.Cert
	out.CA = target.CA
	out.Ciphers = target.Ciphers
	out.SecureProtocol = target.SecureProtocol

	// 3. Method.
	out.Method = options.Method
	if out.Method == "" {
		out.Method = req.Method
	}

	// 4. Headers: shallow copy of req.Headers, then options.Headers wins.
	out.Headers = req.Header.Clone()
	if out.Headers == nil {
		out.Headers = make(http.Header)
	}
	for k, vv := range options.Headers {
		out.Headers[k] = append([]string(nil), vv...)
	}
	if options.Auth != "" {
		enc := base64.StdEncoding.EncodeToString([]byte(options.Auth))
		out.Headers.Set("Authorization", "Basic "+enc)
	}

	// 5. TLS CA propagation from listener-side SSL config.
	if options.SSL != nil && options.SSL.CAFile != "" && out.CA == "" {
		out.CA = options.SSL.CAFile
	}

	// 6. Reject-unauthorized when the target requires TLS.
	if isSecureScheme(target.Protocol) {
		out.RejectUnauthorized = options.SecureEnabled()
	} else {
		out.RejectUnauthorized = true
	}

	// 7. Agent / Connection header.
	out.Agent = options.Agent
	if out.Agent == nil {
		if !hasUpgradeToken(out.Headers.Get("Connection")) {
			out.Headers.Set("Connection", "close")
		}
	}

	// 8. Local address.
	out.LocalAddress = options.LocalAddress

	// 9. Path.
	targetPath := ""
	if options.PrependPathEnabled() {
		targetPath = target.Path
	}
	clientPath := ""
	if options.ToProxy {
		// req.URL.RequestURI() (net/url.URL.RequestURI) always reconstructs
		// EscapedPath()+"?"+RawQuery, dropping scheme/host even when the
		// request arrived in absolute-form; req.RequestURI is the literal
		// request-target off the wire and is what "forward verbatim to
		// support chaining proxies" requires.
		clientPath = req.RequestURI
		if clientPath == "" {
			clientPath = req.URL.RequestURI()
		}
	} else if u, err := url.Parse(req.URL.RequestURI()); err == nil {
		clientPath = u.Path
		if u.RawQuery != "" {
			clientPath += "?" + u.RawQuery
		}
	}
	if options.IgnorePath {
		clientPath = ""
	}
	out.Path = urlJoin(targetPath, clientPath)

	// 10. Host rewrite.
	if options.ChangeOrigin {
		_, _, splitErr := net.SplitHostPort(out.Host)
		if requiresPort(out.Port, target.Protocol) && splitErr != nil {
			out.Headers.Set("Host", out.Host+":"+out.Port)
		} else {
			out.Headers.Set("Host", out.Host)
		}
	}

	return out, nil
}

// hasUpgradeToken reports whether the Connection header value contains an
// "upgrade" token delimited by commas or the string boundary, matching
// spec.md §4.1 step 7's `(^|,)\s*upgrade\s*($|,)/i` regex equivalent. The
// literal string "not upgrade" must not match: token matching, not
// substring matching, is what's required, which is exactly what
// httpguts.HeaderValuesContainsToken implements for Connection/Upgrade
// header semantics.
func hasUpgradeToken(connectionHeader string) bool {
	if connectionHeader == "" {
		return false
	}
	return httpguts.HeaderValuesContainsToken([]string{connectionHeader}, "upgrade")
}
