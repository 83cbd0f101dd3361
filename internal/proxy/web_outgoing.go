package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// redirectRewriteStatuses are the statuses setRedirectHostRewrite acts on
// (spec.md §4.4).
var redirectRewriteStatuses = map[int]bool{
	201: true, 301: true, 302: true, 307: true, 308: true,
}

// passRemoveChunked strips Transfer-Encoding from the upstream response on
// HTTP/1.0 incoming requests before relaying it (spec.md §4.4).
func passRemoveChunked(w http.ResponseWriter, req *http.Request, res *http.Response, options *Options) bool {
	if req.ProtoAtLeast(1, 0) && !req.ProtoAtLeast(1, 1) {
		res.Header.Del("Transfer-Encoding")
	}
	return false
}

// passSetConnection sets the outgoing Connection header per spec.md §4.4:
// HTTP/1.0 mirrors the incoming Connection header (or "close"); otherwise,
// if the upstream response has none, default to the client's value or
// "keep-alive".
func passSetConnection(w http.ResponseWriter, req *http.Request, res *http.Response, options *Options) bool {
	is10 := req.ProtoAtLeast(1, 0) && !req.ProtoAtLeast(1, 1)
	is20 := req.ProtoMajor == 2

	switch {
	case is10:
		if c := req.Header.Get("Connection"); c != "" {
			res.Header.Set("Connection", c)
		} else {
			res.Header.Set("Connection", "close")
		}
	case !is20:
		if res.Header.Get("Connection") == "" {
			if c := req.Header.Get("Connection"); c != "" {
				res.Header.Set("Connection", c)
			} else {
				res.Header.Set("Connection", "keep-alive")
			}
		}
	}
	return false
}

// passSetRedirectHostRewrite rewrites Location on redirect responses when
// configured and the redirect host matches the target host (spec.md §4.4,
// §8 property 7).
func passSetRedirectHostRewrite(w http.ResponseWriter, req *http.Request, res *http.Response, options *Options) bool {
	if options.HostRewrite == "" && !options.AutoRewrite && options.ProtocolRewrite == "" {
		return false
	}
	if options.Target == nil {
		return false
	}
	location := res.Header.Get("Location")
	if location == "" {
		return false
	}
	if !redirectRewriteStatuses[res.StatusCode] {
		return false
	}

	targetHost := options.Target.Host
	locURL, err := url.Parse(location)
	if err != nil {
		return false
	}
	// A relative Location (locURL.Host == "") is same-origin by definition
	// and must be left alone: rewriting it would turn a same-origin
	// redirect into one that points at a different host.
	if locURL.Host != targetHost {
		return false
	}

	if options.HostRewrite != "" {
		locURL.Host = options.HostRewrite
	} else if options.AutoRewrite {
		locURL.Host = req.Host
	}
	if options.ProtocolRewrite != "" {
		locURL.Scheme = strings.TrimSuffix(options.ProtocolRewrite, ":")
	}

	res.Header.Set("Location", locURL.String())
	return false
}

// passWriteHeaders rewrites Set-Cookie domain/path attributes and writes
// every response header to the client (spec.md §4.4; per §9's open
// question (b), existing client-response headers are overwritten to match
// the reference behavior).
//
// This pass does not read PreserveHeaderKeyCase, so the option has no
// effect here: http.Transport canonicalizes every response header key while
// parsing the wire response (net/textproto's MIME-header canonicalization),
// and dst.Add writes keys in that canonical form too, so the client always
// receives canonical header keys rather than the upstream's original casing.
func passWriteHeaders(w http.ResponseWriter, req *http.Request, res *http.Response, options *Options) bool {
	dst := w.Header()
	for key, values := range res.Header {
		if strings.EqualFold(key, "Set-Cookie") {
			values = rewriteCookies(values, options.CookieDomainRewrite, options.CookiePathRewrite)
		}

		dst.Del(key)
		for _, v := range values {
			if v == "" {
				continue
			}
			dst.Add(key, v)
		}
	}
	return false
}

// passWriteStatusCode copies StatusCode to the client response (spec.md
// §4.4). The upstream's status message is not relayed: net/http writes its
// own standard reason phrase for the code.
func passWriteStatusCode(w http.ResponseWriter, req *http.Request, res *http.Response, options *Options) bool {
	w.WriteHeader(res.StatusCode)
	return false
}

// statusLine renders spec.md §6's synthesized status line format, used by
// the WebSocket streaming pass when the upstream declines the upgrade.
func statusLine(proto string, statusCode int, statusMessage string) string {
	return fmt.Sprintf("HTTP/%s %d %s\r\n", proto, statusCode, statusMessage)
}
