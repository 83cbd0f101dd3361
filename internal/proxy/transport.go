package proxy

import (
	"context"
	"net"
	"net/http"
)

// newTransport builds an *http.Transport whose DialContext always dials
// out via dialUpstream, so a plain HTTP request issued through it honors
// the same TLS/Unix-socket/local-address rules the WebSocket streaming
// pass applies directly (spec.md §4.1 steps 1-2, 6, 8). Pooling
// parameters mirror the teacher's NewVulnersClient (internal/client,
// pre-transformation): bounded idle connections, a keepalive-friendly
// dialer, no blanket request timeout (options.ProxyTimeout/Timeout own
// that instead, spec.md §4.5 step 5).
func newTransport(out *Outgoing) *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialUpstream(ctx, out)
		},
	}
}

// clientFor selects the HTTP client the web-streaming pass issues the
// upstream request with (spec.md §4.5 step 2): the caller-supplied Agent
// when present (an opaque connection-pool handle, spec.md §3), else a
// fresh client built from newTransport, following redirects only when
// options.FollowRedirects is set — the default client relays the
// upstream's 3xx response as-is (and lets web_outgoing.go's
// setRedirectHostRewrite rewrite Location) rather than chasing it.
func clientFor(options *Options, out *Outgoing) *http.Client {
	if options.Agent != nil {
		return options.Agent
	}
	client := &http.Client{Transport: newTransport(out)}
	if !options.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}
