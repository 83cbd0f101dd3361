package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// passWebStream implements the web-incoming stream pass (spec.md §4.5):
// it opens the upstream connection(s), pipes the request body up, and on
// response runs the web-outgoing pipeline before streaming the body back.
// HTTP round trips in this implementation are synchronous on the request's
// own goroutine (spec.md §5's "a correct re-implementation may use...one
// thread per connection" model), so this pass blocks and returns only once
// the transaction (or its forward-only half) has completed.
func (s *Server) passWebStream(w http.ResponseWriter, req *http.Request, options *Options, srv *Server, onError ErrorCallback) bool {
	target := options.Target
	if target == nil {
		target = options.Forward
	}
	s.Hooks.emitStart(req, target)

	body := io.Reader(req.Body)
	if options.Buffer != nil {
		body = options.Buffer
	}

	targetBody, forwardBody := body, body
	if !options.Forward.IsEmpty() && !options.Target.IsEmpty() {
		// Both a target and a forward are configured: the same request
		// body has to reach both upstreams, so it is duplicated via a
		// tee rather than consumed once (spec.md §4.5 steps 3 and 8 both
		// say "pipe (options.buffer ?? req)").
		targetBody, forwardBody = teeRequestBody(body)
	}

	if !options.Forward.IsEmpty() {
		fwdOut, err := setupOutgoing(options, req, RoleForward)
		if err == nil {
			if options.Target.IsEmpty() {
				s.dispatchForward(req, fwdOut, forwardBody)
			} else {
				// A tee is feeding both bodies concurrently (see above);
				// dispatch the forward leg on its own goroutine so it
				// doesn't block the target leg's consumption of the tee.
				go s.dispatchForward(req, fwdOut, forwardBody)
			}
		}
		if options.Target.IsEmpty() {
			_ = req.Body.Close()
			return true
		}
	}

	out, err := setupOutgoing(options, req, RoleTarget)
	if err != nil {
		s.handleStreamError(err, req, w, "", onError)
		return true
	}

	client := clientFor(options, out)

	ctx := req.Context()
	var cancel context.CancelFunc
	if options.ProxyTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, options.ProxyTimeout)
		defer cancel()
	}

	upReq, err := buildUpstreamRequest(ctx, out, targetBody)
	if err != nil {
		s.handleStreamError(err, req, w, targetURLString(out), onError)
		return true
	}

	if upReq.Header.Get("Expect") == "" {
		s.Hooks.emitProxyReq(upReq, req, w, options)
	}

	dialStart := time.Now()
	res, err := client.Do(upReq)
	if s.metrics != nil {
		s.metrics.UpstreamDuration.WithLabelValues("target").Observe(time.Since(dialStart).Seconds())
	}
	if err != nil {
		s.handleStreamError(mapDialError(err, req), req, w, targetURLString(out), onError)
		return true
	}
	defer res.Body.Close()
	if s.metrics != nil {
		s.metrics.UpstreamResponses.WithLabelValues("target", strconv.Itoa(res.StatusCode)).Inc()
	}

	s.Hooks.emitProxyRes(res, req, w)

	if !options.SelfHandleResponse {
		for _, p := range s.webOutgoingPasses {
			if p.Fn(w, req, res, options) {
				break
			}
		}
	}

	if !options.SelfHandleResponse {
		if _, err := io.Copy(w, res.Body); err != nil {
			s.handleStreamError(err, req, w, targetURLString(out), onError)
		}
	}

	s.Hooks.emitEnd(req, w, res)
	return true
}

// dispatchForward issues the fire-and-forget forward request (spec.md
// §4.5 step 3): its response, if any, is discarded, but connection errors
// still flow through the shared error handler.
func (s *Server) dispatchForward(req *http.Request, out *Outgoing, body io.Reader) {
	client := clientFor(&Options{}, out)
	upReq, err := buildUpstreamRequest(req.Context(), out, body)
	if err != nil {
		return
	}
	res, err := client.Do(upReq)
	if err != nil {
		s.Hooks.emitError(err, req, nil, targetURLString(out))
		return
	}
	_ = res.Body.Close()
}

// buildUpstreamRequest turns an Outgoing descriptor into an *http.Request
// whose Transport always dials through dialUpstream — the URL scheme is
// forced to "http" regardless of the target's real scheme so
// http.Transport never attempts its own TLS handshake on top of the one
// dialUpstream already performed for TLS targets (see transport.go).
func buildUpstreamRequest(ctx context.Context, out *Outgoing, body io.Reader) (*http.Request, error) {
	full := "http://" + net.JoinHostPort(nonEmpty(out.Hostname, out.Host), out.Port) + out.Path
	req, err := http.NewRequestWithContext(ctx, out.Method, full, body)
	if err != nil {
		return nil, err
	}
	req.Header = out.Headers
	return req, nil
}

// teeRequestBody duplicates body across two independently-readable
// streams so both a target and a forward dispatch can consume it.
func teeRequestBody(body io.Reader) (target, forward io.Reader) {
	pr1, pw1 := io.Pipe()
	pr2, pw2 := io.Pipe()
	go func() {
		_, err := io.Copy(io.MultiWriter(pw1, pw2), body)
		_ = pw1.CloseWithError(err)
		_ = pw2.CloseWithError(err)
	}()
	return pr1, pr2
}

func nonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func targetURLString(out *Outgoing) string {
	if out == nil {
		return ""
	}
	scheme := "http"
	if isSSL(out.Protocol) {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(out.Hostname, out.Port) + out.Path
}

// handleStreamError implements spec.md §4.5 step 7's shared error
// closure: swallow ECONNRESET into the econnreset event when the client
// is already gone, otherwise call the per-call callback or emit error.
func (s *Server) handleStreamError(err error, req *http.Request, w http.ResponseWriter, targetURL string, onError ErrorCallback) {
	if errors.Is(err, context.Canceled) && isClientAbort(req) {
		return
	}
	if isECONNRESET(err) && clientGone(req) {
		if s.metrics != nil {
			s.metrics.ECONNRESETs.Inc()
		}
		s.Hooks.emitECONNRESET(err, req, w, targetURL)
		return
	}
	if s.metrics != nil {
		s.metrics.Errors.WithLabelValues("web").Inc()
	}
	if onError != nil {
		onError(err, req, w, targetURL)
		return
	}
	s.Hooks.emitError(err, req, w, targetURL)
}

func isECONNRESET(err error) bool {
	return errors.Is(err, syscall.ECONNRESET)
}

// clientGone reports whether the client side of the transaction has
// already disconnected, per spec.md §4.5 step 6's abort coordination.
func clientGone(req *http.Request) bool {
	select {
	case <-req.Context().Done():
		return true
	default:
		return false
	}
}

func isClientAbort(req *http.Request) bool {
	return clientGone(req)
}

// mapDialError normalizes context deadline errors from ProxyTimeout into
// something resembling ECONNRESET, matching spec.md §7's Timeout ->
// UpstreamReset/ECONNRESET mapping.
func mapDialError(err error, req *http.Request) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return syscall.ECONNRESET
	}
	if strings.Contains(err.Error(), "context deadline exceeded") {
		return syscall.ECONNRESET
	}
	return err
}
