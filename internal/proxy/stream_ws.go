package proxy

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// zeroTime clears any existing deadline (spec.md §4.6 step 5a: "no idle
// timeout" on the upstream socket once upgraded).
var zeroTime = time.Time{}

// passWSStream implements the ws-incoming stream pass (spec.md §4.6): it
// dials the upstream directly (bypassing http.Client, since the raw
// net.Conn must be owned by this pass for splicing after a successful
// upgrade), writes the handshake request, and either relays a rejected
// upgrade's response verbatim or cross-pipes the two sockets.
func (s *Server) passWSStream(conn net.Conn, req *http.Request, options *Options, srv *Server, head []byte, onError ErrorCallback) bool {
	clientConn := conn
	if len(head) > 0 {
		clientConn = newPrefixedConn(conn, head)
	}

	out, err := setupOutgoing(options, req, RoleTarget)
	if err != nil {
		s.wsError(err, req, conn, "", onError)
		return true
	}

	upReq, err := buildUpstreamRequest(req.Context(), out, req.Body)
	if err != nil {
		s.wsError(err, req, conn, targetURLString(out), onError)
		return true
	}
	s.Hooks.emitProxyReqWS(upReq, req, conn, options, head)

	upstreamConn, err := dialUpstream(req.Context(), out)
	if err != nil {
		s.wsError(mapDialError(err, req), req, conn, targetURLString(out), onError)
		return true
	}

	if err := writeHandshakeRequest(upstreamConn, upReq); err != nil {
		s.wsError(err, req, conn, targetURLString(out), onError)
		_ = upstreamConn.Close()
		return true
	}

	upReader := bufio.NewReader(upstreamConn)
	res, err := http.ReadResponse(upReader, upReq)
	if err != nil {
		s.wsError(err, req, conn, targetURLString(out), onError)
		_ = upstreamConn.Close()
		return true
	}

	if res.StatusCode != http.StatusSwitchingProtocols {
		if s.metrics != nil {
			s.metrics.WSUpgrades.WithLabelValues("rejected").Inc()
		}
		// Non-upgrade path (spec.md §4.6 step 4): the upstream answered
		// with a real response, e.g. rejecting the upgrade. Whether res
		// carries a defensive Upgrade marker has no source of truth in
		// this design (spec.md §9 open question (a)) — the branch below
		// is unconditional, matching the reference's documented
		// preserve-as-is intent.
		if err := writeSynthesizedResponse(clientConn, res); err != nil {
			s.wsError(err, req, conn, targetURLString(out), onError)
		}
		_ = res.Body.Close()
		_ = upstreamConn.Close()
		_ = conn.Close()
		return true
	}

	var upstreamHead []byte
	if n := upReader.Buffered(); n > 0 {
		upstreamHead = make([]byte, n)
		_, _ = io.ReadFull(upReader, upstreamHead)
	}

	setupSocket(upstreamConn)

	if err := writeUpgradeResponse(clientConn, res); err != nil {
		s.wsError(err, req, conn, targetURLString(out), onError)
		_ = upstreamConn.Close()
		_ = conn.Close()
		return true
	}

	upstreamSide := upstreamConn
	if len(upstreamHead) > 0 {
		upstreamSide = newPrefixedConn(upstreamConn, upstreamHead)
	}

	if s.metrics != nil {
		s.metrics.WSUpgrades.WithLabelValues("accepted").Inc()
	}

	s.Hooks.emitOpen(upstreamConn)
	splice(clientConn, upstreamSide)
	s.Hooks.emitClose(res, upstreamConn, upstreamHead)

	return true
}

func (s *Server) wsError(err error, req *http.Request, conn net.Conn, targetURL string, onError ErrorCallback) {
	if onError != nil {
		onError(err, req, nil, targetURL)
	} else {
		s.Hooks.emitError(err, req, conn, targetURL)
	}
	_ = conn.Close()
}

// writeHandshakeRequest serializes upReq's request line and headers onto
// conn, then copies its body (if any) — the "commit headers" step from
// spec.md §4.6 step 6, done as one write since this implementation
// doesn't keep a separate half-open request object.
func writeHandshakeRequest(conn net.Conn, upReq *http.Request) error {
	var b strings.Builder
	requestURI := upReq.URL.RequestURI()
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", upReq.Method, requestURI)
	if upReq.Header.Get("Host") == "" {
		fmt.Fprintf(&b, "Host: %s\r\n", upReq.URL.Host)
	}
	writeHeaderLines(&b, upReq.Header)
	b.WriteString("\r\n")

	if _, err := io.WriteString(conn, b.String()); err != nil {
		return err
	}
	if upReq.Body != nil {
		_, err := io.Copy(conn, upReq.Body)
		return err
	}
	return nil
}

// writeHeaderLines appends "key: value\r\n" for every header value,
// expanding multi-value headers into one line per element (spec.md §6's
// wire-format contract for the synthesized status line applies equally
// here).
func writeHeaderLines(b *strings.Builder, header http.Header) {
	for key, values := range header {
		for _, v := range values {
			fmt.Fprintf(b, "%s: %s\r\n", key, v)
		}
	}
}

// writeUpgradeResponse writes "HTTP/1.1 101 Switching Protocols\r\n" plus
// the upstream response headers to the client connection (spec.md §6).
func writeUpgradeResponse(conn net.Conn, res *http.Response) error {
	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	writeHeaderLines(&b, res.Header)
	b.WriteString("\r\n")
	_, err := io.WriteString(conn, b.String())
	return err
}

// writeSynthesizedResponse writes the full status line + headers + body
// for a non-upgrade upstream response, per spec.md §6's wire-format and
// §8 property 8 (status line lands before body bytes).
func writeSynthesizedResponse(conn net.Conn, res *http.Response) error {
	var b strings.Builder
	statusMessage := strings.TrimPrefix(res.Status, fmt.Sprintf("%d ", res.StatusCode))
	b.WriteString(statusLine(protoVersion(res), res.StatusCode, statusMessage))
	writeHeaderLines(&b, res.Header)
	b.WriteString("\r\n")
	if _, err := io.WriteString(conn, b.String()); err != nil {
		return err
	}
	_, err := io.Copy(conn, res.Body)
	return err
}

func protoVersion(res *http.Response) string {
	if res.Proto != "" {
		return strings.TrimPrefix(res.Proto, "HTTP/")
	}
	return "1.1"
}

// setupSocket configures the upstream socket once upgraded (spec.md §4.6
// step 5a): no idle timeout, TCP_NODELAY, keepalive enabled.
func setupSocket(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetKeepAlive(true)
		_ = tc.SetDeadline(zeroTime)
	}
}

// splice cross-pipes two connections until either side closes or errors,
// then ends the other cleanly (spec.md §4.6 step 5d).
func splice(a, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(a, b)
		closeWrite(a)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(b, a)
		closeWrite(b)
	}()
	wg.Wait()
	_ = a.Close()
	_ = b.Close()
}

// closeWrite half-closes the write side when supported, letting the
// reader on the other end observe EOF rather than an abrupt reset.
func closeWrite(conn net.Conn) {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := conn.(writeCloser); ok {
		_ = wc.CloseWrite()
	}
}

// prefixedConn re-serves bytes already read off the wire (the "head"
// argument spec.md §4.6 step 1/5b describes pushing back) before falling
// through to the underlying connection's own Read.
type prefixedConn struct {
	net.Conn
	prefix []byte
}

func newPrefixedConn(c net.Conn, prefix []byte) net.Conn {
	return &prefixedConn{Conn: c, prefix: prefix}
}

func (p *prefixedConn) Read(b []byte) (int, error) {
	if len(p.prefix) > 0 {
		n := copy(b, p.prefix)
		p.prefix = p.prefix[n:]
		return n, nil
	}
	return p.Conn.Read(b)
}
