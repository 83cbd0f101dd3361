package proxy

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"
)

// dialUpstream opens a raw connection to the upstream described by out,
// honoring SocketPath (Unix-domain upstreams), LocalAddress binding, and
// TLS material when the target requires it. Used directly by the
// WebSocket streaming pass, which needs to own the raw net.Conn for
// splicing after a successful upgrade (spec.md §4.6); the plain HTTP
// streaming pass instead goes through an *http.Client/Transport built on
// top of the same TLS config (see transport.go).
func dialUpstream(ctx context.Context, out *Outgoing) (net.Conn, error) {
	network := "tcp"
	address := net.JoinHostPort(out.Hostname, out.Port)
	if out.SocketPath != "" {
		network = "unix"
		address = out.SocketPath
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	if out.LocalAddress != "" {
		if laddr, err := net.ResolveTCPAddr(network, out.LocalAddress+":0"); err == nil {
			dialer.LocalAddr = laddr
		}
	}

	if !isSSL(out.Protocol) {
		return dialer.DialContext(ctx, network, address)
	}

	tlsConfig, err := buildTLSConfig(out)
	if err != nil {
		return nil, err
	}
	tlsDialer := &tls.Dialer{NetDialer: dialer, Config: tlsConfig}
	return tlsDialer.DialContext(ctx, network, address)
}

// buildTLSConfig assembles the *tls.Config the upstream connection needs
// from the Outgoing descriptor's certificate material. Loading
// certificates from disk is one of spec.md §1's out-of-scope external
// collaborators ("TLS certificate loading"); this is the minimal
// crypto/tls plumbing the streaming passes need to honor
// Secure/CA/Cert/Key, and there is no ecosystem replacement for it in the
// corpus.
func buildTLSConfig(out *Outgoing) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName:         out.Hostname,
		InsecureSkipVerify: !out.RejectUnauthorized,
		MinVersion:         tls.VersionTLS12,
	}

	if out.Cert != "" && out.Key != "" {
		cert, err := tls.LoadX509KeyPair(out.Cert, out.Key)
		if err != nil {
			return nil, fmt.Errorf("proxy: load upstream client cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if out.CA != "" {
		pem, err := os.ReadFile(out.CA)
		if err != nil {
			return nil, fmt.Errorf("proxy: read upstream CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("proxy: no certificates parsed from %s", out.CA)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}
