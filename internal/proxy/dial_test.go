package proxy

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestDialUpstream_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
		close(accepted)
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}

	out := &Outgoing{Hostname: host, Port: port, Protocol: "http:"}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := dialUpstream(ctx, out)
	if err != nil {
		t.Fatalf("dialUpstream: %v", err)
	}
	conn.Close()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never accepted the connection")
	}
}

func TestDialUpstream_UnixSocketPathSelectsUnixNetwork(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	out := &Outgoing{SocketPath: "/tmp/reverseproxyd-test-nonexistent.sock", Protocol: "http:"}
	_, err := dialUpstream(ctx, out)
	if err == nil {
		t.Fatal("expected an error dialing a nonexistent unix socket")
	}
}

func TestBuildTLSConfig_Defaults(t *testing.T) {
	out := &Outgoing{Hostname: "backend.internal", RejectUnauthorized: true}
	cfg, err := buildTLSConfig(out)
	if err != nil {
		t.Fatalf("buildTLSConfig: %v", err)
	}
	if cfg.InsecureSkipVerify {
		t.Error("RejectUnauthorized=true should not skip verification")
	}
	if cfg.ServerName != "backend.internal" {
		t.Errorf("ServerName = %q, want backend.internal", cfg.ServerName)
	}
}

func TestBuildTLSConfig_InsecureWhenRejectUnauthorizedFalse(t *testing.T) {
	out := &Outgoing{Hostname: "backend.internal", RejectUnauthorized: false}
	cfg, err := buildTLSConfig(out)
	if err != nil {
		t.Fatalf("buildTLSConfig: %v", err)
	}
	if !cfg.InsecureSkipVerify {
		t.Error("RejectUnauthorized=false should skip verification")
	}
}

func TestBuildTLSConfig_MissingCAFileErrors(t *testing.T) {
	out := &Outgoing{Hostname: "backend.internal", CA: "/tmp/reverseproxyd-test-nonexistent-ca.pem"}
	if _, err := buildTLSConfig(out); err == nil {
		t.Fatal("expected an error for a missing CA file")
	}
}

func TestBuildTLSConfig_MissingCertFileErrors(t *testing.T) {
	out := &Outgoing{Hostname: "backend.internal", Cert: "/tmp/reverseproxyd-test-nonexistent.crt", Key: "/tmp/reverseproxyd-test-nonexistent.key"}
	if _, err := buildTLSConfig(out); err == nil {
		t.Fatal("expected an error for missing cert/key files")
	}
}
