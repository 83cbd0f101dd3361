package proxy

import "net"

// netPipePair returns two ends of an in-memory net.Conn pair for tests
// that need a real net.Conn without opening a socket.
func netPipePair() (net.Conn, net.Conn) {
	return net.Pipe()
}
