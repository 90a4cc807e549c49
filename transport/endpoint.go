// Package transport implements the Stream Acceptor and Stream Connector:
// the collaborators that turn a bound endpoint (TCP, TLS-over-TCP, or a
// Unix stream socket) into channel.Channel instances, and that add
// automatic reconnect on the client side.
package transport

import (
	"crypto/tls"
	"fmt"
	"net"
)

// Network identifies the transport kind for an Endpoint.
type Network int

const (
	NetworkTCP Network = iota
	NetworkTLS
	NetworkUnix
)

// Endpoint addresses one of three transport kinds: TCP host:port, TLS
// over TCP (same addressing, extra handshake), and a local stream socket
// (filesystem path).
type Endpoint struct {
	Network   Network
	Address   string      // "host:port" for TCP/TLS, a filesystem path for Unix
	TLSConfig *tls.Config // required when Network == NetworkTLS
}

func (e Endpoint) String() string {
	switch e.Network {
	case NetworkTLS:
		return "tls://" + e.Address
	case NetworkUnix:
		return "unix://" + e.Address
	default:
		return "tcp://" + e.Address
	}
}

func (e Endpoint) dial() (net.Conn, error) {
	switch e.Network {
	case NetworkTCP:
		return net.Dial("tcp", e.Address)
	case NetworkTLS:
		if e.TLSConfig == nil {
			return nil, fmt.Errorf("transport: TLS endpoint %q missing TLSConfig", e.Address)
		}
		return tls.Dial("tcp", e.Address, e.TLSConfig)
	case NetworkUnix:
		return net.Dial("unix", e.Address)
	default:
		return nil, fmt.Errorf("transport: unknown network %d", e.Network)
	}
}

func (e Endpoint) listen() (net.Listener, error) {
	switch e.Network {
	case NetworkTCP:
		return net.Listen("tcp", e.Address)
	case NetworkTLS:
		if e.TLSConfig == nil {
			return nil, fmt.Errorf("transport: TLS endpoint %q missing TLSConfig", e.Address)
		}
		l, err := net.Listen("tcp", e.Address)
		if err != nil {
			return nil, err
		}
		return tls.NewListener(l, e.TLSConfig), nil
	case NetworkUnix:
		return net.Listen("unix", e.Address)
	default:
		return nil, fmt.Errorf("transport: unknown network %d", e.Network)
	}
}
