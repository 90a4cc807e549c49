package rpcnet

import (
	"sync"
	"time"

	"asio-net/channel"
	"asio-net/codec"
	"asio-net/middleware"
	"asio-net/rpc"
	"asio-net/transport"
)

// Client holds a reconnecting transport.Connector and at most one live
// rpc.Session at a time. On reconnect a fresh Session (and Connection)
// replaces the old one — old pending calls are not carried over, since
// they were already cancelled with "closed" when the old channel closed.
type Client struct {
	connector   *transport.Connector
	codec       codec.Codec
	middlewares []middleware.Middleware

	mu      sync.Mutex
	session *rpc.Session

	// OnOpen fires once per successful (re)connect, with the fresh
	// session's Connection ready for Cmd/Subscribe calls.
	OnOpen func(*rpc.Connection)
	// OnClose fires when the live session's channel closes, before any
	// automatic reconnect attempt is scheduled.
	OnClose func()
	// OnOpenFailed fires when a connect attempt itself fails (DNS,
	// refused, TLS handshake, ...), distinct from OnClose.
	OnOpenFailed func(error)
}

// NewClient creates a Client for a fixed endpoint.
func NewClient(endpoint transport.Endpoint, c codec.Codec) *Client {
	cl := newClient(c)
	cl.connector = transport.NewConnector(endpoint, channel.Config{Mode: channel.ModePacked})
	cl.wireConnector()
	return cl
}

// NewClientDiscovered creates a Client whose target is re-resolved before
// every connect attempt, instead of dialing one fixed endpoint.
func NewClientDiscovered(resolve transport.Resolver, c codec.Codec) *Client {
	cl := newClient(c)
	cl.connector = transport.NewConnectorResolved(resolve, channel.Config{Mode: channel.ModePacked})
	cl.wireConnector()
	return cl
}

func newClient(c codec.Codec) *Client {
	return &Client{codec: c}
}

func (cl *Client) wireConnector() {
	cl.connector.OnOpen = cl.onRawOpen
	cl.connector.OnOpenFailed = func(err error) {
		if cl.OnOpenFailed != nil {
			cl.OnOpenFailed(err)
		}
	}
}

func (cl *Client) onRawOpen(ch *channel.Channel) {
	sess := rpc.NewSession(ch, cl.codec)
	if len(cl.middlewares) > 0 {
		sess.Use(cl.middlewares...)
	}
	cl.mu.Lock()
	cl.session = sess
	cl.mu.Unlock()

	sess.OnClose(func(error) {
		cl.mu.Lock()
		cl.session = nil
		cl.mu.Unlock()
		if cl.OnClose != nil {
			cl.OnClose()
		}
	})
	if cl.OnOpen != nil {
		cl.OnOpen(sess.Connection())
	}
}

// Use installs middleware applied to every session's inbound dispatch,
// including sessions created by future reconnects.
func (cl *Client) Use(mws ...middleware.Middleware) {
	cl.middlewares = append(cl.middlewares, mws...)
}

// SetReconnectInterval sets the delay before an automatic reconnect
// attempt after an unexpected close. 0 disables automatic reconnect.
func (cl *Client) SetReconnectInterval(d time.Duration) {
	cl.connector.SetReconnectInterval(d)
}

// Open resolves and connects. It is a no-op if a connect attempt is
// already outstanding.
func (cl *Client) Open() { cl.connector.Open() }

// Connection returns the live session's Connection, or nil if not
// currently connected.
func (cl *Client) Connection() *rpc.Connection {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.session == nil {
		return nil
	}
	return cl.session.Connection()
}

// Close disables reconnect and closes the live session, if any.
func (cl *Client) Close() error { return cl.connector.Close() }
