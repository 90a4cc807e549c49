// Package rpcnet is the RPC Client/Server pair: a Server that accepts
// connections and hands each one a fresh rpc.Session, and a Client that
// maintains at most one live Session against a reconnecting
// transport.Connector.
package rpcnet

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"asio-net/channel"
	"asio-net/codec"
	"asio-net/middleware"
	"asio-net/rpc"
	"asio-net/transport"
)

// Server accepts connections on one Endpoint and turns each into an
// rpc.Session, tracked strongly until it closes.
type Server struct {
	acceptor    *transport.Acceptor
	codec       codec.Codec
	middlewares []middleware.Middleware

	// OnSession is called once per accepted connection, after the
	// session's Connection is ready for Subscribe calls but before any
	// frame has been read.
	OnSession func(*rpc.Session)

	nextID     uint64
	sessions   sync.Map // uint64 -> *rpc.Session
	stopped    chan struct{}
	stopSignal sync.Once
}

// NewServer creates a Server bound to endpoint.
func NewServer(endpoint transport.Endpoint, c codec.Codec) *Server {
	s := &Server{codec: c, stopped: make(chan struct{})}
	s.acceptor = transport.NewAcceptor(endpoint, channel.Config{Mode: channel.ModePacked})
	s.acceptor.OnSession = s.onRawSession
	return s
}

// Use installs middleware applied to every session's inbound dispatch.
func (s *Server) Use(mws ...middleware.Middleware) {
	s.middlewares = append(s.middlewares, mws...)
}

// Address returns the bound listener's address.
func (s *Server) Address() string { return s.acceptor.Address() }

func (s *Server) onRawSession(ch *channel.Channel) {
	sess := rpc.NewSession(ch, s.codec)
	if len(s.middlewares) > 0 {
		sess.Use(s.middlewares...)
	}
	id := atomic.AddUint64(&s.nextID, 1)
	s.sessions.Store(id, sess)
	sess.AddOnClose(func(error) {
		s.sessions.Delete(id)
	})
	if s.OnSession != nil {
		s.OnSession(sess)
	}
}

// Start begins accepting connections. loop=true blocks the calling
// goroutine until Shutdown releases it; loop=false starts the accept loop
// in the background and returns immediately.
func (s *Server) Start(loop bool) error {
	if err := s.acceptor.Start(); err != nil {
		return err
	}
	if loop {
		<-s.stopped
	}
	return nil
}

// Shutdown stops accepting new connections and closes every live session:
// flip the acceptor's shutdown flag, close the listener, then bound the
// wait for everything already in flight to unwind with timeout. Either way
// s.stopped is closed exactly once before Shutdown returns, so a caller
// blocked in Start(true) is always released, even on the timeout path.
func (s *Server) Shutdown(timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- s.acceptor.Stop() }()

	defer s.stopSignal.Do(func() { close(s.stopped) })

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("rpcnet: timeout waiting for server shutdown")
	}
}

// Sessions returns a snapshot of every currently live session.
func (s *Server) Sessions() []*rpc.Session {
	var out []*rpc.Session
	s.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*rpc.Session))
		return true
	})
	return out
}
