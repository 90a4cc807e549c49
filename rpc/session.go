package rpc

import (
	"errors"

	"asio-net/channel"
	"asio-net/codec"
	"asio-net/middleware"
)

// errClosed is the cancellation cause reported to pending calls when their
// channel closes out from under them: they fail with "closed", never
// "timeout".
var errClosed = errors.New("closed")

// Session binds one Channel to one Connection for as long as the channel
// stays open. It supplies the Connection's timer source from a private
// loop (see loop.go) so inbound frame dispatch, timer expiry, and
// close-triggered pending-call cancellation are never concurrent with
// each other, without requiring a process-wide reactor.
type Session struct {
	ch   *channel.Channel
	conn *Connection
	loop *loop

	onClose func(error)
}

// OnClose sets the sink invoked once the channel has closed. Cancelling
// this session's pending calls is posted to the session's loop first, so
// it may still be in progress when the sink runs. It replaces any
// previously set sink; callers that need more than one independent
// observer should use AddOnClose instead.
func (s *Session) OnClose(f func(error)) { s.onClose = f }

// AddOnClose appends f to run after whatever close sink is already
// installed, instead of replacing it — mirroring channel.Channel's
// AddOnClose. A Server wraps a Session in higher-level bookkeeping
// (tracking it in a session table, fanning it out of a DDS topic map)
// without clobbering whatever close sink the session's own owner set.
func (s *Session) AddOnClose(f func(error)) {
	prev := s.onClose
	s.onClose = func(err error) {
		if prev != nil {
			prev(err)
		}
		f(err)
	}
}

// NewSession wires ch's data/close events into a fresh Connection.
// The Connection is available immediately so handlers can be Subscribed
// before Start is called.
func NewSession(ch *channel.Channel, c codec.Codec) *Session {
	s := &Session{ch: ch, loop: newLoop()}
	s.conn = NewConnection(ch.Send, s.loop.timerSource(), c)

	ch.OnData(func(body []byte) {
		s.loop.Post(func() {
			if err := s.conn.HandleFrame(body); err != nil {
				ch.Close()
			}
		})
	})
	ch.OnClose(func(err error) {
		cause := err
		if cause == nil {
			cause = errClosed
		}
		s.loop.Post(func() {
			s.conn.CloseAllPending(cause)
			s.loop.Stop()
		})
		if s.onClose != nil {
			s.onClose(err)
		}
	})
	return s
}

// Connection exposes the RPC layer for registering handlers and issuing calls.
func (s *Session) Connection() *Connection { return s.conn }

// Channel exposes the underlying Framed Channel, mostly for tests and for
// callers that need the remote address.
func (s *Session) Channel() *channel.Channel { return s.ch }

// Use installs inbound-dispatch middleware on this session's connection.
func (s *Session) Use(mws ...middleware.Middleware) { s.conn.Use(mws...) }

// Start begins reading frames off the channel.
func (s *Session) Start() { s.ch.Start() }

// Close closes the underlying channel, which in turn cancels every
// pending call and fires OnClose.
func (s *Session) Close() error { return s.ch.Close() }
