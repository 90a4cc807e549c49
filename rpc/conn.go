// Package rpc is the protocol and session layer built on top of a Framed
// Channel: it encodes/decodes RPC frames over a channel.Channel, demultiplexes
// responses to pending calls by sequence number, dispatches inbound
// requests to registered command handlers, and binds a Connection to a
// Channel for the lifetime of one Session.
package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"asio-net/codec"
	"asio-net/middleware"
	"asio-net/protocol"
)

// DefaultCallTimeout is the per-call timeout a new CallBuilder starts from
// unless overridden.
const DefaultCallTimeout = 3000 * time.Millisecond

type handlerEntry struct {
	decode func([]byte) (any, error)
	handle func(any) (resp any, wantsResponse bool)
}

// Connection holds one peer's RPC state: next seq, the pending-call table,
// the handler table, and the send sink. It has no open/close state of its
// own — a Session disposes of it when its channel closes.
type Connection struct {
	mu       sync.Mutex
	nextSeq  uint32
	pending  map[uint32]*pendingCall
	handlers map[string]handlerEntry

	codec   codec.Codec
	send    func([]byte) error
	timers  TimerSource
	dispatch middleware.HandlerFunc

	defaultTimeout time.Duration
	defaultRetry   int
}

// NewConnection builds a Connection that writes encoded frames through
// send and schedules timers through timers. c may be nil to default to a
// GobCodec, matching codec.Get's own fallback.
func NewConnection(send func([]byte) error, timers TimerSource, c codec.Codec) *Connection {
	if c == nil {
		c = codec.Get(codec.TypeGob)
	}
	if timers == nil {
		timers = stdTimerSource
	}
	conn := &Connection{
		pending:        make(map[uint32]*pendingCall),
		handlers:       make(map[string]handlerEntry),
		codec:          c,
		send:           send,
		timers:         timers,
		defaultTimeout: DefaultCallTimeout,
		defaultRetry:   0,
	}
	conn.dispatch = conn.businessDispatch
	return conn
}

// Use installs middleware around inbound command dispatch, in the order
// given, exactly as middleware.Chain composes them.
func (c *Connection) Use(mws ...middleware.Middleware) {
	c.dispatch = middleware.Chain(mws...)(c.businessDispatch)
}

// SetDefaults overrides the per-call timeout/retry defaults new
// CallBuilders start from.
func (c *Connection) SetDefaults(timeout time.Duration, retry int) {
	c.defaultTimeout = timeout
	c.defaultRetry = retry
}

// Codec returns the payload codec this Connection encodes/decodes with.
func (c *Connection) Codec() codec.Codec { return c.codec }

// subscribeRaw registers cmd's decoder and handler. handle returns
// (response value, true) to send a response, or (nil, false) for the
// notify case, where the request expects no response at all.
func (c *Connection) subscribeRaw(cmd string, decode func([]byte) (any, error), handle func(any) (any, bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[cmd] = handlerEntry{decode: decode, handle: handle}
}

// Subscribe registers a typed handler for cmd. handle's return value is
// encoded with the Connection's codec and sent back as the response;
// returning wantsResponse=false sends nothing (notify).
func Subscribe[T any](conn *Connection, cmd string, handle func(T) (any, bool)) {
	conn.subscribeRaw(cmd, func(payload []byte) (any, error) {
		var v T
		if len(payload) > 0 {
			if err := conn.codec.Decode(payload, &v); err != nil {
				return nil, err
			}
		}
		return v, nil
	}, func(v any) (any, bool) {
		return handle(v.(T))
	})
}

// Cmd starts a fluent outbound call for cmd on this connection.
func (c *Connection) Cmd(name string) *CallBuilder {
	return &CallBuilder{
		conn:    c,
		cmd:     name,
		timeout: c.defaultTimeout,
		retry:   c.defaultRetry,
	}
}

// businessDispatch is the innermost handler: look up cmd, decode payload,
// invoke, and (if a response is wanted) encode it. Unknown commands and
// decode failures both resolve to a nil Response, silently dropped rather
// than surfaced as a wire-level error.
func (c *Connection) businessDispatch(_ context.Context, req *middleware.Request) *middleware.Response {
	c.mu.Lock()
	entry, ok := c.handlers[req.Cmd]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	decoded, err := entry.decode(req.Payload)
	if err != nil {
		return nil
	}
	respVal, wantsResponse := entry.handle(decoded)
	if !wantsResponse {
		return nil
	}
	payload, err := c.codec.Encode(respVal)
	if err != nil {
		return &middleware.Response{Err: err.Error()}
	}
	return &middleware.Response{Payload: payload}
}

// HandleFrame decodes and routes one inbound frame body. A non-nil error
// return means the body was not a well-formed RPC frame (a truncated
// header or an unknown frame type); this is a protocol error fatal to the channel, so the Session
// closes the channel when this returns an error.
func (c *Connection) HandleFrame(body []byte) error {
	f, err := protocol.DecodeRPCFrame(body)
	if err != nil {
		return fmt.Errorf("rpc: malformed frame: %w", err)
	}
	switch f.Type {
	case protocol.FrameResponse:
		c.handleResponse(f, false)
	case protocol.FrameError:
		c.handleResponse(f, true)
	case protocol.FrameRequest:
		c.handleRequest(f)
	default:
		return fmt.Errorf("rpc: unknown frame type %d", f.Type)
	}
	return nil
}

func (c *Connection) handleResponse(f *protocol.RPCFrame, isErr bool) {
	c.mu.Lock()
	pc, ok := c.pending[f.Seq]
	if ok {
		delete(c.pending, f.Seq)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	pc.cancelTimer()
	if isErr {
		if pc.onError != nil {
			pc.onError(fmt.Errorf("rpc: %s", string(f.Payload)))
		}
		return
	}
	value, err := pc.decodeResp(f.Payload)
	if err != nil {
		if pc.onError != nil {
			pc.onError(err)
		}
		return
	}
	if pc.onSuccess != nil {
		pc.onSuccess(value)
	}
}

func (c *Connection) handleRequest(f *protocol.RPCFrame) {
	if f.Ping {
		resp := protocol.EncodeRPCFrame(&protocol.RPCFrame{Seq: f.Seq, Type: protocol.FrameResponse, Ping: true})
		c.send(resp)
		return
	}
	req := &middleware.Request{Cmd: f.Cmd, Payload: f.Payload}
	resp := c.dispatch(context.Background(), req)
	if resp == nil {
		return
	}
	var out *protocol.RPCFrame
	if resp.Err != "" {
		out = &protocol.RPCFrame{Seq: f.Seq, Type: protocol.FrameError, Payload: []byte(resp.Err)}
	} else {
		out = &protocol.RPCFrame{Seq: f.Seq, Type: protocol.FrameResponse, Payload: resp.Payload}
	}
	c.send(protocol.EncodeRPCFrame(out))
}

// CloseAllPending fires onError(err) for every outstanding call and drops
// the pending table, so a closed channel fails every in-flight call
// immediately instead of leaving each one to expire on its own timeout.
func (c *Connection) CloseAllPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[uint32]*pendingCall)
	c.mu.Unlock()
	for _, pc := range pending {
		pc.cancelTimer()
		if pc.onError != nil {
			pc.onError(err)
		}
	}
}
