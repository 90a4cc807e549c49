package rpc

import (
	"sync"
	"time"

	"asio-net/protocol"
)

// pendingCall is one outstanding call: enough state to resend the exact
// same frame on timeout (same seq, never a freshly allocated one) and to
// route the eventual response.
//
// timer is written by startTimer (called from whatever goroutine issued
// Call, and later from handleCallTimeout on a retry) and read by
// cancelTimer (called from handleResponse/CloseAllPending on the
// session's loop goroutine). Its own mutex protects both sides so a call
// resolved before its first timer install ever happens sees a guarded nil
// instead of racing on the field or invoking a nil TimerHandle.
type pendingCall struct {
	seq              uint32
	encoded          []byte
	timeout          time.Duration
	retriesRemaining int // -1 means retry forever
	decodeResp       func([]byte) (any, error)
	onSuccess        func(any)
	onTimeout        func()
	onError          func(error)

	timerMu sync.Mutex
	timer   TimerHandle
}

func (pc *pendingCall) setTimer(t TimerHandle) {
	pc.timerMu.Lock()
	pc.timer = t
	pc.timerMu.Unlock()
}

// cancelTimer cancels the current timer, if one has been installed yet.
func (pc *pendingCall) cancelTimer() {
	pc.timerMu.Lock()
	t := pc.timer
	pc.timerMu.Unlock()
	if t != nil {
		t.Cancel()
	}
}

// CallBuilder is the fluent entry point for an outbound call:
// conn.Cmd("name").Msg(v).Timeout(d).Retry(n).Call(onSuccess, onTimeout, onError).
type CallBuilder struct {
	conn      *Connection
	cmd       string
	payload   []byte
	encodeErr error
	timeout   time.Duration
	retry     int
	ping      bool
	decode    func([]byte) (any, error)
}

// Msg encodes v with the connection's codec as the request payload.
func (b *CallBuilder) Msg(v any) *CallBuilder {
	if b.encodeErr != nil {
		return b
	}
	b.payload, b.encodeErr = b.conn.codec.Encode(v)
	return b
}

// Timeout overrides the connection's default per-call timeout.
func (b *CallBuilder) Timeout(d time.Duration) *CallBuilder {
	b.timeout = d
	return b
}

// Retry sets how many times a timed-out call is resent with the same seq
// before giving up and firing onTimeout. n == -1 retries indefinitely;
// the only way to stop it short of a success is for the underlying
// channel to close, which cancels it via CloseAllPending.
func (b *CallBuilder) Retry(n int) *CallBuilder {
	b.retry = n
	return b
}

// Ping marks this call as a liveness probe: an empty request the peer
// must answer immediately with an empty response, regardless of any
// registered handler for the given command name.
func (b *CallBuilder) Ping() *CallBuilder {
	b.ping = true
	return b
}

// Decode installs the response decoder. CallAs sets this for you; use it
// directly only when you want the untyped Call/onSuccess(any) form.
func (b *CallBuilder) Decode(fn func([]byte) (any, error)) *CallBuilder {
	b.decode = fn
	return b
}

// Call sends the request and installs callbacks for its terminal outcome.
// Exactly one of onSuccess, onTimeout, onError fires, exactly once.
func (b *CallBuilder) Call(onSuccess func(any), onTimeout func(), onError func(error)) {
	if b.encodeErr != nil {
		if onError != nil {
			onError(b.encodeErr)
		}
		return
	}
	decode := b.decode
	if decode == nil {
		decode = func(p []byte) (any, error) { return p, nil }
	}

	conn := b.conn
	conn.mu.Lock()
	seq := conn.nextSeq
	conn.nextSeq++
	frame := &protocol.RPCFrame{Seq: seq, Type: protocol.FrameRequest, Ping: b.ping, Cmd: b.cmd, Payload: b.payload}
	encoded := protocol.EncodeRPCFrame(frame)
	pc := &pendingCall{
		seq:              seq,
		encoded:          encoded,
		timeout:          b.timeout,
		retriesRemaining: b.retry,
		decodeResp:       decode,
		onSuccess:        onSuccess,
		onTimeout:        onTimeout,
		onError:          onError,
	}
	conn.pending[seq] = pc
	conn.mu.Unlock()

	if err := conn.send(encoded); err != nil {
		conn.mu.Lock()
		delete(conn.pending, seq)
		conn.mu.Unlock()
		if onError != nil {
			onError(err)
		}
		return
	}
	conn.startTimer(pc)
}

func (c *Connection) startTimer(pc *pendingCall) {
	pc.setTimer(c.timers(pc.timeout, func() { c.handleCallTimeout(pc.seq) }))
}

func (c *Connection) handleCallTimeout(seq uint32) {
	c.mu.Lock()
	pc, ok := c.pending[seq]
	if !ok {
		c.mu.Unlock()
		return
	}
	if pc.retriesRemaining != 0 {
		if pc.retriesRemaining > 0 {
			pc.retriesRemaining--
		}
		c.mu.Unlock()
		if err := c.send(pc.encoded); err != nil {
			c.mu.Lock()
			delete(c.pending, seq)
			c.mu.Unlock()
			if pc.onError != nil {
				pc.onError(err)
			}
			return
		}
		c.startTimer(pc)
		return
	}
	delete(c.pending, seq)
	c.mu.Unlock()
	if pc.onTimeout != nil {
		pc.onTimeout()
	}
}

// CallAs is the typed convenience form: decode the response payload into
// T with the connection's codec before invoking onSuccess. Package-level
// because Go methods cannot carry their own type parameters.
func CallAs[T any](b *CallBuilder, onSuccess func(T), onTimeout func(), onError func(error)) {
	b.Decode(func(p []byte) (any, error) {
		var v T
		if len(p) == 0 {
			return v, nil
		}
		if err := b.conn.codec.Decode(p, &v); err != nil {
			return v, err
		}
		return v, nil
	})
	b.Call(func(v any) {
		if onSuccess != nil {
			onSuccess(v.(T))
		}
	}, onTimeout, onError)
}
