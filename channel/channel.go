// Package channel implements the Framed Channel: it wraps a connected
// stream (TCP, TLS-over-TCP, or a Unix stream socket — anything that is
// a net.Conn) and turns it into either a raw byte pipe or a
// length-prefixed message stream with an enforced size bound.
//
// One goroutine owns the read side and delivers whole frames to OnData;
// writes are serialized through a mutex so concurrent Sends are observed
// by the peer in submission order.
package channel

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"

	"asio-net/protocol"
)

// Mode selects how a Channel frames data on the wire.
type Mode int

const (
	// ModeRaw passes bytes straight through, both directions.
	ModeRaw Mode = iota
	// ModePacked length-prefixes every Send and delivers only complete
	// frames to OnData. This is the only mode RPC and DDS use.
	ModePacked
)

// DefaultMaxBodySize is the default cap on a single frame's body: effectively unbounded.
const DefaultMaxBodySize = ^uint32(0)

// Channel wraps one connected stream and owns its lifetime while open.
//
// A partial frame is never delivered. Writes are serialized and observed
// by the peer in submission order. Send on a closed Channel is a silent
// no-op. OnClose fires exactly once.
type Channel struct {
	conn        net.Conn
	mode        Mode
	maxBodySize uint32

	onOpen  func()
	onData  func([]byte)
	onClose func(error)

	writeMu sync.Mutex
	closed  bool
	closeMu sync.Mutex
	once    sync.Once

	readBuf []byte
}

// Config configures a new Channel.
type Config struct {
	Mode        Mode
	MaxBodySize uint32 // 0 means DefaultMaxBodySize
}

// New wraps conn in a Channel. The reader goroutine is not started until
// Start is called, giving the owner a chance to install OnData/OnClose
// first.
func New(conn net.Conn, cfg Config) *Channel {
	max := cfg.MaxBodySize
	if max == 0 {
		max = DefaultMaxBodySize
	}
	return &Channel{
		conn:        conn,
		mode:        cfg.Mode,
		maxBodySize: max,
	}
}

// OnOpen installs the sink invoked once, from Start, before the read loop begins.
func (c *Channel) OnOpen(f func())       { c.onOpen = f }
func (c *Channel) OnData(f func([]byte)) { c.onData = f }
func (c *Channel) OnClose(f func(error)) { c.onClose = f }
func (c *Channel) Conn() net.Conn        { return c.conn }

// AddOnClose appends f to run after whatever OnClose handler is already
// installed, instead of replacing it. Transport owners (Acceptor,
// Connector) use this to attach their own bookkeeping after a caller has
// already wired up its own OnClose via OnOpen/OnSession, so neither
// registration clobbers the other.
func (c *Channel) AddOnClose(f func(error)) {
	prev := c.onClose
	c.onClose = func(err error) {
		if prev != nil {
			prev(err)
		}
		f(err)
	}
}

func (c *Channel) IsOpen() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return !c.closed
}

// Start fires OnOpen (if set) and launches the read loop goroutine.
func (c *Channel) Start() {
	if c.onOpen != nil {
		c.onOpen()
	}
	go c.readLoop()
}

// Send writes body to the connection. In ModePacked it is length-prefixed
// first. Send on a closed channel is a no-op — it does not surface an error.
func (c *Channel) Send(body []byte) error {
	if !c.IsOpen() {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.mode == ModePacked {
		return protocol.EncodeFrame(c.conn, body)
	}
	_, err := c.conn.Write(body)
	return err
}

// Close closes the underlying connection and fires OnClose exactly once.
func (c *Channel) Close() error {
	return c.closeWithError(nil)
}

func (c *Channel) closeWithError(err error) error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	closeErr := c.conn.Close()
	c.once.Do(func() {
		if c.onClose != nil {
			c.onClose(err)
		}
	})
	return closeErr
}

func (c *Channel) readLoop() {
	switch c.mode {
	case ModePacked:
		c.readLoopPacked()
	default:
		c.readLoopRaw()
	}
}

func (c *Channel) readLoopRaw() {
	buf := make([]byte, 32*1024)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 && c.onData != nil {
			cp := make([]byte, n)
			copy(cp, buf[:n])
			c.onData(cp)
		}
		if err != nil {
			c.closeWithError(translateReadErr(err))
			return
		}
	}
}

// readLoopPacked implements the ReadHeader -> ReadBody -> Deliver -> ReadHeader
// state machine via protocol.DecodeFrame, one complete frame at a time.
func (c *Channel) readLoopPacked() {
	for {
		body, err := protocol.DecodeFrame(c.conn, c.maxBodySize)
		if err != nil {
			if errors.Is(err, protocol.ErrFrameTooLarge) {
				log.Printf("channel: oversize frame from %s, closing", c.remoteAddr())
			}
			c.closeWithError(translateReadErr(err))
			return
		}
		if c.onData != nil {
			c.onData(body)
		}
	}
}

func (c *Channel) remoteAddr() string {
	if c.conn == nil || c.conn.RemoteAddr() == nil {
		return "unknown"
	}
	return c.conn.RemoteAddr().String()
}

func translateReadErr(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
