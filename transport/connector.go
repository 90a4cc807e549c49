package transport

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"asio-net/channel"
)

// DefaultReconnectInterval is the delay before an automatic reconnect
// attempt when the caller hasn't overridden it.
const DefaultReconnectInterval = 1000 * time.Millisecond

// Resolver resolves a logical Connector target into a concrete Endpoint
// immediately before each connect attempt. A discovery-backed Registry and
// Balancer pair can implement this to support address-changing reconnects;
// a Connector built with a literal Endpoint uses a resolver that always
// returns that same Endpoint.
type Resolver func() (Endpoint, error)

// Connector resolves and connects to an endpoint, producing a
// channel.Channel on success, with optional automatic reconnect.
//
// Reconnect is edge-triggered: at most one outstanding attempt is ever
// scheduled at a time, guarded by the connecting flag.
type Connector struct {
	resolve     Resolver
	channelCfg  channel.Config
	reconnectMs int64 // atomic; 0 disables reconnect

	OnOpen       func(*channel.Channel)
	OnOpenFailed func(error)

	mu          sync.Mutex
	channel     *channel.Channel
	connecting  atomic.Bool
	closed      atomic.Bool
	reconnectAt *time.Timer
}

// NewConnector creates a Connector for a fixed endpoint.
func NewConnector(endpoint Endpoint, channelCfg channel.Config) *Connector {
	return NewConnectorResolved(func() (Endpoint, error) { return endpoint, nil }, channelCfg)
}

// NewConnectorResolved creates a Connector that re-resolves its target via
// resolve before every connect attempt (used for discovery-backed clients).
func NewConnectorResolved(resolve Resolver, channelCfg channel.Config) *Connector {
	c := &Connector{resolve: resolve, channelCfg: channelCfg}
	c.reconnectMs = int64(DefaultReconnectInterval / time.Millisecond)
	return c
}

// SetReconnectInterval sets the delay before a reconnect attempt after an
// unexpected close. 0 disables automatic reconnect.
func (c *Connector) SetReconnectInterval(d time.Duration) {
	atomic.StoreInt64(&c.reconnectMs, int64(d/time.Millisecond))
}

// Open resolves the target and dials it once. On success it constructs a
// Channel, fires OnOpen, and starts reading; on failure it fires
// OnOpenFailed and, if reconnect is enabled, schedules another attempt.
func (c *Connector) Open() {
	if !c.connecting.CompareAndSwap(false, true) {
		return // edge-triggered: an attempt is already outstanding
	}
	go c.attemptConnect()
}

func (c *Connector) attemptConnect() {
	defer c.connecting.Store(false)

	ep, err := c.resolve()
	if err == nil {
		var nc net.Conn
		nc, err = ep.dial()
		if err == nil {
			ch := channel.New(nc, c.channelCfg)
			c.mu.Lock()
			c.channel = ch
			c.mu.Unlock()
			if c.OnOpen != nil {
				// Let the caller wire OnData/OnClose (typically via
				// rpc.NewSession) before the read loop can deliver anything.
				c.OnOpen(ch)
			}
			ch.AddOnClose(func(closeErr error) {
				c.handleClose(closeErr)
			})
			ch.Start()
			return
		}
	}

	if c.OnOpenFailed != nil {
		c.OnOpenFailed(err)
	}
	c.scheduleReconnect()
}

func (c *Connector) handleClose(error) {
	c.mu.Lock()
	c.channel = nil
	c.mu.Unlock()
	if !c.closed.Load() {
		c.scheduleReconnect()
	}
}

func (c *Connector) scheduleReconnect() {
	ms := atomic.LoadInt64(&c.reconnectMs)
	if ms <= 0 || c.closed.Load() {
		return
	}
	c.mu.Lock()
	if c.reconnectAt != nil {
		c.reconnectAt.Stop()
	}
	c.reconnectAt = time.AfterFunc(time.Duration(ms)*time.Millisecond, c.Open)
	c.mu.Unlock()
}

// CancelReconnect disables further automatic reconnect attempts and cancels
// any pending one.
func (c *Connector) CancelReconnect() {
	atomic.StoreInt64(&c.reconnectMs, 0)
	c.mu.Lock()
	if c.reconnectAt != nil {
		c.reconnectAt.Stop()
		c.reconnectAt = nil
	}
	c.mu.Unlock()
}

// Close cancels reconnect permanently and closes the live channel, if any.
func (c *Connector) Close() error {
	c.closed.Store(true)
	c.CancelReconnect()
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch != nil {
		return ch.Close()
	}
	return nil
}

// Channel returns the currently open channel, or nil if not connected.
func (c *Connector) Channel() *channel.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}
