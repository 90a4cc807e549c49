package transport

import (
	"log"
	"net"
	"sync"
	"sync/atomic"

	"asio-net/channel"
)

// Acceptor is bound to an Endpoint. On each accepted connection it builds
// a channel.Channel and invokes OnSession. It owns the set of live
// channels strongly; a channel is removed from that set when it closes.
type Acceptor struct {
	endpoint   Endpoint
	channelCfg channel.Config
	OnSession  func(*channel.Channel)

	mu       sync.Mutex
	listener net.Listener
	started  bool
	shutdown atomic.Bool
	wg       sync.WaitGroup
	sessions sync.Map // *channel.Channel -> struct{}
}

// NewAcceptor creates an Acceptor bound to endpoint. Channels it produces
// use channelCfg (Mode should be ModePacked for RPC/DDS use).
func NewAcceptor(endpoint Endpoint, channelCfg channel.Config) *Acceptor {
	return &Acceptor{endpoint: endpoint, channelCfg: channelCfg}
}

// Start begins listening and accepting connections in a background goroutine.
func (a *Acceptor) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	l, err := a.endpoint.listen()
	if err != nil {
		return err
	}
	a.listener = l
	a.started = true
	a.wg.Add(1)
	go a.acceptLoop()
	return nil
}

// Address returns the bound listener's address, useful when Endpoint used
// a wildcard port.
func (a *Acceptor) Address() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return a.endpoint.Address
	}
	return a.listener.Addr().String()
}

func (a *Acceptor) acceptLoop() {
	defer a.wg.Done()
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if a.shutdown.Load() {
				return
			}
			log.Printf("transport: accept error on %s: %v", a.endpoint, err)
			return
		}
		ch := channel.New(conn, a.channelCfg)
		a.sessions.Store(ch, struct{}{})
		if a.OnSession != nil {
			// Let the caller wire OnData/OnClose (typically via
			// rpc.NewSession) before the read loop can deliver anything.
			a.OnSession(ch)
		}
		ch.AddOnClose(func(error) {
			a.sessions.Delete(ch)
		})
		ch.Start()
	}
}

// Stop closes the listener and every channel it accepted, waiting for the
// accept loop to exit first, so no new connection can be accepted after
// the ones already live start tearing down.
func (a *Acceptor) Stop() error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return nil
	}
	a.shutdown.Store(true)
	l := a.listener
	a.started = false
	a.mu.Unlock()

	var err error
	if l != nil {
		err = l.Close()
	}
	a.wg.Wait()

	a.sessions.Range(func(k, _ any) bool {
		k.(*channel.Channel).Close()
		return true
	})
	return err
}
