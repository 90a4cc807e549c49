package transport

import (
	"sync"
	"testing"
	"time"

	"asio-net/channel"
)

func TestAcceptorConnectorEcho(t *testing.T) {
	acc := NewAcceptor(Endpoint{Network: NetworkTCP, Address: "127.0.0.1:0"}, channel.Config{Mode: channel.ModePacked})
	acc.OnSession = func(ch *channel.Channel) {
		ch.OnData(func(body []byte) {
			ch.Send(body)
		})
	}
	if err := acc.Start(); err != nil {
		t.Fatalf("acceptor start failed: %v", err)
	}
	defer acc.Stop()

	conn := NewConnector(Endpoint{Network: NetworkTCP, Address: acc.Address()}, channel.Config{Mode: channel.ModePacked})

	var mu sync.Mutex
	var got []string
	opened := make(chan *channel.Channel, 1)

	conn.OnOpen = func(ch *channel.Channel) {
		ch.OnData(func(body []byte) {
			mu.Lock()
			got = append(got, string(body))
			mu.Unlock()
		})
		opened <- ch
	}
	conn.Open()

	var ch *channel.Channel
	select {
	case ch = <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connect")
	}

	for i := 0; i < 3; i++ {
		if err := ch.Send([]byte{'a' + byte(i)}); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for echoes")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("expect [a b c], got %v", got)
	}
}

func TestConnectorReconnectAfterClose(t *testing.T) {
	acc := NewAcceptor(Endpoint{Network: NetworkTCP, Address: "127.0.0.1:0"}, channel.Config{Mode: channel.ModePacked})
	var accepted int32Counter
	acc.OnSession = func(ch *channel.Channel) {
		accepted.inc()
	}
	if err := acc.Start(); err != nil {
		t.Fatalf("acceptor start failed: %v", err)
	}
	defer acc.Stop()

	conn := NewConnector(Endpoint{Network: NetworkTCP, Address: acc.Address()}, channel.Config{Mode: channel.ModePacked})
	conn.SetReconnectInterval(20 * time.Millisecond)

	opens := make(chan *channel.Channel, 8)
	conn.OnOpen = func(ch *channel.Channel) { opens <- ch }
	conn.Open()

	first := <-opens
	first.Close()

	select {
	case <-opens:
	case <-time.After(2 * time.Second):
		t.Fatal("expected connector to reconnect after close")
	}

	conn.Close()
	if accepted.get() < 2 {
		t.Fatalf("expect at least 2 accepted connections, got %d", accepted.get())
	}
}

type int32Counter struct {
	mu sync.Mutex
	n  int
}

func (c *int32Counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *int32Counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
