package rpc

import (
	"net"
	"testing"
	"time"

	"asio-net/channel"
	"asio-net/codec"
)

func newSessionPair(t *testing.T) (*Session, *Session) {
	t.Helper()
	c1, c2 := net.Pipe()
	cfg := channel.Config{Mode: channel.ModePacked}
	sa := NewSession(channel.New(c1, cfg), codec.Get(codec.TypeJSON))
	sb := NewSession(channel.New(c2, cfg), codec.Get(codec.TypeJSON))
	sa.Start()
	sb.Start()
	return sa, sb
}

func TestSessionRoundTrip(t *testing.T) {
	sa, sb := newSessionPair(t)
	defer sa.Close()
	defer sb.Close()

	Subscribe(sb.Connection(), "double", func(n int) (any, bool) {
		return n * 2, true
	})

	done := make(chan int, 1)
	CallAs(sa.Connection().Cmd("double").Msg(21), func(v int) {
		done <- v
	}, func() { t.Error("unexpected timeout") }, func(err error) { t.Errorf("unexpected error: %v", err) })

	select {
	case v := <-done:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("call never completed")
	}
}

// TestSessionCloseCancelsInFlightCallsWithClosedNotTimeout matches the
// end-to-end scenario where a call in flight when its session's channel
// closes must fail immediately with "closed", not eventually time out.
func TestSessionCloseCancelsInFlightCallsWithClosedNotTimeout(t *testing.T) {
	sa, sb := newSessionPair(t)
	defer sb.Close()

	// sb never responds to "slow", so the call would otherwise sit in the
	// pending table until its long timeout expires.
	Subscribe(sb.Connection(), "slow", func(_ struct{}) (any, bool) {
		return nil, false
	})

	errCh := make(chan error, 1)
	sa.Connection().Cmd("slow").Msg(struct{}{}).Timeout(time.Hour).Call(
		func(v any) { t.Error("unexpected success") },
		func() { t.Error("expected error, not timeout, on channel close") },
		func(err error) { errCh <- err },
	)

	time.Sleep(20 * time.Millisecond) // let the request actually go out
	sa.Close()

	select {
	case err := <-errCh:
		if err.Error() != "closed" {
			t.Fatalf(`expected "closed", got %v`, err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected pending call to be cancelled promptly on close")
	}
}

// TestSessionRequestHandlerFinishingAfterPeerCloseIsSafeAndSilent matches
// the end-to-end scenario of a session closing on one side while the peer
// is still mid-handler for a request that session sent: the closing side
// cancels its pending call with "closed" well before the handler on the
// other end finishes, and the far side's own Channel observes the pipe
// tear down, so the eventual (encoded but now-unsendable) response is
// dropped by Channel.Send's closed-channel no-op rather than delivered
// twice or causing a panic against torn-down state.
func TestSessionRequestHandlerFinishingAfterPeerCloseIsSafeAndSilent(t *testing.T) {
	sa, sb := newSessionPair(t)
	defer sb.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	Subscribe(sb.Connection(), "gate", func(_ struct{}) (any, bool) {
		close(entered)
		<-release
		return "ok", true
	})

	done := make(chan string, 1)
	errCh := make(chan error, 1)
	CallAs(sa.Connection().Cmd("gate").Msg(struct{}{}).Timeout(time.Hour), func(v string) {
		done <- v
	}, func() { t.Error("unexpected timeout") }, func(err error) {
		errCh <- err
	})

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("handler never started")
	}

	sa.Close()

	select {
	case err := <-errCh:
		if err.Error() != "closed" {
			t.Fatalf(`expected "closed", got %v`, err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the pending call to be cancelled promptly on local close")
	}

	// Let the handler on sb finish well after sa has already torn its own
	// session down. Its response goes through Connection.handleRequest and
	// Channel.Send against sb's channel, already closed by the pipe's
	// teardown, which must not panic;
	// the pending call was already resolved above and must not fire twice.
	close(release)
	select {
	case v := <-done:
		t.Fatalf("onSuccess fired a second time after close with %q", v)
	case <-time.After(100 * time.Millisecond):
	}
}
