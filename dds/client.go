package dds

import (
	"sync"
	"time"

	"asio-net/codec"
	"asio-net/message"
	"asio-net/rpc"
	"asio-net/rpcnet"
	"asio-net/transport"
)

// Handler receives a topic's published data.
type Handler func(data string)

type handlerRegistration struct {
	id      uint64
	topic   string
	handler Handler
}

// Client subscribes to and publishes on topics through one reconnecting
// rpcnet.Client.
//
// Handle IDs are an explicit incrementing uint64 counter rather than a
// pointer cast: Go's garbage collector can move or reclaim the backing
// memory of a value, so a value's address is not a stable identity to
// hand back to a caller as a subscription handle.
type Client struct {
	inner *rpcnet.Client

	mu      sync.Mutex
	nextID  uint64
	topics  map[string][]handlerRegistration
	OnOpen  func()
	OnClose func()
}

// NewClient creates a DDS Client targeting endpoint, with a 1000ms
// reconnect interval.
func NewClient(endpoint transport.Endpoint, c codec.Codec) *Client {
	cl := &Client{inner: rpcnet.NewClient(endpoint, c), topics: make(map[string][]handlerRegistration)}
	cl.inner.SetReconnectInterval(1000 * time.Millisecond)
	cl.inner.OnOpen = cl.onOpen
	cl.inner.OnClose = func() {
		if cl.OnClose != nil {
			cl.OnClose()
		}
	}
	return cl
}

// NewClientDiscovered creates a DDS Client whose target is re-resolved
// via resolve before every (re)connect attempt.
func NewClientDiscovered(resolve transport.Resolver, c codec.Codec) *Client {
	cl := &Client{inner: rpcnet.NewClientDiscovered(resolve, c), topics: make(map[string][]handlerRegistration)}
	cl.inner.SetReconnectInterval(1000 * time.Millisecond)
	cl.inner.OnOpen = cl.onOpen
	cl.inner.OnClose = func() {
		if cl.OnClose != nil {
			cl.OnClose()
		}
	}
	return cl
}

func (cl *Client) onOpen(conn *rpc.Connection) {
	rpc.Subscribe(conn, "publish", func(msg message.Msg) (any, bool) {
		cl.dispatchPublish(msg)
		return ack{}, true
	})
	cl.resync()
	if cl.OnOpen != nil {
		cl.OnOpen()
	}
}

// Open resolves and connects.
func (cl *Client) Open() { cl.inner.Open() }

// Close disables reconnect and closes the live session, if any.
func (cl *Client) Close() error { return cl.inner.Close() }

// Publish sends data on topic. It dispatches to this client's own local
// handlers before the network call, so a publisher observes its own
// publish via local dispatch and never waits on a server echo.
func (cl *Client) Publish(topic string, data string) {
	msg := message.Msg{Topic: topic, Data: data}
	cl.dispatchPublish(msg)
	conn := cl.inner.Connection()
	if conn == nil {
		return
	}
	rpc.CallAs(conn.Cmd("publish").Msg(msg).Retry(-1), func(ack) {}, func() {}, func(error) {})
}

// Subscribe registers handler for topic and returns a handle ID usable
// with Unsubscribe. The first subscription to a new topic triggers a
// topic-list resync with the server.
func (cl *Client) Subscribe(topic string, handler Handler) uint64 {
	cl.mu.Lock()
	cl.nextID++
	id := cl.nextID
	_, existed := cl.topics[topic]
	cl.topics[topic] = append(cl.topics[topic], handlerRegistration{id: id, topic: topic, handler: handler})
	cl.mu.Unlock()

	if !existed {
		cl.resync()
	}
	return id
}

// UnsubscribeTopic removes every handler registered for topic. Returns
// false if topic had no registrations.
func (cl *Client) UnsubscribeTopic(topic string) bool {
	cl.mu.Lock()
	_, ok := cl.topics[topic]
	delete(cl.topics, topic)
	cl.mu.Unlock()
	if ok {
		cl.resync()
	}
	return ok
}

// Unsubscribe removes the single handler registered under id. If that
// was the last handler for its topic, the topic itself is dropped and a
// resync is sent; removing one handle from a many-handle topic does not
// resync, since the server's subscription set for that topic is unchanged.
func (cl *Client) Unsubscribe(id uint64) bool {
	cl.mu.Lock()
	var removedFrom string
	found := false
	for topic, regs := range cl.topics {
		for i, r := range regs {
			if r.id == id {
				cl.topics[topic] = append(regs[:i:i], regs[i+1:]...)
				removedFrom = topic
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	topicNowEmpty := found && len(cl.topics[removedFrom]) == 0
	if topicNowEmpty {
		delete(cl.topics, removedFrom)
	}
	cl.mu.Unlock()

	if topicNowEmpty {
		cl.resync()
	}
	return found
}

func (cl *Client) dispatchPublish(msg message.Msg) {
	cl.mu.Lock()
	regs := append([]handlerRegistration(nil), cl.topics[msg.Topic]...)
	cl.mu.Unlock()
	for _, r := range regs {
		r.handler(msg.Data)
	}
}

// resync sends the current topic key set to the server with infinite
// retry, called on every topic-set mutation and on every (re)connect so
// a reconnected client's subscriptions are always restored server-side.
func (cl *Client) resync() {
	conn := cl.inner.Connection()
	if conn == nil {
		return
	}
	cl.mu.Lock()
	topics := make(message.TopicList, 0, len(cl.topics))
	for topic := range cl.topics {
		topics = append(topics, topic)
	}
	cl.mu.Unlock()

	rpc.CallAs(conn.Cmd("update_topic_list").Msg(topics).Retry(-1), func(ack) {}, func() {}, func(error) {})
}
