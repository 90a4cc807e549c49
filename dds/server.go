// Package dds is a pub/sub fan-out overlay built on top of
// rpcnet.Server/Client. Subscriptions and publishes travel over two
// reserved RPC commands, "update_topic_list" and "publish", registered
// through the ordinary rpc.Subscribe mechanism on each session's
// Connection rather than needing any wire-format changes of their own.
package dds

import (
	"sync"
	"time"
	"weak"

	"asio-net/codec"
	"asio-net/message"
	"asio-net/middleware"
	"asio-net/rpc"
	"asio-net/rpcnet"
	"asio-net/transport"
)

// ack is the trivial response DDS reserved commands send back, so a
// caller's Call/CallAs completes normally through the ordinary RPC call
// machinery instead of leaving the call to time out with no server-side
// signal at all.
type ack struct{}

// Server fans published messages out to every other session subscribed
// to the same topic. Its topic map is topic -> set of session handles,
// keyed by the *rpc.Session pointer's identity; the value stored
// alongside each key is a weak.Pointer[rpc.Session] rather than a strong
// reference, so a session that closes without an explicit unsubscribe
// doesn't keep the Session (and everything it holds) alive through this
// map alone.
type Server struct {
	inner *rpcnet.Server

	mu     sync.RWMutex
	topics map[string]map[*rpc.Session]weak.Pointer[rpc.Session]
}

// NewServer creates a DDS Server bound to endpoint.
func NewServer(endpoint transport.Endpoint, c codec.Codec) *Server {
	s := &Server{
		inner:  rpcnet.NewServer(endpoint, c),
		topics: make(map[string]map[*rpc.Session]weak.Pointer[rpc.Session]),
	}
	s.inner.OnSession = s.onSession
	return s
}

// Use installs middleware on every session's inbound dispatch, applied
// ahead of the two reserved commands.
func (s *Server) Use(mws ...middleware.Middleware) { s.inner.Use(mws...) }

// Address returns the bound listener's address.
func (s *Server) Address() string { return s.inner.Address() }

// Start begins accepting connections; loop blocks until Shutdown as in rpcnet.Server.Start.
func (s *Server) Start(loop bool) error { return s.inner.Start(loop) }

// Shutdown stops accepting connections and closes every live session.
func (s *Server) Shutdown(timeout time.Duration) error { return s.inner.Shutdown(timeout) }

func (s *Server) onSession(sess *rpc.Session) {
	sess.AddOnClose(func(error) { s.removeSession(sess) })
	conn := sess.Connection()
	rpc.Subscribe(conn, "update_topic_list", func(topics message.TopicList) (any, bool) {
		s.updateTopicList(sess, topics)
		return ack{}, true
	})
	rpc.Subscribe(conn, "publish", func(msg message.Msg) (any, bool) {
		s.publish(sess, msg)
		return ack{}, true
	})
}

// updateTopicList is additive only: a client that stops sending a topic
// in its list does not get removed from that topic until its session
// closes. Treating the list as authoritative (removing topics the
// client drops) is a different, stricter policy this module does not
// implement.
func (s *Server) updateTopicList(sess *rpc.Session, topics message.TopicList) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wp := weak.Make(sess)
	for _, topic := range topics {
		set, ok := s.topics[topic]
		if !ok {
			set = make(map[*rpc.Session]weak.Pointer[rpc.Session])
			s.topics[topic] = set
		}
		set[sess] = wp
	}
}

// publish fans msg out to every session subscribed to msg.Topic except
// from: a publisher never receives its own publish back over the wire.
func (s *Server) publish(from *rpc.Session, msg message.Msg) {
	s.mu.RLock()
	set := s.topics[msg.Topic]
	targets := make([]*rpc.Session, 0, len(set))
	for key, wp := range set {
		if key == from {
			continue
		}
		if live := wp.Value(); live != nil {
			targets = append(targets, live)
		}
	}
	s.mu.RUnlock()

	for _, target := range targets {
		rpc.CallAs(target.Connection().Cmd("publish").Msg(msg).Retry(-1),
			func(ack) {}, func() {}, func(error) {})
	}
}

// TopicSubscriberCount reports how many live sessions are currently
// registered for topic — useful for diagnostics and for observing the
// additive update_topic_list behavior in tests.
func (s *Server) TopicSubscriberCount(topic string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics[topic])
}

// removeSession drops sess's identity from every topic, deleting any
// topic left with no subscribers so the topic map never accumulates
// empty entries.
func (s *Server) removeSession(sess *rpc.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var empty []string
	for topic, set := range s.topics {
		if _, ok := set[sess]; ok {
			delete(set, sess)
			if len(set) == 0 {
				empty = append(empty, topic)
			}
		}
	}
	for _, topic := range empty {
		delete(s.topics, topic)
	}
}
