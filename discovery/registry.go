// Package discovery lets a Connector resolve a named service to a
// concrete transport.Endpoint immediately before each connect attempt,
// rather than dialing a literal address.
package discovery

import "context"

// Instance is one registered address for a named service.
type Instance struct {
	Address string
	Weight  int
}

// Registry looks up and maintains the live instance set for a named
// service. Every method takes a context so a caller can bound how long it
// is willing to wait on the backing store (etcd round trips, in
// particular, should never block a caller indefinitely).
type Registry interface {
	Register(ctx context.Context, name string, inst Instance, ttlSeconds int64) error
	Deregister(ctx context.Context, name string, addr string) error
	Discover(ctx context.Context, name string) ([]Instance, error)
	Watch(ctx context.Context, name string) <-chan []Instance
}
