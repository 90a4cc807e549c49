// etcd backs Registry as a distributed phonebook: entries carry a TTL
// lease so a crashed server's registration expires on its own instead of
// lingering as a dead endpoint other clients keep dialing.
package discovery

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdRegistry implements Registry over etcd v3, keying entries under
// /asio-net/{name}/{addr}.
type EtcdRegistry struct {
	client *clientv3.Client
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

// Close releases the underlying etcd client connection.
func (r *EtcdRegistry) Close() error { return r.client.Close() }

func keyFor(name, addr string) string {
	return "/asio-net/" + name + "/" + addr
}

func prefixFor(name string) string {
	return "/asio-net/" + name + "/"
}

// Register puts inst under a TTL lease and starts background KeepAlive so
// the entry survives as long as this process does; ctx only bounds the
// initial grant/put round trip, not the lifetime of the lease itself.
func (r *EtcdRegistry) Register(ctx context.Context, name string, inst Instance, ttlSeconds int64) error {
	lease, err := r.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return err
	}
	val, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	if _, err := r.client.Put(ctx, keyFor(name, inst.Address), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return err
	}
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes name/addr's key immediately.
func (r *EtcdRegistry) Deregister(ctx context.Context, name string, addr string) error {
	_, err := r.client.Delete(ctx, keyFor(name, addr))
	return err
}

// Discover returns every instance currently registered for name.
func (r *EtcdRegistry) Discover(ctx context.Context, name string) ([]Instance, error) {
	resp, err := r.client.Get(ctx, prefixFor(name), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst Instance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch re-fetches the full instance list on every change under name's
// prefix, and stops for good once ctx is cancelled instead of leaking its
// goroutine for the life of the process.
func (r *EtcdRegistry) Watch(ctx context.Context, name string) <-chan []Instance {
	out := make(chan []Instance, 1)
	watchChan := r.client.Watch(ctx, prefixFor(name), clientv3.WithPrefix())
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watchChan:
				if !ok {
					return
				}
				instances, err := r.Discover(ctx, name)
				if err != nil {
					continue
				}
				select {
				case out <- instances:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
