package discovery

import (
	"context"
	"sync"
)

// StaticRegistry is a fixed, in-memory Registry: the common case of a
// literal endpoint list, useful for tests and single-process deployments
// that have no etcd cluster to talk to.
type StaticRegistry struct {
	mu        sync.Mutex
	instances map[string][]Instance
}

// NewStaticRegistry creates an empty StaticRegistry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{instances: make(map[string][]Instance)}
}

func (m *StaticRegistry) Register(_ context.Context, name string, inst Instance, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[name] = append(m.instances[name], inst)
	return nil
}

func (m *StaticRegistry) Deregister(_ context.Context, name string, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	insts := m.instances[name]
	for i, inst := range insts {
		if inst.Address == addr {
			m.instances[name] = append(insts[:i:i], insts[i+1:]...)
			break
		}
	}
	return nil
}

func (m *StaticRegistry) Discover(_ context.Context, name string) ([]Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Instance, len(m.instances[name]))
	copy(out, m.instances[name])
	return out, nil
}

func (m *StaticRegistry) Watch(context.Context, string) <-chan []Instance {
	return nil
}
