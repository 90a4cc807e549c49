package discovery

import (
	"fmt"
	"hash/crc32"
	"sort"
)

// baseReplicas is the virtual-node count given to an instance of Weight 1;
// higher-weight instances get proportionally more virtual nodes so they
// absorb a proportionally larger share of the key space.
const baseReplicas = 100

// ConsistentHashBalancer maps a key to the same instance across calls
// until the ring membership changes, giving cache/subscription affinity
// stable across reconnects. It is key-based, not instance-list-based, so
// it does not implement Balancer directly.
type ConsistentHashBalancer struct {
	ring  []uint32
	nodes map[uint32]*Instance
}

// NewConsistentHashBalancer creates an empty hash ring.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{nodes: make(map[uint32]*Instance)}
}

// Add places inst onto the ring with a number of virtual nodes
// proportional to its Weight (Weight <= 0 is treated as 1).
func (b *ConsistentHashBalancer) Add(inst *Instance) {
	weight := inst.Weight
	if weight <= 0 {
		weight = 1
	}
	replicas := baseReplicas * weight
	for i := 0; i < replicas; i++ {
		key := fmt.Sprintf("%s#%d", inst.Address, i)
		hash := crc32.ChecksumIEEE([]byte(key))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = inst
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

// Pick returns the instance responsible for key.
func (b *ConsistentHashBalancer) Pick(key string) (*Instance, error) {
	if len(b.ring) == 0 {
		return nil, fmt.Errorf("discovery: no instances on the ring")
	}
	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHashBalancer) Name() string { return "ConsistentHash" }
