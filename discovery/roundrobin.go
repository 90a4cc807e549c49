package discovery

import (
	"fmt"
	"sync"
)

// RoundRobinBalancer distributes picks across instances proportionally to
// their Weight using the smooth weighted round-robin algorithm: each
// instance accumulates its weight every pick and the one with the highest
// running total is chosen and then debited by the sum of all weights.
// Unlike a plain modulo counter this spreads a heavier instance's extra
// picks evenly through the sequence instead of clustering them.
type RoundRobinBalancer struct {
	mu    sync.Mutex
	state map[string]*rrState
}

type rrState struct {
	effectiveWeight int
	currentWeight   int
}

// NewRoundRobinBalancer creates a RoundRobinBalancer with no prior state.
func NewRoundRobinBalancer() *RoundRobinBalancer {
	return &RoundRobinBalancer{state: make(map[string]*rrState)}
}

func (b *RoundRobinBalancer) Pick(instances []Instance) (*Instance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("discovery: no instances available")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		b.state = make(map[string]*rrState)
	}

	total := 0
	var best *Instance
	var bestState *rrState
	for i := range instances {
		inst := &instances[i]
		weight := inst.Weight
		if weight <= 0 {
			weight = 1
		}
		st, ok := b.state[inst.Address]
		if !ok {
			st = &rrState{}
			b.state[inst.Address] = st
		}
		st.effectiveWeight = weight
		st.currentWeight += weight
		total += weight
		if bestState == nil || st.currentWeight > bestState.currentWeight {
			best = inst
			bestState = st
		}
	}
	bestState.currentWeight -= total
	return best, nil
}

func (b *RoundRobinBalancer) Name() string { return "RoundRobin" }
