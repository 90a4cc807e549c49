package discovery

import (
	"context"
	"fmt"

	"asio-net/transport"
)

// Resolve builds a transport.Resolver that looks up name in reg and picks
// one instance with bal immediately before each connect attempt.
func Resolve(reg Registry, bal Balancer, name string, network transport.Network) transport.Resolver {
	return func() (transport.Endpoint, error) {
		instances, err := reg.Discover(context.Background(), name)
		if err != nil {
			return transport.Endpoint{}, err
		}
		if len(instances) == 0 {
			return transport.Endpoint{}, fmt.Errorf("discovery: no instances registered for %q", name)
		}
		inst, err := bal.Pick(instances)
		if err != nil {
			return transport.Endpoint{}, err
		}
		return transport.Endpoint{Network: network, Address: inst.Address}, nil
	}
}
