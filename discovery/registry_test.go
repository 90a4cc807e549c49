package discovery

import (
	"context"
	"testing"

	"asio-net/transport"
)

func TestStaticRegistryRegisterDiscoverDeregister(t *testing.T) {
	ctx := context.Background()
	reg := NewStaticRegistry()
	reg.Register(ctx, "dds-server", Instance{Address: "127.0.0.1:9000"}, 10)
	reg.Register(ctx, "dds-server", Instance{Address: "127.0.0.1:9001"}, 10)

	got, err := reg.Discover(ctx, "dds-server")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(got))
	}

	reg.Deregister(ctx, "dds-server", "127.0.0.1:9000")
	got, _ = reg.Discover(ctx, "dds-server")
	if len(got) != 1 || got[0].Address != "127.0.0.1:9001" {
		t.Fatalf("expected only 127.0.0.1:9001 left, got %v", got)
	}
}

func TestResolveUsesRegistryAndBalancer(t *testing.T) {
	reg := NewStaticRegistry()
	reg.Register(context.Background(), "rpc-server", Instance{Address: "10.0.0.1:9000"}, 10)

	resolve := Resolve(reg, NewRoundRobinBalancer(), "rpc-server", transport.NetworkTCP)
	ep, err := resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Address != "10.0.0.1:9000" || ep.Network != transport.NetworkTCP {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
}

func TestResolveErrorsWhenNoInstances(t *testing.T) {
	reg := NewStaticRegistry()
	resolve := Resolve(reg, NewRoundRobinBalancer(), "missing", transport.NetworkTCP)
	if _, err := resolve(); err == nil {
		t.Fatal("expected an error when no instances are registered")
	}
}
