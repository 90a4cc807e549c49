package discovery

// Balancer picks one instance from a Registry.Discover result, called
// once per connect attempt by a discovery-backed transport.Connector.
type Balancer interface {
	Pick(instances []Instance) (*Instance, error)
	Name() string
}
