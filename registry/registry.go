package registry

import "context"

// Endpoint is one host serving a channel.
type Endpoint struct {
	Addr    string
	Weight  int // Weight for load balancing
	Version string
}

// Registry maps channel names to the endpoints serving them.
type Registry interface {
	Register(ctx context.Context, channel string, ep Endpoint, ttl int64) error
	Deregister(ctx context.Context, channel string, addr string) error
	Discover(ctx context.Context, channel string) ([]Endpoint, error)
	Watch(ctx context.Context, channel string) <-chan []Endpoint
}
