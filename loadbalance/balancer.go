// Package loadbalance picks which endpoint serves the next call on a channel.
//
//   - RoundRobin:      equal-capacity hosts
//   - WeightedRandom:  hosts with different capacity (Endpoint.Weight)
//   - ConsistentHash:  the same key (method name) sticks to the same host
package loadbalance

import (
	"errors"
	"fmt"

	"method-bridge/registry"
)

var ErrNoEndpoints = errors.New("no endpoints available")

// Balancer selects one endpoint. key identifies the call; only key-aware
// strategies look at it. Pick is called for every call and must be goroutine-safe.
type Balancer interface {
	Pick(key string, endpoints []registry.Endpoint) (*registry.Endpoint, error)
	Name() string
}

// New returns the balancer registered under name.
func New(name string) (Balancer, error) {
	switch name {
	case "", "round_robin":
		return &RoundRobinBalancer{}, nil
	case "weighted_random":
		return &WeightedRandomBalancer{}, nil
	case "consistent_hash":
		return NewConsistentHashBalancer(), nil
	}
	return nil, fmt.Errorf("loadbalance: unknown balancer %q", name)
}
