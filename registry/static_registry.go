package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// StaticRegistry is an in-process Registry, used when no etcd cluster is
// configured and in tests. TTLs are ignored.
type StaticRegistry struct {
	mu        sync.Mutex
	endpoints map[string][]Endpoint
	watchers  map[string][]chan []Endpoint
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		endpoints: make(map[string][]Endpoint),
		watchers:  make(map[string][]chan []Endpoint),
	}
}

// Register adds ep, replacing any endpoint with the same address.
func (s *StaticRegistry) Register(ctx context.Context, channel string, ep Endpoint, ttl int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("static registry: register %s: %w", ep.Addr, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	eps := slices.DeleteFunc(s.endpoints[channel], func(e Endpoint) bool { return e.Addr == ep.Addr })
	s.endpoints[channel] = append(eps, ep)
	s.notify(channel)
	return nil
}

func (s *StaticRegistry) Deregister(ctx context.Context, channel string, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[channel] = slices.DeleteFunc(s.endpoints[channel], func(e Endpoint) bool { return e.Addr == addr })
	s.notify(channel)
	return nil
}

func (s *StaticRegistry) Discover(ctx context.Context, channel string) ([]Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.endpoints[channel]), nil
}

// Watch emits the endpoint list after every change until ctx is cancelled.
// A slow reader only ever sees the latest list.
func (s *StaticRegistry) Watch(ctx context.Context, channel string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)
	s.mu.Lock()
	s.watchers[channel] = append(s.watchers[channel], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		s.watchers[channel] = slices.DeleteFunc(s.watchers[channel], func(c chan []Endpoint) bool { return c == ch })
		close(ch)
	}()
	return ch
}

// notify must be called with mu held.
func (s *StaticRegistry) notify(channel string) {
	snapshot := slices.Clone(s.endpoints[channel])
	for _, ch := range s.watchers[channel] {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}
