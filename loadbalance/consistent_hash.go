package loadbalance

import (
	"fmt"
	"hash/crc32"
	"slices"
	"sort"
	"strings"
	"sync"

	"method-bridge/registry"
)

// ConsistentHashBalancer maps keys onto a hash ring of endpoints. Each
// endpoint owns `replicas` virtual nodes hashed from "{addr}#{i}" so a
// handful of hosts still spread evenly. The ring is rebuilt whenever the
// endpoint set handed to Pick changes.
type ConsistentHashBalancer struct {
	replicas int

	mu        sync.Mutex
	signature string
	ring      []uint32                     // sorted virtual node hashes
	nodes     map[uint32]registry.Endpoint // virtual node → endpoint
}

func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{replicas: 100}
}

func (b *ConsistentHashBalancer) Pick(key string, endpoints []registry.Endpoint) (*registry.Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rebuild(endpoints)

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}
	ep := b.nodes[b.ring[idx]]
	return &ep, nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "consistent_hash"
}

// rebuild must be called with mu held.
func (b *ConsistentHashBalancer) rebuild(endpoints []registry.Endpoint) {
	addrs := make([]string, len(endpoints))
	for i, ep := range endpoints {
		addrs[i] = ep.Addr
	}
	slices.Sort(addrs)
	sig := strings.Join(addrs, ",")
	if sig == b.signature && b.ring != nil {
		return
	}

	b.signature = sig
	b.ring = make([]uint32, 0, len(endpoints)*b.replicas)
	b.nodes = make(map[uint32]registry.Endpoint, len(endpoints)*b.replicas)
	for _, ep := range endpoints {
		for i := 0; i < b.replicas; i++ {
			hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", ep.Addr, i)))
			b.ring = append(b.ring, hash)
			b.nodes[hash] = ep
		}
	}
	slices.Sort(b.ring)
}
