// Package registry keeps track of which hosts serve which method channel.
//
// EtcdRegistry stores one key per endpoint:
//
//	Key:   /method-bridge/{url-escaped channel}/{Addr}
//	Value: JSON-encoded Endpoint
//
// Registrations hold a TTL lease. A host that dies stops renewing, the lease
// expires and etcd removes the key, so callers never see ghost endpoints.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const keyRoot = "/method-bridge/"

// EtcdRegistry implements Registry on etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client
	logger *zap.Logger

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID // key → lease, revoked on Deregister
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, logger *zap.Logger) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, fmt.Errorf("registry: connect etcd: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EtcdRegistry{client: c, logger: logger, leases: make(map[string]clientv3.LeaseID)}, nil
}

func channelPrefix(channel string) string {
	return keyRoot + url.PathEscape(channel) + "/"
}

func endpointKey(channel, addr string) string {
	return channelPrefix(channel) + addr
}

// Register stores ep under channel with a lease of ttl seconds and keeps the
// lease alive until Deregister or Close.
func (r *EtcdRegistry) Register(ctx context.Context, channel string, ep Endpoint, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("registry: grant lease: %w", err)
	}

	val, err := json.Marshal(ep)
	if err != nil {
		return err
	}

	key := endpointKey(channel, ep.Addr)
	if _, err = r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("registry: put %s: %w", key, err)
	}

	// KeepAlive must outlive the caller's ctx; it stops when the lease is revoked or the client closes.
	ch, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return fmt.Errorf("registry: keepalive: %w", err)
	}
	go func() {
		for range ch {
		}
		r.logger.Debug("lease keepalive stopped", zap.String("key", key))
	}()

	r.mu.Lock()
	r.leases[key] = lease.ID
	r.mu.Unlock()
	return nil
}

// Deregister removes an endpoint and revokes its lease.
func (r *EtcdRegistry) Deregister(ctx context.Context, channel string, addr string) error {
	key := endpointKey(channel, addr)

	r.mu.Lock()
	leaseID, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()

	if _, err := r.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("registry: delete %s: %w", key, err)
	}
	if ok {
		if _, err := r.client.Revoke(ctx, leaseID); err != nil {
			return fmt.Errorf("registry: revoke lease: %w", err)
		}
	}
	return nil
}

// Discover returns every endpoint currently registered for channel.
func (r *EtcdRegistry) Discover(ctx context.Context, channel string) ([]Endpoint, error) {
	resp, err := r.client.Get(ctx, channelPrefix(channel), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("registry: get %s: %w", channel, err)
	}

	endpoints := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var ep Endpoint
		if err := json.Unmarshal(kv.Value, &ep); err != nil {
			r.logger.Warn("skipping malformed endpoint", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// Watch emits the full endpoint list after every change under channel,
// until ctx is cancelled.
func (r *EtcdRegistry) Watch(ctx context.Context, channel string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, channelPrefix(channel), clientv3.WithPrefix())
		for range watchChan {
			// Re-reading the prefix is simpler than applying individual events.
			endpoints, err := r.Discover(ctx, channel)
			if err != nil {
				r.logger.Warn("watch refresh failed", zap.String("channel", channel), zap.Error(err))
				continue
			}
			select {
			case ch <- endpoints:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Close shuts the etcd client, which also stops every lease keepalive.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
