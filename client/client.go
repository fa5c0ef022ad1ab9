// Package client invokes methods on a remote method channel.
//
//	InvokeMethod → middleware chain (retry, logging, ...) → roundTrip
//	  → endpoint cache (registry.Discover, then registry.Watch) → Balancer.Pick
//	  → pooled ClientTransport → reply envelope
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"method-bridge/benchmark"
	"method-bridge/bridge"
	"method-bridge/codec"
	"method-bridge/loadbalance"
	"method-bridge/message"
	"method-bridge/middleware"
	"method-bridge/registry"
	"method-bridge/transport"

	"go.uber.org/zap"
)

// RemoteError is a failure reported by the host or the transport that does
// not belong to the bridge error taxonomy (timeouts, rate limiting, ...).
type RemoteError struct {
	Method  string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Method, e.Code, e.Message)
}

// Client is the caller side of a method channel.
type Client struct {
	registry  registry.Registry
	balancer  loadbalance.Balancer
	channel   string
	codecType codec.CodecType
	poolSize  int
	heartbeat time.Duration
	logger    *zap.Logger
	dialer    net.Dialer

	mu         sync.Mutex
	transports map[string]chan *transport.ClientTransport // per address; nil slots are dialed lazily

	epMu      sync.Mutex
	endpoints []registry.Endpoint // replaced, never mutated in place
	cached    bool
	watchCtx  context.Context
	stopWatch context.CancelFunc

	middlewares []middleware.Middleware
	buildOnce   sync.Once
	handler     middleware.HandlerFunc
}

type Option func(*Client)

func WithChannel(name string) Option {
	return func(c *Client) { c.channel = name }
}

func WithCodec(t codec.CodecType) Option {
	return func(c *Client) { c.codecType = t }
}

// WithPoolSize sets how many connections are kept per endpoint.
func WithPoolSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

func WithHeartbeat(d time.Duration) Option {
	return func(c *Client) { c.heartbeat = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(reg registry.Registry, bal loadbalance.Balancer, opts ...Option) *Client {
	c := &Client{
		registry:   reg,
		balancer:   bal,
		channel:    benchmark.ChannelName,
		codecType:  codec.CodecTypeJSON,
		poolSize:   4,
		logger:     zap.NewNop(),
		transports: make(map[string]chan *transport.ClientTransport),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Use adds a middleware around every call. It must be called before the first InvokeMethod.
func (c *Client) Use(mw middleware.Middleware) {
	c.middlewares = append(c.middlewares, mw)
}

// InvokeMethod calls method with args (JSON-encoded, nil for none) and
// decodes the result into reply (may be nil).
//
// Errors: *bridge.CallError for argument failures reported by the host,
// bridge.ErrNotImplemented for unknown methods, *RemoteError for other host
// or transport failures, and ctx.Err() when ctx ends first.
func (c *Client) InvokeMethod(ctx context.Context, method string, args any, reply any) error {
	c.buildOnce.Do(func() {
		c.handler = middleware.Chain(c.middlewares...)(c.roundTrip)
	})

	req := &message.Envelope{Method: method}
	if args != nil {
		payload, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("client: marshal %s arguments: %w", method, err)
		}
		req.Payload = payload
	}

	resp := c.handler(ctx, req)
	if resp == nil {
		return &RemoteError{Method: method, Code: middleware.CodeInternal, Message: "no reply"}
	}

	switch resp.Status {
	case message.StatusSuccess:
		if reply == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Payload, reply); err != nil {
			return fmt.Errorf("client: decode %s result: %w", method, err)
		}
		return nil
	case message.StatusNotImplemented:
		return fmt.Errorf("%s: %w", method, bridge.ErrNotImplemented)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("client: %s: %w", method, err)
	}
	if kind := bridge.KindFromCode(resp.Code); kind != 0 {
		return &bridge.CallError{Kind: kind, Method: method, Err: errors.New(resp.Error)}
	}
	return &RemoteError{Method: method, Code: resp.Code, Message: resp.Error}
}

// roundTrip is the innermost handler: it always returns an envelope, turning
// local failures into error replies so middleware can inspect them.
func (c *Client) roundTrip(ctx context.Context, req *message.Envelope) *message.Envelope {
	endpoints, err := c.discover(ctx)
	if err != nil {
		return middleware.ErrorReply(req, middleware.CodeUnavailable, err.Error())
	}
	ep, err := c.balancer.Pick(req.Method, endpoints)
	if err != nil {
		return middleware.ErrorReply(req, middleware.CodeUnavailable, fmt.Sprintf("channel %s: %v", c.channel, err))
	}

	t, err := c.getTransport(ctx, ep.Addr)
	if err != nil {
		return c.failure(ctx, req, err)
	}
	defer c.putTransport(ep.Addr, t)

	resp, err := t.Call(ctx, req)
	if err != nil {
		return c.failure(ctx, req, err)
	}
	return resp
}

func (c *Client) failure(ctx context.Context, req *message.Envelope, err error) *message.Envelope {
	if ctx.Err() != nil {
		return middleware.ErrorReply(req, middleware.CodeTimeout, err.Error())
	}
	return middleware.ErrorReply(req, middleware.CodeUnavailable, err.Error())
}

// discover returns the channel's endpoints. The first call reads the registry
// and starts a watch that keeps the cache current; an empty cache is re-read
// every time so a freshly registered host is found without waiting on the watch.
func (c *Client) discover(ctx context.Context) ([]registry.Endpoint, error) {
	c.epMu.Lock()
	defer c.epMu.Unlock()
	if c.cached && len(c.endpoints) > 0 {
		return c.endpoints, nil
	}

	if c.stopWatch == nil {
		// Watch before reading so no change between the two is lost.
		watchCtx, cancel := context.WithCancel(context.Background())
		c.watchCtx, c.stopWatch = watchCtx, cancel
		go c.watchEndpoints(watchCtx, c.registry.Watch(watchCtx, c.channel))
	}

	endpoints, err := c.registry.Discover(ctx, c.channel)
	if err != nil {
		return nil, err
	}
	c.endpoints, c.cached = endpoints, true
	return endpoints, nil
}

func (c *Client) watchEndpoints(ctx context.Context, updates <-chan []registry.Endpoint) {
	for endpoints := range updates {
		c.epMu.Lock()
		if c.watchCtx == ctx {
			c.endpoints, c.cached = endpoints, true
		}
		c.epMu.Unlock()
		c.logger.Debug("endpoints updated", zap.String("channel", c.channel), zap.Int("count", len(endpoints)))
	}

	// The watch ended on its own (e.g. the etcd stream broke): drop the cache
	// so the next call reads the registry and watches again.
	c.epMu.Lock()
	defer c.epMu.Unlock()
	if c.watchCtx == ctx {
		c.stopWatch()
		c.watchCtx, c.stopWatch = nil, nil
		c.endpoints, c.cached = nil, false
	}
}

func (c *Client) stopWatching() {
	c.epMu.Lock()
	defer c.epMu.Unlock()
	if c.stopWatch != nil {
		c.stopWatch()
	}
	c.watchCtx, c.stopWatch = nil, nil
	c.endpoints, c.cached = nil, false
}

// getTransport borrows a connection to addr, dialing one if the slot is empty
// or its previous connection died.
func (c *Client) getTransport(ctx context.Context, addr string) (*transport.ClientTransport, error) {
	c.mu.Lock()
	pool, ok := c.transports[addr]
	if !ok {
		pool = make(chan *transport.ClientTransport, c.poolSize)
		for i := 0; i < c.poolSize; i++ {
			pool <- nil
		}
		c.transports[addr] = pool
	}
	c.mu.Unlock()

	var t *transport.ClientTransport
	select {
	case t = <-pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if t != nil && !t.Closed() {
		return t, nil
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		pool <- nil
		return nil, err
	}
	c.logger.Debug("dialed endpoint", zap.String("addr", addr))
	return transport.NewClientTransport(conn, c.codecType, c.heartbeat, c.logger), nil
}

func (c *Client) putTransport(addr string, t *transport.ClientTransport) {
	c.mu.Lock()
	pool := c.transports[addr]
	c.mu.Unlock()
	pool <- t
}

// Close stops the endpoint watch and closes every idle pooled connection.
// Borrowed connections are left to their callers.
func (c *Client) Close() error {
	c.stopWatching()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pool := range c.transports {
		drained := 0
	drain:
		for {
			select {
			case t := <-pool:
				if t != nil {
					t.Close()
				}
				drained++
			default:
				break drain
			}
		}
		for i := 0; i < drained; i++ {
			pool <- nil
		}
	}
	return nil
}
