// Package server hosts a method channel over TCP.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each call: go handleRequest (parallel processing)
//	    → Codec.Decode → Middleware Chain → businessHandler (bridge.Dispatcher) → Codec.Encode → write reply
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"method-bridge/benchmark"
	"method-bridge/bridge"
	"method-bridge/codec"
	"method-bridge/message"
	"method-bridge/middleware"
	"method-bridge/protocol"
	"method-bridge/registry"

	"go.uber.org/zap"
)

const codeMalformedEnvelope = "malformed_envelope"

// Server hosts one channel backed by a bridge.Dispatcher.
type Server struct {
	dispatcher  *bridge.Dispatcher
	channel     string
	logger      *zap.Logger
	registryTTL int64
	weight      int

	listener    net.Listener
	ready       chan struct{} // closed once listener is set or listening failed
	wg          sync.WaitGroup
	shutdown    atomic.Bool
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	registry      registry.Registry
	advertiseAddr string // address announced to the registry; must be routable, unlike ":8080"

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

type Option func(*Server)

// WithChannel overrides the channel name announced to the registry.
func WithChannel(name string) Option {
	return func(s *Server) { s.channel = name }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistration sets the lease TTL (seconds) and weight used when registering.
func WithRegistration(ttl int64, weight int) Option {
	return func(s *Server) {
		s.registryTTL = ttl
		s.weight = weight
	}
}

// NewServer creates a server that answers calls with d.
func NewServer(d *bridge.Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher:  d,
		channel:     benchmark.ChannelName,
		logger:      zap.NewNop(),
		registryTTL: 10,
		weight:      1,
		ready:       make(chan struct{}),
		conns:       make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Use registers a middleware. Middlewares run in the order they are added.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Addr blocks until Serve is listening and returns the bound address.
// It returns nil if Serve could not listen.
func (svr *Server) Addr() net.Addr {
	<-svr.ready
	if svr.listener == nil {
		return nil
	}
	return svr.listener.Addr()
}

// Serve listens on address, optionally announces the channel to reg under
// advertiseAddr, and accepts connections until Shutdown.
func (svr *Server) Serve(network, address string, advertiseAddr string, reg registry.Registry) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		close(svr.ready)
		return fmt.Errorf("server: listen %s: %w", address, err)
	}
	svr.listener = listener

	// Built once at startup, not per request.
	svr.handler = middleware.Chain(svr.middlewares...)(svr.businessHandler)
	svr.advertiseAddr = advertiseAddr
	if advertiseAddr == "" {
		svr.advertiseAddr = listener.Addr().String()
	}
	svr.registry = reg
	close(svr.ready)

	if reg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := reg.Register(ctx, svr.channel, registry.Endpoint{Addr: svr.advertiseAddr, Weight: svr.weight}, svr.registryTTL)
		cancel()
		if err != nil {
			listener.Close()
			return fmt.Errorf("server: register channel: %w", err)
		}
	}

	svr.logger.Info("serving method channel",
		zap.String("channel", svr.channel),
		zap.String("addr", listener.Addr().String()),
		zap.Stringer("unknown_method_policy", svr.dispatcher.Policy()))

	for {
		conn, err := listener.Accept()
		if err != nil {
			// Shutdown closes the listener; that Accept error is expected.
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		svr.trackConn(conn, true)
		go svr.handleConn(conn)
	}
}

// handleConn reads frames sequentially and handles each call on its own
// goroutine. writeMu is shared by those goroutines so replies never interleave.
func (svr *Server) handleConn(conn net.Conn) {
	defer func() {
		svr.trackConn(conn, false)
		conn.Close()
	}()
	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			if !svr.shutdown.Load() && !errors.Is(err, net.ErrClosed) {
				svr.logger.Debug("connection closed", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			}
			return
		}

		if header.MsgType != protocol.MsgTypeRequest {
			continue // heartbeats only keep the connection alive
		}

		svr.wg.Add(1)
		go svr.handleRequest(header, body, conn, writeMu)
	}
}

// handleRequest decodes one call, runs it through the middleware chain and
// writes the reply, if any.
func (svr *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer svr.wg.Done()

	c := codec.GetCodec(codec.CodecType(header.CodecType))
	req := &message.Envelope{}

	var reply *message.Envelope
	if err := c.Decode(body, req); err != nil {
		svr.logger.Warn("malformed call envelope", zap.Uint32("seq", header.Seq), zap.Error(err))
		reply = middleware.ErrorReply(req, codeMalformedEnvelope, err.Error())
	} else {
		reply = svr.handler(context.Background(), req)
	}
	if reply == nil {
		return
	}

	result, err := c.Encode(reply)
	if err == nil && uint32(len(result)) > protocol.MaxBodyLen {
		// A recognised call still gets exactly one reply, even when its result cannot travel.
		svr.logger.Warn("reply exceeds frame limit",
			zap.String("method", req.Method), zap.Int("size", len(result)), zap.Uint32("limit", protocol.MaxBodyLen))
		reply = middleware.ErrorReply(req, bridge.CodeResultTooLarge,
			fmt.Sprintf("reply of %d bytes exceeds frame limit of %d", len(result), protocol.MaxBodyLen))
		result, err = c.Encode(reply)
	}
	if err != nil {
		svr.logger.Error("failed to encode reply", zap.String("method", req.Method), zap.Error(err))
		return
	}

	replyHeader := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeResponse,
		Seq:       header.Seq, // the caller matches the reply by seq
		BodyLen:   uint32(len(result)),
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := protocol.Encode(conn, &replyHeader, result); err != nil {
		svr.logger.Warn("failed to write reply", zap.String("method", req.Method), zap.Error(err))
	}
}

// businessHandler feeds the call to the dispatcher and converts the recorded
// outcome into a reply envelope. No outcome means no reply.
func (svr *Server) businessHandler(ctx context.Context, req *message.Envelope) *message.Envelope {
	rec := bridge.NewRecorder()
	if err := svr.dispatcher.Handle(ctx, bridge.Call{Method: req.Method, Arguments: req.Payload}, rec); err != nil {
		svr.logger.Debug("call not served", zap.String("method", req.Method), zap.Error(err))
	}

	out, ok := rec.Outcome()
	if !ok {
		return nil
	}

	switch out.Status {
	case bridge.StatusSuccess:
		payload, err := json.Marshal(out.Result)
		if err != nil {
			return middleware.ErrorReply(req, middleware.CodeInternal, fmt.Sprintf("marshal result: %v", err))
		}
		return &message.Envelope{Method: req.Method, Status: message.StatusSuccess, Payload: payload}
	case bridge.StatusNotImplemented:
		return &message.Envelope{Method: req.Method, Status: message.StatusNotImplemented}
	default:
		reply := middleware.ErrorReply(req, out.Code, out.Message)
		if out.Details != nil {
			reply.Payload, _ = json.Marshal(out.Details)
		}
		return reply
	}
}

func (svr *Server) trackConn(conn net.Conn, add bool) {
	svr.connMu.Lock()
	defer svr.connMu.Unlock()
	if add {
		svr.conns[conn] = struct{}{}
	} else {
		delete(svr.conns, conn)
	}
}

// Shutdown stops the server gracefully:
//  1. deregister from the registry so callers stop picking this host
//  2. close the listener
//  3. wait for in-flight calls, up to timeout
//  4. close the remaining connections
func (svr *Server) Shutdown(timeout time.Duration) error {
	listening := false
	select {
	case <-svr.ready:
		listening = svr.listener != nil
	default:
	}

	if listening && svr.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := svr.registry.Deregister(ctx, svr.channel, svr.advertiseAddr); err != nil {
			svr.logger.Warn("deregister failed", zap.Error(err))
		}
		cancel()
	}

	// The flag must be set before the listener closes so Serve reads the Accept error as intentional.
	svr.shutdown.Store(true)
	if listening {
		svr.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("timeout waiting for ongoing requests to finish")
	}

	svr.connMu.Lock()
	for conn := range svr.conns {
		conn.Close()
	}
	svr.connMu.Unlock()
	return err
}
