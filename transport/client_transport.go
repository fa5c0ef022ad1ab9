// Package transport implements the caller side of a method-channel connection.
//
// ClientTransport multiplexes concurrent calls over one TCP connection. Each
// call gets a sequence number; a single recvLoop goroutine reads replies and
// routes each to the waiting caller through its pending channel.
//
//	goroutine-1 ──Send(seq=1)──┐
//	goroutine-2 ──Send(seq=2)──┼──→ single TCP conn ──→ host
//	goroutine-3 ──Send(seq=3)──┘
//
//	recvLoop:  ←── reply(seq=2) → pending[2] ← reply → goroutine-2 wakes up
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"method-bridge/codec"
	"method-bridge/message"
	"method-bridge/protocol"

	"go.uber.org/zap"
)

// ErrClosed is returned for calls on a transport whose connection is gone.
var ErrClosed = errors.New("transport closed")

// DefaultHeartbeatInterval is how often an idle connection is probed.
const DefaultHeartbeatInterval = 30 * time.Second

// ClientTransport manages one multiplexed connection.
type ClientTransport struct {
	conn    net.Conn
	codec   codec.Codec
	logger  *zap.Logger
	seq     uint32     // guarded by sending
	sending sync.Mutex // serializes frame writes so header and body of two calls never interleave
	pending sync.Map   // map[uint32]chan *message.Envelope
	closed  atomic.Bool
	once    sync.Once
	done    chan struct{}
}

// NewClientTransport wraps conn and starts the receive and heartbeat loops.
func NewClientTransport(conn net.Conn, codecType codec.CodecType, heartbeat time.Duration, logger *zap.Logger) *ClientTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	t := &ClientTransport{
		conn:   conn,
		codec:  codec.GetCodec(codecType),
		logger: logger.With(zap.String("remote", conn.RemoteAddr().String())),
		done:   make(chan struct{}),
	}
	go t.recvLoop()
	go t.heartbeatLoop(heartbeat)
	return t
}

// Send writes req and returns the channel its reply will arrive on.
// The channel is registered before the frame is written so a fast reply cannot be lost.
func (t *ClientTransport) Send(req *message.Envelope) (uint32, <-chan *message.Envelope, error) {
	if t.closed.Load() {
		return 0, nil, ErrClosed
	}
	body, err := t.codec.Encode(req)
	if err != nil {
		return 0, nil, fmt.Errorf("transport: encode %s: %w", req.Method, err)
	}

	t.sending.Lock()
	defer t.sending.Unlock()

	t.seq++
	seq := t.seq
	header := protocol.Header{
		CodecType: byte(t.codec.Type()),
		MsgType:   protocol.MsgTypeRequest,
		Seq:       seq,
		BodyLen:   uint32(len(body)),
	}

	respChan := make(chan *message.Envelope, 1)
	t.pending.Store(seq, respChan)

	if t.closed.Load() {
		// shutdown may have drained pending before the Store above
		t.pending.Delete(seq)
		return 0, nil, ErrClosed
	}

	if err := protocol.Encode(t.conn, &header, body); err != nil {
		t.pending.Delete(seq)
		return 0, nil, fmt.Errorf("transport: write: %w", err)
	}
	return seq, respChan, nil
}

// Call sends req and waits for its reply or for ctx to end.
func (t *ClientTransport) Call(ctx context.Context, req *message.Envelope) (*message.Envelope, error) {
	seq, ch, err := t.Send(req)
	if err != nil {
		return nil, err
	}
	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		return reply, nil
	case <-ctx.Done():
		t.pending.Delete(seq)
		return nil, ctx.Err()
	}
}

// recvLoop is the only reader of the connection; frame boundaries can only be
// parsed sequentially.
func (t *ClientTransport) recvLoop() {
	defer t.shutdown()
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			if !t.closed.Load() {
				t.logger.Debug("connection read failed", zap.Error(err))
			}
			return
		}
		if header.MsgType != protocol.MsgTypeResponse {
			continue
		}

		reply := &message.Envelope{}
		if err := codec.GetCodec(codec.CodecType(header.CodecType)).Decode(body, reply); err != nil {
			t.logger.Warn("dropping undecodable reply", zap.Uint32("seq", header.Seq), zap.Error(err))
			continue
		}

		if ch, ok := t.pending.LoadAndDelete(header.Seq); ok {
			ch.(chan *message.Envelope) <- reply
		}
	}
}

// shutdown marks the transport dead and releases every waiting caller.
func (t *ClientTransport) shutdown() {
	t.once.Do(func() {
		t.closed.Store(true)
		close(t.done)
		t.conn.Close()
		t.pending.Range(func(key, _ any) bool {
			if ch, ok := t.pending.LoadAndDelete(key); ok {
				close(ch.(chan *message.Envelope))
			}
			return true
		})
	})
}

// Close tears down the connection. Pending calls fail with ErrClosed.
func (t *ClientTransport) Close() error {
	t.shutdown()
	return nil
}

// Closed reports whether the connection has been torn down.
func (t *ClientTransport) Closed() bool {
	return t.closed.Load()
}

// Conn returns the underlying connection.
func (t *ClientTransport) Conn() net.Conn {
	return t.conn
}

// heartbeatLoop sends an empty heartbeat frame every interval so idle
// connections are noticed when they break.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}
		header := &protocol.Header{
			CodecType: byte(t.codec.Type()),
			MsgType:   protocol.MsgTypeHeartbeat,
		}
		t.sending.Lock()
		err := protocol.Encode(t.conn, header, nil)
		t.sending.Unlock()
		if err != nil {
			return
		}
	}
}
