package middleware

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"method-bridge/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// echoHandler answers every call with "72".
func echoHandler(ctx context.Context, req *message.Envelope) *message.Envelope {
	return &message.Envelope{Method: req.Method, Payload: []byte("72")}
}

// slowHandler sleeps 200ms before answering.
func slowHandler(ctx context.Context, req *message.Envelope) *message.Envelope {
	time.Sleep(200 * time.Millisecond)
	return echoHandler(ctx, req)
}

func silentHandler(ctx context.Context, req *message.Envelope) *message.Envelope {
	return nil
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := Chain(CallID(), Logging(zap.New(core)))(echoHandler)

	reply := handler(context.Background(), &message.Envelope{Method: "getInteger"})
	require.NotNil(t, reply)
	assert.Equal(t, "72", string(reply.Payload))

	entries := logs.FilterMessage("call served").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "getInteger", fields["method"])
	assert.NotEmpty(t, fields["call_id"])
}

func TestLoggingNoReply(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := Logging(zap.New(core))(silentHandler)

	assert.Nil(t, handler(context.Background(), &message.Envelope{Method: "unknown"}))
	assert.Equal(t, 1, logs.FilterMessage("call dropped without reply").Len())
}

func TestCallIDPreserved(t *testing.T) {
	var seen string
	inner := func(ctx context.Context, req *message.Envelope) *message.Envelope {
		seen, _ = CallIDFrom(ctx)
		return echoHandler(ctx, req)
	}
	handler := Chain(CallID(), CallID())(inner)
	handler(context.Background(), &message.Envelope{Method: "max"})
	assert.Len(t, seen, 36)
}

func TestTimeoutPass(t *testing.T) {
	handler := Timeout(500 * time.Millisecond)(echoHandler)

	reply := handler(context.Background(), &message.Envelope{Method: "getInteger"})
	assert.False(t, reply.Failed())
}

func TestTimeoutExceeded(t *testing.T) {
	handler := Timeout(50 * time.Millisecond)(slowHandler)

	reply := handler(context.Background(), &message.Envelope{Method: "getInteger"})
	require.True(t, reply.Failed())
	assert.Equal(t, CodeTimeout, reply.Code)
	assert.Equal(t, "request timed out", reply.Error)
}

func TestRateLimit(t *testing.T) {
	// rate=1/s, burst=2: the first two pass, the third is rejected
	handler := RateLimit(1, 2)(echoHandler)
	req := &message.Envelope{Method: "max"}

	for i := 0; i < 2; i++ {
		reply := handler(context.Background(), req)
		require.False(t, reply.Failed(), "request %d should pass, got %s", i, reply.Error)
	}

	reply := handler(context.Background(), req)
	assert.Equal(t, CodeRateLimited, reply.Code)
}

func TestRecover(t *testing.T) {
	panicking := func(ctx context.Context, req *message.Envelope) *message.Envelope {
		panic("boom")
	}
	handler := Recover(nil)(panicking)

	reply := handler(context.Background(), &message.Envelope{Method: "max"})
	require.NotNil(t, reply)
	assert.Equal(t, CodeInternal, reply.Code)
	assert.Contains(t, reply.Error, "boom")
}

func TestRetryTransient(t *testing.T) {
	var calls atomic.Int32
	flaky := func(ctx context.Context, req *message.Envelope) *message.Envelope {
		if calls.Add(1) < 3 {
			return ErrorReply(req, CodeUnavailable, "connection refused")
		}
		return echoHandler(ctx, req)
	}
	handler := Retry(3, time.Millisecond, nil)(flaky)

	reply := handler(context.Background(), &message.Envelope{Method: "getInteger"})
	assert.False(t, reply.Failed())
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrySkipsHostErrors(t *testing.T) {
	var calls atomic.Int32
	failing := func(ctx context.Context, req *message.Envelope) *message.Envelope {
		calls.Add(1)
		return ErrorReply(req, "missing_argument", "argument payload is required")
	}
	handler := Retry(3, time.Millisecond, nil)(failing)

	reply := handler(context.Background(), &message.Envelope{Method: "max"})
	assert.Equal(t, "missing_argument", reply.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *message.Envelope) *message.Envelope {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	handler := Chain(mark("a"), mark("b"), Timeout(500*time.Millisecond))(echoHandler)
	reply := handler(context.Background(), &message.Envelope{Method: "getInteger"})

	require.NotNil(t, reply)
	assert.False(t, reply.Failed())
	assert.Equal(t, []string{"a", "b"}, order)
}
