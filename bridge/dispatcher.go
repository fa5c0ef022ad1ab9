package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"method-bridge/benchmark"

	"go.uber.org/zap"
)

// UnknownMethodPolicy decides what happens to a call whose name is not recognised.
type UnknownMethodPolicy int

const (
	// PolicyNotImplemented answers with ResultSink.NotImplemented.
	PolicyNotImplemented UnknownMethodPolicy = iota
	// PolicyIgnore writes nothing to the sink, leaving the caller without a reply.
	PolicyIgnore
)

// ParseUnknownMethodPolicy accepts "not_implemented" (or "") and "ignore".
func ParseUnknownMethodPolicy(s string) (UnknownMethodPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "not_implemented":
		return PolicyNotImplemented, nil
	case "ignore":
		return PolicyIgnore, nil
	}
	return 0, fmt.Errorf("bridge: unknown method policy %q", s)
}

func (p UnknownMethodPolicy) String() string {
	if p == PolicyIgnore {
		return "ignore"
	}
	return "not_implemented"
}

// DefaultMaxResultLen matches the largest frame body the channel carries.
const DefaultMaxResultLen = 16 << 20

// Dispatcher routes calls to the benchmark operation set. It holds no
// per-call state and may be shared between goroutines.
type Dispatcher struct {
	policy       UnknownMethodPolicy
	maxResultLen int
	logger       *zap.Logger
}

type Option func(*Dispatcher)

func WithUnknownMethodPolicy(p UnknownMethodPolicy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithMaxResultLen caps the size in bytes of a generated string result.
// Calls asking for more fail with ResultTooLarge before anything is allocated.
func WithMaxResultLen(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxResultLen = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{maxResultLen: DefaultMaxResultLen, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Policy reports the configured unknown-method policy.
func (d *Dispatcher) Policy() UnknownMethodPolicy {
	return d.policy
}

// Handle serves one call and writes its outcome to sink. The returned error is
// the failure already reported to the sink, or a sink write error; callers
// only need it for logging.
func (d *Dispatcher) Handle(ctx context.Context, call Call, sink ResultSink) error {
	m, err := ParseMethod(call.Method)
	if err != nil {
		if d.policy == PolicyIgnore {
			d.logger.Debug("ignoring unrecognised method", zap.String("method", call.Method))
			return err
		}
		if werr := sink.NotImplemented(); werr != nil {
			return werr
		}
		return err
	}

	result, err := d.invoke(m, call.Arguments)
	if err != nil {
		var ce *CallError
		if errors.As(err, &ce) {
			if werr := sink.Error(ce.Kind.Code(), ce.Error(), nil); werr != nil {
				return werr
			}
			return err
		}
		if werr := sink.Error("internal", err.Error(), nil); werr != nil {
			return werr
		}
		return err
	}
	return sink.Success(result)
}

func (d *Dispatcher) invoke(m Method, raw []byte) (any, error) {
	switch m {
	case MethodGetInteger:
		return benchmark.GetInteger(), nil
	case MethodGetStringOfLength:
		n, err := decodeArgs[int32](m, raw)
		if err != nil {
			return nil, err
		}
		if int(n) > d.maxResultLen {
			return nil, resultTooLarge(m, int(n), d.maxResultLen)
		}
		return benchmark.GetStringOfLength(n), nil
	case MethodToUpperCase:
		text, err := decodeArgs[string](m, raw)
		if err != nil {
			return nil, err
		}
		return benchmark.ToUpperCase(text), nil
	case MethodMax:
		v, err := decodeMaxArgs(raw)
		if err != nil {
			return nil, err
		}
		return benchmark.Max(v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7]), nil
	}
	return nil, fmt.Errorf("bridge: no handler for %s", m)
}
