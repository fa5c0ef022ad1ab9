// Package middleware wraps envelope handlers in the onion model:
//
//	Chain(A, B, C)(h) → A(B(C(h)))
//	A.before → B.before → C.before → h → C.after → B.after → A.after
//
// The same HandlerFunc shape is used by the host (around the dispatcher) and
// by the client (around the transport round trip). A nil reply means the
// handler chose not to answer.
package middleware

import (
	"context"

	"method-bridge/message"
)

type HandlerFunc func(ctx context.Context, req *message.Envelope) *message.Envelope

type Middleware func(next HandlerFunc) HandlerFunc

// Error codes produced by middleware and transports.
const (
	CodeTimeout     = "timeout"
	CodeRateLimited = "rate_limited"
	CodeInternal    = "internal"
	CodeUnavailable = "unavailable"
)

// Chain folds the middlewares into one, first argument outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// ErrorReply builds an error envelope answering req.
func ErrorReply(req *message.Envelope, code, msg string) *message.Envelope {
	return &message.Envelope{
		Method: req.Method,
		Status: message.StatusError,
		Code:   code,
		Error:  msg,
	}
}
