package middleware

import (
	"context"

	"method-bridge/message"

	"github.com/google/uuid"
)

type callIDKey struct{}

// CallID tags the context with a random id so log lines of one call can be joined.
func CallID() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			if _, ok := CallIDFrom(ctx); !ok {
				ctx = context.WithValue(ctx, callIDKey{}, uuid.NewString())
			}
			return next(ctx, req)
		}
	}
}

// CallIDFrom returns the id set by CallID.
func CallIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callIDKey{}).(string)
	return id, ok
}
