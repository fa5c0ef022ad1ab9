package middleware

import (
	"context"
	"fmt"

	"method-bridge/message"

	"go.uber.org/zap"
)

// Recover turns a panic in next into an internal error reply.
func Recover(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) (reply *message.Envelope) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panicked", zap.String("method", req.Method), zap.Any("panic", r), zap.Stack("stack"))
					reply = ErrorReply(req, CodeInternal, fmt.Sprintf("panic: %v", r))
				}
			}()
			return next(ctx, req)
		}
	}
}
