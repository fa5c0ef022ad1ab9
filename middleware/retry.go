package middleware

import (
	"context"
	"time"

	"method-bridge/message"

	"go.uber.org/zap"
)

// Retry re-sends calls that failed with a transient code (timeout, unavailable),
// backing off baseDelay·2^attempt between tries. Errors produced by the host
// dispatcher are returned at once.
func Retry(maxRetries int, baseDelay time.Duration, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			reply := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if reply == nil || !retryable(reply) {
					return reply
				}
				logger.Info("retrying call",
					zap.Int("attempt", i+1),
					zap.String("method", req.Method),
					zap.String("code", reply.Code),
					zap.String("error", reply.Error))

				select {
				case <-time.After(baseDelay * time.Duration(1<<i)):
				case <-ctx.Done():
					return reply
				}
				reply = next(ctx, req)
			}
			return reply
		}
	}
}

func retryable(reply *message.Envelope) bool {
	return reply.Failed() && (reply.Code == CodeTimeout || reply.Code == CodeUnavailable)
}
