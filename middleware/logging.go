package middleware

import (
	"context"
	"time"

	"method-bridge/message"

	"go.uber.org/zap"
)

// Logging records method, duration and outcome of every call.
func Logging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			start := time.Now()
			reply := next(ctx, req)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.Duration("duration", time.Since(start)),
			}
			if id, ok := CallIDFrom(ctx); ok {
				fields = append(fields, zap.String("call_id", id))
			}

			switch {
			case reply == nil:
				logger.Info("call dropped without reply", fields...)
			case reply.Failed():
				fields = append(fields, zap.String("code", reply.Code), zap.String("error", reply.Error))
				logger.Warn("call failed", fields...)
			default:
				fields = append(fields, zap.Stringer("status", reply.Status))
				logger.Debug("call served", fields...)
			}
			return reply
		}
	}
}
