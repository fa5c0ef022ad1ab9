package middleware

import (
	"context"

	"method-bridge/message"

	"golang.org/x/time/rate"
)

// RateLimit rejects calls beyond r per second (token bucket with the given burst).
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			if !limiter.Allow() {
				return ErrorReply(req, CodeRateLimited, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
