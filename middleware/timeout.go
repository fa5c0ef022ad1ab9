package middleware

import (
	"context"
	"time"

	"method-bridge/message"
)

// Timeout answers with a timeout error when next has not returned within d.
// The inner handler keeps running; its late reply is discarded.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			done := make(chan *message.Envelope, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case reply := <-done:
				return reply
			case <-ctx.Done():
				return ErrorReply(req, CodeTimeout, "request timed out")
			}
		}
	}
}
