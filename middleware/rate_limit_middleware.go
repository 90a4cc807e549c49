package middleware

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware admits inbound commands through a token bucket. This
// is admission control on distinct requests, not write-queue backpressure —
// a throttled request still gets a terminal Err response rather than being
// silently dropped.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			if !limiter.Allow() {
				return &Response{Err: "rate limit exceeded"}
			}
			return next(ctx, req)
		}
	}
}
