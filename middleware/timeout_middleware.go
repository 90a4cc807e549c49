package middleware

import (
	"context"
	"time"
)

// TimeoutMiddleware bounds how long a handler is allowed to run before the
// caller gets a synthetic error response.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *Response, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return &Response{Err: "request timed out"}
			}
		}
	}
}
