package middleware

import (
	"context"
	"log"
	"time"
)

// LoggingMiddleware logs the command name, duration, and any handler error
// for every request that passes through.
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			start := time.Now()
			resp := next(ctx, req)
			log.Printf("rpc: cmd=%s duration=%s", req.Cmd, time.Since(start))
			if resp != nil && resp.Err != "" {
				log.Printf("rpc: cmd=%s error=%s", req.Cmd, resp.Err)
			}
			return resp
		}
	}
}
