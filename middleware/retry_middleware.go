package middleware

import (
	"context"
	"log"
	"strings"
	"time"
)

// RetryMiddleware retries a handler's own work when it fails with a
// retryable-looking error — distinct from the RPC call builder's
// seq-preserving retry (rpc.CallBuilder.Retry), which retries the network
// round trip. This retries whatever the handler itself does (e.g. a
// downstream lookup) before it ever produces a response frame.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			resp := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if resp == nil || resp.Err == "" {
					return resp
				}
				if !isRetryable(resp.Err) {
					return resp
				}
				log.Printf("rpc: retry %d for cmd=%s after error: %s", i+1, req.Cmd, resp.Err)
				time.Sleep(baseDelay * time.Duration(1<<i))
				resp = next(ctx, req)
			}
			return resp
		}
	}
}

func isRetryable(errMsg string) bool {
	return strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "unavailable")
}
