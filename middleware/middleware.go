// Package middleware wraps inbound RPC command dispatch in an onion of
// Middleware around a HandlerFunc, composed with Chain.
//
// Middleware sees the raw command name and payload bytes exactly as they
// arrived off the wire, before the command's own decoder runs; decoding
// into a concrete Go type happens inside the innermost handler, after the
// middleware chain has had a chance to reject or rewrite the request.
package middleware

import "context"

// Request is the raw inbound RPC command as it arrived off the wire.
type Request struct {
	Cmd     string
	Payload []byte
}

// Response is what gets encoded and sent back for a request, or nil for
// commands with no response expected (the notify case).
type Response struct {
	Payload []byte
	Err     string
}

// HandlerFunc dispatches one inbound request.
type HandlerFunc func(ctx context.Context, req *Request) *Response

// Middleware wraps a HandlerFunc with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into a single Middleware, applied in the
// order given: Chain(A, B)(handler) == A(B(handler)), so A's before-code
// runs first and its after-code runs last — an onion.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
