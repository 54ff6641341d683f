// CLAUDE:SUMMARY Transport-agnostic endpoint plumbing: Endpoint, Middleware, Chain, request context keys.
// Package kit holds the transport glue shared by the HTTP API and the
// MCP tools: a typed endpoint signature, middleware chaining, and the
// request-scoped context values both transports populate.
package kit

import "context"

// Endpoint is one operation exposed over a transport. Both the HTTP
// handlers and the MCP tool adapters terminate in an Endpoint.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares left to right: the first argument is the
// outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
