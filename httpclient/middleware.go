package httpclient

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
)

// Middleware transforms the options of an outgoing call before it is sent.
// It receives the final URL and the current options and returns the
// complete options to use instead; nothing is merged. Returning an error
// aborts the call before any I/O.
//
// Common use cases:
//   - Adding authentication headers
//   - Injecting trace or correlation headers
//   - Tightening timeouts for specific endpoints
type Middleware func(ctx context.Context, url string, opts CallOptions) (CallOptions, error)

// MiddlewareChain runs middleware strictly in registration order.
type MiddlewareChain struct {
	middleware []Middleware
}

// NewMiddlewareChain creates a chain holding m in order.
func NewMiddlewareChain(m ...Middleware) *MiddlewareChain {
	return &MiddlewareChain{middleware: append([]Middleware(nil), m...)}
}

// Add appends m to the chain.
func (c *MiddlewareChain) Add(m Middleware) {
	c.middleware = append(c.middleware, m)
}

// Len returns the number of registered middleware.
func (c *MiddlewareChain) Len() int { return len(c.middleware) }

// Apply runs every middleware over opts. Each one gets its own copy of the
// options produced by its predecessor. The first failure stops the chain
// and is returned as *MiddlewareError.
func (c *MiddlewareChain) Apply(ctx context.Context, url string, opts CallOptions) (CallOptions, error) {
	for i, m := range c.middleware {
		next, err := m(ctx, url, opts.Clone())
		if err != nil {
			return opts, &MiddlewareError{Index: i, Err: err}
		}
		opts = next
	}
	return opts, nil
}

// TracingMiddleware injects the trace context and baggage found in ctx into
// the call's header lines using p. Injected headers replace existing lines
// of the same name. Without an active span or baggage nothing changes.
//
// New registers TracingMiddleware first on every client.
func TracingMiddleware(p propagation.TextMapPropagator) Middleware {
	return func(ctx context.Context, _ string, opts CallOptions) (CallOptions, error) {
		carrier := propagation.MapCarrier{}
		p.Inject(ctx, carrier)
		if len(carrier) == 0 {
			return opts, nil
		}

		keys := carrier.Keys()
		sort.Strings(keys)
		for _, k := range keys {
			opts = opts.WithHeader(k, carrier.Get(k))
		}
		return opts, nil
	}
}

// HeaderMiddleware sets a fixed header on every call.
func HeaderMiddleware(name, value string) Middleware {
	return func(_ context.Context, _ string, opts CallOptions) (CallOptions, error) {
		return opts.WithHeader(name, value), nil
	}
}

// BearerTokenMiddleware sets "Authorization: Bearer <token>" from tokenFunc,
// which is called once per call (useful for refreshable tokens).
func BearerTokenMiddleware(tokenFunc func() (string, error)) Middleware {
	return func(_ context.Context, _ string, opts CallOptions) (CallOptions, error) {
		token, err := tokenFunc()
		if err != nil {
			return opts, err
		}
		return opts.WithHeader("Authorization", "Bearer "+token), nil
	}
}

// RequestIDMiddleware sets header to a new random UUID on every call unless
// the caller already provided one.
func RequestIDMiddleware(header string) Middleware {
	return func(_ context.Context, _ string, opts CallOptions) (CallOptions, error) {
		if _, ok := opts.Header(header); ok {
			return opts, nil
		}
		return opts.WithHeader(header, uuid.NewString()), nil
	}
}

// UserAgentMiddleware sets the User-Agent header.
func UserAgentMiddleware(userAgent string) Middleware {
	return HeaderMiddleware("User-Agent", userAgent)
}
