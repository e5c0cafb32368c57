// Package httpclient provides a client for calling REST backends with
// per-call connection control, address pinning and OpenTelemetry
// instrumentation.
//
// # Features
//
//   - Request assembly from a base URL, path, query map and payload
//   - Pluggable codecs (JSON by default, raw passthrough)
//   - Middleware that may rewrite or refuse each call
//   - Round-robin pinning of the base host to a pool of backend addresses
//   - Single-shot or reusable connection handles per destination
//   - Strict or lenient status policies with typed status errors
//   - Curl-numbered transport error codes
//   - Per-call transfer diagnostics (timings, sizes, peer address)
//   - OpenTelemetry tracing and metrics
//
// # Quick Start
//
//	client, err := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithServiceName("orders-api"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	resp, err := client.Get(ctx, "/items", map[string]any{"limit": 5})
//	if err != nil {
//	    return err
//	}
//	items := resp.ParsedBody.([]any)
//
// # Errors
//
// Every failure is one of a small set of kinds, testable with errors.Is:
//
//	switch {
//	case errors.Is(err, httpclient.ErrInvalidRequest): // bad URL, method or payload
//	case errors.Is(err, httpclient.ErrMiddleware):     // a middleware refused the call
//	case errors.Is(err, httpclient.ErrTransport):      // no HTTP response
//	case errors.Is(err, httpclient.ErrNotFound):       // 404 under the strict policy
//	case errors.Is(err, httpclient.ErrHTTPStatus):     // any other rejected status
//	case errors.Is(err, httpclient.ErrDecode):         // body rejected by the codec
//	}
//
// *TransportError carries a curl-compatible code (6 for DNS, 7 for connect,
// 28 for timeout, 47 for too many redirects, ...). Calls refused locally use
// negative codes: CodeCircuitOpen, CodeRateLimited, CodeExecutorClosed.
// *StatusError carries the status, body and headers of the rejected
// response.
//
// # Address Pinning
//
// With a pool of addresses the base host is resolved to one of them per
// call, in round-robin order. TLS still verifies the certificate against
// the host name:
//
//	client, err := httpclient.New(
//	    httpclient.WithBaseURL("https://api.internal"),
//	    httpclient.WithAddresses("10.0.0.1", "10.0.0.2"),
//	    httpclient.WithMultiHandle(),
//	)
//	defer client.Close()
//
// WithMultiHandle keeps one connection pool per pinned address so
// keep-alive connections are reused across calls. Without it every call
// opens and closes its own connection.
//
// # Resilience
//
// The client sends every call exactly once. Circuit breaking and rate
// limiting are Executor decorators, and retries wrap the call on the
// caller side:
//
//	exec := httpclient.NewRateLimitedExecutor(
//	    httpclient.NewBreakerExecutor(httpclient.NewMultiHandleExecutor(), "orders-api",
//	        httpclient.DefaultBreakerConfig()),
//	    httpclient.DefaultRateLimitConfig(),
//	)
//	client, _ := httpclient.New(httpclient.WithBaseURL(base), httpclient.WithExecutor(exec))
//
//	resp, err := httpclient.Retry(ctx, httpclient.DefaultRetryConfig(),
//	    func(ctx context.Context) (*httpclient.ParsedResponse, error) {
//	        return client.Get(ctx, "/items", nil)
//	    })
//
// # Observability
//
// Metrics:
//   - http.client.request.duration (histogram)
//   - http.client.request.body.size, http.client.response.body.size (histogram)
//   - http.client.dns.duration, http.client.connection.duration,
//     http.client.tls.duration, http.client.ttfb (histogram)
//   - http.client.active_requests (up-down counter)
//   - http.client.request.error (counter)
//   - http.client.handles.created (counter), http.client.handles.active
//   - http.client.breaker.state (gauge), http.client.breaker.requests
//
// Traces: one client span per call named "HTTP {method}". The trace
// context is injected into the call headers by the first middleware.
//
// # Debugging
//
// WithDebug logs every call with zerolog at debug level, including an
// equivalent curl command line (see CurlCommand).
package httpclient
