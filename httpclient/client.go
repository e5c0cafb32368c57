package httpclient

import (
	"context"
	"net/url"
	"time"
)

// Client calls one REST backend. It assembles each request from a path and
// options, runs the middleware chain, hands the call to its Executor, checks
// the status against its StatusPolicy and decodes the body with its Codec.
//
// The response of the last successful call is kept and exposed through the
// accessor methods; a failed call leaves it untouched.
//
// Client is not safe for concurrent use: the address cursor and the last
// response are plain fields. Use one Client per goroutine, or share the
// Executor between clients instead.
//
// Example:
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
//	if errors.Is(err, httpclient.ErrNotFound) {
//	    // ...
//	}
type Client struct {
	// cfg holds all client configuration.
	cfg *internalConfig

	baseURL    string
	selector   *AddressSelector
	middleware *MiddlewareChain
	executor   Executor

	// last is the response of the last successful call.
	last *ParsedResponse
}

// New creates a Client. The configuration is validated once here; an
// invalid base URL or address fails with ErrInvalidConfig.
//
// Example - Pinned backends with connection reuse:
//
//	client, err := httpclient.New(
//	    httpclient.WithBaseURL("https://api.internal"),
//	    httpclient.WithAddresses("10.0.0.1", "10.0.0.2", "10.0.0.3"),
//	    httpclient.WithConnectionTimeout(time.Second),
//	    httpclient.WithOperationTimeout(5*time.Second),
//	    httpclient.WithMultiHandle(),
//	)
//	defer client.Close()
func New(opts ...Option) (*Client, error) {
	cfg := newConfig(opts...)
	if err := cfg.config.Validate(); err != nil {
		return nil, err
	}

	executor := cfg.Executor
	if executor == nil {
		executor = cfg.newExecutor()
	}

	chain := NewMiddlewareChain(TracingMiddleware(cfg.Propagators))
	for _, m := range cfg.Middleware {
		chain.Add(m)
	}

	c := &Client{
		cfg:        cfg,
		baseURL:    cfg.config.BaseURL,
		middleware: chain,
		executor:   executor,
	}
	if len(cfg.config.Addresses) > 0 {
		c.selector = NewAddressSelector(cfg.config.Addresses, cfg.Clock)
	}

	return c, nil
}

// Request performs one call to BaseURL+path.
//
// method must be GET, POST, PUT, PATCH or DELETE (case-sensitive). An
// invalid URL or method fails with ErrInvalidRequest before any address is
// selected or any I/O happens.
//
// Errors:
//   - ErrInvalidRequest: bad URL, method or payload
//   - *MiddlewareError: a middleware refused the call
//   - *TransportError: connect, TLS, timeout or transfer failure, or a
//     call refused by a breaker, rate limiter or closed executor
//   - *StatusError: status rejected by the StatusPolicy
//   - *DecodeError: body rejected by the Codec
func (c *Client) Request(ctx context.Context, path, method string, opts RequestOptions) (*ParsedResponse, error) {
	base, err := validateURL(c.baseURL + path)
	if err != nil {
		return nil, err
	}
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}
	spec, err := newRequestSpec(path, m, opts, c.cfg.Codec)
	if err != nil {
		return nil, err
	}

	target := spec.URL(c.baseURL)
	callOpts := c.callOptions(spec, base)

	u, err := url.Parse(target)
	if err != nil {
		u = base
	}

	start := time.Now()
	ctx, span := c.startSpan(ctx, m, u)
	defer span.End()

	attrs := c.cfg.baseAttributes()
	c.cfg.Metrics.recordActiveRequestStart(ctx, attrs)
	defer c.cfg.Metrics.recordActiveRequestEnd(ctx, attrs)

	if len(callOpts.Body) > 0 {
		c.cfg.Metrics.recordRequestBodySize(ctx, int64(len(callOpts.Body)), attrs)
	}

	raw, err := c.execute(ctx, m, target, callOpts)
	c.finishCall(ctx, span, m, u, start, raw, err)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseResponse(raw, c.cfg.Codec)
	if err != nil {
		setSpanError(span, err, errorType(err))
		return nil, err
	}

	c.last = parsed
	return parsed, nil
}

func (c *Client) execute(ctx context.Context, m Method, target string, opts CallOptions) (*RawResponse, error) {
	start := time.Now()

	opts, err := c.middleware.Apply(ctx, target, opts)
	if err != nil {
		return nil, err
	}

	raw, err := c.executor.Execute(ctx, target, opts)
	if c.cfg.Debug {
		logCall(c.cfg.Logger, target, opts, raw, err, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	if err := checkStatus(c.cfg.config.StatusPolicy, m, target, raw); err != nil {
		return raw, err
	}
	return raw, nil
}

// callOptions assembles the options of one call. Precedence, lowest first:
// defaults, client settings, method-forced options, caller headers.
func (c *Client) callOptions(spec RequestSpec, base *url.URL) CallOptions {
	cc := c.cfg.config

	opts := DefaultCallOptions()
	opts.FollowRedirects = cc.FollowRedirects
	opts.MaxRedirects = cc.MaxRedirects
	opts.Timeout = cc.OperationTimeout
	opts.ConnectTimeout = cc.ConnectTimeout

	opts.Method = spec.Method
	opts.PostStyle = spec.Method == MethodPost
	opts.Body = spec.Payload

	if c.selector != nil {
		if addr, ok := c.selector.Next(); ok {
			opts.Resolve = ResolveOverrides(base.Hostname(), overridePorts(base), addr, c.selector.Candidates())
		}
	}

	if ct := c.cfg.Codec.ContentType(); ct != "" {
		if _, ok := (CallOptions{Headers: spec.Headers}).Header("Content-Type"); !ok {
			opts.Headers = append(opts.Headers, "Content-Type: "+ct)
		}
	}
	opts.Headers = append(opts.Headers, spec.Headers...)

	return opts
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query map[string]any, headers ...string) (*ParsedResponse, error) {
	return c.Request(ctx, path, string(MethodGet), RequestOptions{Query: query, Headers: headers})
}

// Post performs a POST request with payload encoded by the client's codec.
func (c *Client) Post(ctx context.Context, path string, payload any, query map[string]any, headers ...string) (*ParsedResponse, error) {
	return c.Request(ctx, path, string(MethodPost), RequestOptions{Query: query, Headers: headers, Payload: payload})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, payload any, query map[string]any, headers ...string) (*ParsedResponse, error) {
	return c.Request(ctx, path, string(MethodPut), RequestOptions{Query: query, Headers: headers, Payload: payload})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, payload any, query map[string]any, headers ...string) (*ParsedResponse, error) {
	return c.Request(ctx, path, string(MethodPatch), RequestOptions{Query: query, Headers: headers, Payload: payload})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, payload any, query map[string]any, headers ...string) (*ParsedResponse, error) {
	return c.Request(ctx, path, string(MethodDelete), RequestOptions{Query: query, Headers: headers, Payload: payload})
}

// AddMiddleware appends m to the client's middleware chain.
func (c *Client) AddMiddleware(m Middleware) {
	c.middleware.Add(m)
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Executor returns the executor the client sends calls through.
func (c *Client) Executor() Executor { return c.executor }

// Close releases the executor's resources when it holds any, e.g. the
// handles of a MultiHandleExecutor wrapped in a breaker or rate limiter.
func (c *Client) Close() error {
	return closeExecutor(c.executor)
}

// =============================================================================
// Last response accessors
// =============================================================================

// LastResponse returns the response of the last successful call, or nil.
func (c *Client) LastResponse() *ParsedResponse { return c.last }

// RawResponse returns the raw header block and body of the last successful
// call.
func (c *Client) RawResponse() []byte {
	if c.last == nil {
		return nil
	}
	return c.last.Raw
}

// Body returns the undecoded body of the last successful call.
func (c *Client) Body() string {
	if c.last == nil {
		return ""
	}
	return c.last.Body
}

// ParsedBody returns the decoded body of the last successful call.
func (c *Client) ParsedBody() any {
	if c.last == nil {
		return nil
	}
	return c.last.ParsedBody
}

// Headers returns the header lines of the last successful call.
func (c *Client) Headers() []string {
	if c.last == nil {
		return nil
	}
	return c.last.Headers
}

// StatusCode returns the status of the last successful call, or 0.
func (c *Client) StatusCode() int {
	if c.last == nil {
		return 0
	}
	return c.last.StatusCode
}

// TransferInfo returns the diagnostics of the last successful call.
func (c *Client) TransferInfo() *TransferInfo {
	if c.last == nil {
		return nil
	}
	info := c.last.Info
	return &info
}
