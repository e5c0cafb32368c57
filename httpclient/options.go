package httpclient

import (
	"net"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/sentinel-rest/httpclient"
)

// =============================================================================
// Config - Client Configuration
// =============================================================================

// Config holds the per-client settings. Use DefaultConfig() to get a
// properly initialized configuration, then modify specific fields as needed.
//
// Example:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.BaseURL = "https://api.example.com"
//	cfg.Addresses = []string{"10.0.0.1", "10.0.0.2"}
//	cfg.OperationTimeout = 10 * time.Second
//
//	client, err := httpclient.New(
//	    httpclient.WithConfig(cfg),
//	    httpclient.WithServiceName("orders-api"),
//	)
type Config struct {
	// =======================================================================
	// Destination
	// =======================================================================

	// BaseURL is prepended verbatim to every call path. It must be an
	// absolute URL with scheme and host.
	//
	// Example: "https://api.example.com/v1"
	BaseURL string

	// Addresses is an optional pool of literal IPs serving BaseURL's host.
	// When set, each call is pinned to the next address in round-robin
	// order, bypassing DNS. When empty, normal name resolution applies.
	//
	// Example: []string{"10.0.0.1", "10.0.0.2", "fd00::3"}
	Addresses []string

	// =======================================================================
	// Timeouts
	// =======================================================================

	// ConnectTimeout bounds connection establishment of each call. Zero uses
	// the transport's DialTimeout.
	//
	// Default: 0
	ConnectTimeout time.Duration

	// OperationTimeout bounds the whole call: connect, request and reading
	// the full response. Zero disables it.
	//
	// Default: 120s
	OperationTimeout time.Duration

	// =======================================================================
	// Redirects and Status Handling
	// =======================================================================

	// FollowRedirects follows 3xx responses with a Location header.
	//
	// Default: true
	FollowRedirects bool

	// MaxRedirects caps followed redirects per call. Negative is unlimited.
	//
	// Default: 5
	MaxRedirects int

	// StatusPolicy decides which status codes count as success.
	//
	// Default: StatusPolicyStrict
	StatusPolicy StatusPolicy

	// =======================================================================
	// Transport
	// =======================================================================

	// Transport configures the connections opened by the built-in executors.
	// It is ignored when a custom executor is supplied.
	Transport TransportConfig
}

// DefaultConfig returns the configuration New starts from. BaseURL must
// still be set.
func DefaultConfig() Config {
	return Config{
		OperationTimeout: DefaultOperationTimeout,
		FollowRedirects:  true,
		MaxRedirects:     DefaultMaxRedirects,
		StatusPolicy:     StatusPolicyStrict,
		Transport:        DefaultTransportConfig(),
	}
}

// Validate checks that the base URL is absolute and every address is a
// literal IP.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return invalidConfigf("base url %q: %v", c.BaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return invalidConfigf("base url %q must be absolute with scheme and host", c.BaseURL)
	}

	for _, addr := range c.Addresses {
		if net.ParseIP(addr) == nil {
			return invalidConfigf("address %q is not an IP", addr)
		}
	}

	if c.ConnectTimeout < 0 || c.OperationTimeout < 0 {
		return invalidConfigf("timeouts must not be negative")
	}
	if c.StatusPolicy != StatusPolicyStrict && c.StatusPolicy != StatusPolicyLenient {
		return invalidConfigf("unknown status policy %d", int(c.StatusPolicy))
	}

	return nil
}

// =============================================================================
// Internal Configuration
// =============================================================================

// internalConfig holds all configuration including client and OTel settings.
type internalConfig struct {
	config Config

	// === OpenTelemetry Configuration ===

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *metrics

	// Propagators feeds the default TracingMiddleware.
	// Default: TraceContext + Baggage (W3C standard)
	Propagators propagation.TextMapPropagator

	// === Service Identification ===

	// ServiceName is added as "http.client.name" on spans and metrics.
	ServiceName string

	// === Pipeline ===

	Codec        Codec
	Executor     Executor
	MultiHandle  bool
	ExecutorOpts []ExecutorOption
	Middleware   []Middleware

	// Clock seeds the address selector.
	Clock func() time.Time

	// === Logging ===

	Logger zerolog.Logger
	Debug  bool
}

// newConfig creates a new internal config with defaults and applies options.
func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		config:         DefaultConfig(),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
		Propagators: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		Codec:  JSONCodec{},
		Clock:  time.Now,
		Logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// Metrics stay nil when registration fails; every recorder is nil-safe.
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// baseAttributes returns common attributes for all spans and metrics.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 1)
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("http.client.name", cfg.ServiceName))
	}
	return attrs
}

// newExecutor builds the built-in executor selected by the options.
func (cfg *internalConfig) newExecutor() Executor {
	opts := make([]ExecutorOption, 0, len(cfg.ExecutorOpts)+3)
	opts = append(opts,
		WithExecutorTransportConfig(cfg.config.Transport),
		WithExecutorLogger(cfg.Logger),
		WithExecutorMeterProvider(cfg.MeterProvider),
	)
	opts = append(opts, cfg.ExecutorOpts...)

	if cfg.MultiHandle {
		return NewMultiHandleExecutor(opts...)
	}
	return NewSingleShotExecutor(opts...)
}

// =============================================================================
// Options - Functional Options for Client Configuration
// =============================================================================

// Option configures the client.
type Option func(*internalConfig)

// WithConfig replaces the whole client configuration. Start from
// DefaultConfig() and customize as needed; options applied after WithConfig
// still modify the result.
func WithConfig(c Config) Option {
	return func(cfg *internalConfig) {
		cfg.config = c
	}
}

// WithBaseURL sets Config.BaseURL.
func WithBaseURL(baseURL string) Option {
	return func(cfg *internalConfig) {
		cfg.config.BaseURL = baseURL
	}
}

// WithAddresses sets the backend address pool (literal IPs) of the base
// URL's host.
func WithAddresses(addrs ...string) Option {
	return func(cfg *internalConfig) {
		cfg.config.Addresses = append([]string(nil), addrs...)
	}
}

// WithConnectionTimeout sets Config.ConnectTimeout.
func WithConnectionTimeout(d time.Duration) Option {
	return func(cfg *internalConfig) {
		cfg.config.ConnectTimeout = d
	}
}

// WithOperationTimeout sets Config.OperationTimeout.
func WithOperationTimeout(d time.Duration) Option {
	return func(cfg *internalConfig) {
		cfg.config.OperationTimeout = d
	}
}

// WithFollowRedirects sets Config.FollowRedirects.
func WithFollowRedirects(follow bool) Option {
	return func(cfg *internalConfig) {
		cfg.config.FollowRedirects = follow
	}
}

// WithMaxRedirects sets Config.MaxRedirects.
func WithMaxRedirects(n int) Option {
	return func(cfg *internalConfig) {
		cfg.config.MaxRedirects = n
	}
}

// WithStatusPolicy sets Config.StatusPolicy.
func WithStatusPolicy(p StatusPolicy) Option {
	return func(cfg *internalConfig) {
		cfg.config.StatusPolicy = p
	}
}

// WithTransportConfig sets Config.Transport.
func WithTransportConfig(tc TransportConfig) Option {
	return func(cfg *internalConfig) {
		cfg.config.Transport = tc
	}
}

// WithCodec sets the payload codec. Default: JSONCodec.
func WithCodec(c Codec) Option {
	return func(cfg *internalConfig) {
		if c != nil {
			cfg.Codec = c
		}
	}
}

// WithExecutor replaces the built-in executor, e.g. with a BreakerExecutor
// or a MockExecutor. Transport settings and executor options are then
// ignored.
func WithExecutor(e Executor) Option {
	return func(cfg *internalConfig) {
		cfg.Executor = e
	}
}

// WithMultiHandle selects the MultiHandleExecutor, which keeps one reusable
// connection handle per backend address instead of a fresh transport per
// call. opts are passed to the executor.
//
// Example:
//
//	client, err := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithAddresses("10.0.0.1", "10.0.0.2"),
//	    httpclient.WithMultiHandle(httpclient.WithDisposeHook(func(key string) {
//	        log.Printf("handle %s closed", key)
//	    })),
//	)
//	defer client.Close()
func WithMultiHandle(opts ...ExecutorOption) Option {
	return func(cfg *internalConfig) {
		cfg.MultiHandle = true
		cfg.ExecutorOpts = append(cfg.ExecutorOpts, opts...)
	}
}

// WithMiddleware appends middleware after the default tracing middleware.
func WithMiddleware(m ...Middleware) Option {
	return func(cfg *internalConfig) {
		cfg.Middleware = append(cfg.Middleware, m...)
	}
}

// WithServiceName sets an identifier for this client in traces and metrics.
// It is added as the "http.client.name" attribute.
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.ServiceName = name
	}
}

// WithTracerProvider sets the tracer provider. Default: otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		if tp != nil {
			cfg.TracerProvider = tp
		}
	}
}

// WithMeterProvider sets the meter provider. Default: otel.GetMeterProvider().
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		if mp != nil {
			cfg.MeterProvider = mp
		}
	}
}

// WithPropagators sets the propagators used by the default tracing
// middleware.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *internalConfig) {
		if p != nil {
			cfg.Propagators = p
		}
	}
}

// WithLogger sets the zerolog logger. Default: zerolog.Nop().
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.Logger = logger
	}
}

// WithDebug logs every call at debug level, including an equivalent curl
// command line. Headers are logged verbatim, credentials included.
func WithDebug(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.Debug = enabled
	}
}

// WithClock sets the clock used to seed the address selector.
func WithClock(now func() time.Time) Option {
	return func(cfg *internalConfig) {
		if now != nil {
			cfg.Clock = now
		}
	}
}
