package httpclient

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/metric"
)

// BreakerExecutor wraps an Executor in a circuit breaker. While the breaker
// is open, calls fail immediately with a *TransportError (CodeCircuitOpen)
// wrapping gobreaker.ErrOpenState and never reach the wrapped executor.
//
// Example - Breaker state shared across instances through Redis:
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	exec := httpclient.NewBreakerExecutor(
//	    httpclient.NewMultiHandleExecutor(),
//	    "orders-api",
//	    httpclient.DistributedBreakerConfig(httpclient.NewRedisStore(rdb)),
//	)
//	client, err := httpclient.New(
//	    httpclient.WithBaseURL("https://orders.internal"),
//	    httpclient.WithExecutor(exec),
//	)
type BreakerExecutor struct {
	breaker    CircuitBreaker
	next       Executor
	classifier BreakerClassifier
	metrics    *metrics
	name       string
}

var _ Executor = (*BreakerExecutor)(nil)

// errSyntheticFailure signals the breaker that a call failed (e.g. 500
// status) although the wrapped executor returned no error. It never reaches
// the caller.
var errSyntheticFailure = errors.New("synthetic failure")

// BreakerOption configures a BreakerExecutor.
type BreakerOption func(*breakerOptions)

type breakerOptions struct {
	metrics *metrics
}

// WithBreakerMeterProvider records breaker state and call outcomes with
// meters from mp.
func WithBreakerMeterProvider(mp metric.MeterProvider) BreakerOption {
	return func(o *breakerOptions) {
		if mp != nil {
			o.metrics, _ = newMetrics(mp.Meter(scope))
		}
	}
}

// NewBreakerExecutor wraps next in a breaker named name. An empty name
// falls back to "default-http-client".
func NewBreakerExecutor(next Executor, name string, cfg BreakerConfig, opts ...BreakerOption) *BreakerExecutor {
	o := &breakerOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if name == "" {
		name = "default-http-client"
	}
	if cfg.Classifier == nil {
		cfg.Classifier = DefaultBreakerClassifier
	}

	st := cfg.settings(name, func(name string, from, to gobreaker.State) {
		o.metrics.recordBreakerState(context.Background(), name, int64(to))
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(name, from, to)
		}
	})

	return &BreakerExecutor{
		breaker:    cfg.newCircuitBreaker(st),
		next:       next,
		classifier: cfg.Classifier,
		metrics:    o.metrics,
		name:       name,
	}
}

// Execute implements Executor.
func (e *BreakerExecutor) Execute(ctx context.Context, url string, opts CallOptions) (*RawResponse, error) {
	// Errors the classifier ignores must not count against the breaker,
	// so they bypass it and are returned after Execute.
	var passErr error
	raw, err := e.breaker.Execute(func() (*RawResponse, error) {
		raw, err := e.next.Execute(ctx, url, opts)
		if e.classifier(raw, err) {
			if err != nil {
				return raw, err
			}
			return raw, errSyntheticFailure
		}
		passErr = err
		return raw, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			e.metrics.recordBreakerRequest(ctx, e.name, "rejected")
			return nil, rejected(CodeCircuitOpen, err)
		}

		e.metrics.recordBreakerRequest(ctx, e.name, "failure")
		if errors.Is(err, errSyntheticFailure) && raw != nil {
			return raw, nil
		}
		return nil, err
	}

	e.metrics.recordBreakerRequest(ctx, e.name, "success")
	if passErr != nil {
		return nil, passErr
	}
	return raw, nil
}

// Unwrap returns the wrapped executor.
func (e *BreakerExecutor) Unwrap() Executor { return e.next }

// Close closes the wrapped executor chain.
func (e *BreakerExecutor) Close() error { return closeExecutor(e.next) }
