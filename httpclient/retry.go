package httpclient

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig configures Retry.
//
// Client never retries on its own: a call is sent once and its error is
// returned as is. Retry wraps a call on the caller side with exponential
// backoff and jitter, retrying only errors Classifier accepts.
//
// Example:
//
//	resp, err := httpclient.Retry(ctx, httpclient.DefaultRetryConfig(),
//	    func(ctx context.Context) (*httpclient.ParsedResponse, error) {
//	        return client.Get(ctx, "/items", nil)
//	    })
type RetryConfig struct {
	// MaxRetries is the maximum number of retries after the first attempt.
	// Default: 3
	MaxRetries uint

	// InitialInterval is the first backoff interval.
	// Default: 500ms
	InitialInterval time.Duration

	// MaxInterval caps the backoff interval.
	// Default: 30s
	MaxInterval time.Duration

	// MaxElapsedTime is the total time budget for all attempts.
	// Zero means no budget (only MaxRetries applies).
	// Default: 2m
	MaxElapsedTime time.Duration

	// Multiplier controls exponential growth of backoff intervals.
	// Default: 2.0
	Multiplier float64

	// JitterFactor randomizes each interval by ±JitterFactor.
	// Default: 0.5
	JitterFactor float64

	// BackOff replaces the exponential strategy built from the fields above.
	BackOff backoff.BackOff

	// Classifier decides whether an error is retried.
	// Default: IsRetryable
	Classifier func(error) bool

	// OnRetry is called before each retry with the failed attempt number
	// (starting at 1), its error and the wait before the next attempt.
	OnRetry func(attempt int, err error, next time.Duration)
}

// Default values for RetryConfig.
const (
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 30 * time.Second
	DefaultMaxElapsedTime  = 2 * time.Minute
	DefaultMultiplier      = 2.0
	DefaultJitterFactor    = 0.5
)

// DefaultRetryConfig returns balanced defaults: 3 retries starting at 500ms,
// doubling, with ±50% jitter and a two minute budget.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		MaxElapsedTime:  DefaultMaxElapsedTime,
		Multiplier:      DefaultMultiplier,
		JitterFactor:    DefaultJitterFactor,
	}
}

// ConservativeRetryConfig returns 2 retries starting at 1s within a 30s
// budget, for rate-limited or expensive backends.
func ConservativeRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: 1 * time.Second,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.5,
	}
}

// NoRetryConfig disables retries.
func NoRetryConfig() RetryConfig {
	return RetryConfig{}
}

// IsEnabled returns true if retries are enabled.
func (c RetryConfig) IsEnabled() bool {
	return c.MaxRetries > 0
}

// Retry runs fn until it succeeds, returns an error the classifier rejects,
// or the retry budget is spent. The last error is returned unchanged.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if !cfg.IsEnabled() {
		return fn(ctx)
	}

	classifier := cfg.Classifier
	if classifier == nil {
		classifier = IsRetryable
	}

	b := cfg.BackOff
	if b == nil {
		b = ExponentialBackOffFromConfig(cfg)
	}
	b.Reset()

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.MaxRetries + 1),
	}
	if cfg.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(cfg.MaxElapsedTime))
	}

	attempt := 0
	opts = append(opts, backoff.WithNotify(func(err error, next time.Duration) {
		attempt++
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, next)
		}
	}))

	var lastErr error
	res, err := backoff.Retry(ctx, func() (T, error) {
		v, err := fn(ctx)
		lastErr = err
		if err != nil && !classifier(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)

	// backoff wraps context and budget expiry; report what the call said.
	if err != nil && lastErr != nil {
		return res, lastErr
	}
	return res, err
}

// ExponentialBackOffFromConfig creates a cenkalti/backoff ExponentialBackOff
// from a RetryConfig, ensuring jitter is always applied.
func ExponentialBackOffFromConfig(cfg RetryConfig) *backoff.ExponentialBackOff {
	jitterFactor := cfg.JitterFactor
	if jitterFactor <= 0 {
		jitterFactor = DefaultJitterFactor
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.RandomizationFactor = jitterFactor
	b.Multiplier = cfg.Multiplier
	b.MaxInterval = cfg.MaxInterval
	return b
}

var _ backoff.BackOff = (*LinearBackOff)(nil)

// LinearBackOff grows the interval by a fixed increment per attempt, with
// jitter: base + attempt*increment ± jitter, capped at MaxInterval.
type LinearBackOff struct {
	InitialInterval time.Duration
	Increment       time.Duration
	MaxInterval     time.Duration
	JitterFactor    float64

	attempt int
}

// NewLinearBackOff returns a LinearBackOff starting at 500ms, growing by
// 500ms up to 30s, with ±50% jitter.
func NewLinearBackOff() *LinearBackOff {
	return &LinearBackOff{
		InitialInterval: 500 * time.Millisecond,
		Increment:       500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		JitterFactor:    0.5,
	}
}

// Reset resets the backoff to its initial state.
func (b *LinearBackOff) Reset() {
	b.attempt = 0
}

// NextBackOff returns the next interval with jitter applied.
func (b *LinearBackOff) NextBackOff() time.Duration {
	interval := b.InitialInterval + time.Duration(b.attempt)*b.Increment
	if b.MaxInterval > 0 && interval > b.MaxInterval {
		interval = b.MaxInterval
	}
	b.attempt++
	return applyJitter(interval, b.JitterFactor)
}

// applyJitter returns a random duration in [interval*(1-f), interval*(1+f)].
func applyJitter(interval time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return interval
	}
	if jitterFactor > 1 {
		jitterFactor = 1
	}

	delta := float64(interval) * jitterFactor
	minInterval := float64(interval) - delta

	//nolint:gosec // intentional weak rand for jitter (not cryptographic)
	return time.Duration(minInterval + rand.Float64()*2*delta)
}
