package httpclient

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures RateLimitedExecutor.
type RateLimitConfig struct {
	// RequestsPerSecond is the maximum sustained call rate.
	// Zero or less disables limiting.
	RequestsPerSecond float64

	// Burst is the maximum number of calls allowed in a burst.
	// Minimum 1.
	Burst int

	// WaitOnLimit determines behavior when the limit is hit.
	// If true, calls wait for a token (respecting the context deadline).
	// If false, calls fail immediately with ErrRateLimited.
	WaitOnLimit bool

	// PerDestination keeps one limiter per handle key (pinned backend
	// address, or scheme://host) instead of one for all calls, so every
	// backend of an address pool gets the full rate.
	PerDestination bool
}

// DefaultRateLimitConfig returns 100 calls per second with a burst of 10,
// waiting for tokens.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// ErrRateLimited is wrapped by the *TransportError (CodeRateLimited) of a
// call rejected due to rate limiting.
var ErrRateLimited = errors.New("httpclient: rate limit exceeded")

// RateLimitedExecutor throttles calls before they reach the wrapped
// executor. Throttled calls never touch the network.
type RateLimitedExecutor struct {
	next Executor
	cfg  RateLimitConfig

	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

var _ Executor = (*RateLimitedExecutor)(nil)

// NewRateLimitedExecutor wraps next with cfg.
func NewRateLimitedExecutor(next Executor, cfg RateLimitConfig) *RateLimitedExecutor {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &RateLimitedExecutor{
		next:     next,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Execute implements Executor.
func (e *RateLimitedExecutor) Execute(ctx context.Context, url string, opts CallOptions) (*RawResponse, error) {
	if e.cfg.RequestsPerSecond <= 0 {
		return e.next.Execute(ctx, url, opts)
	}

	key := ""
	if e.cfg.PerDestination {
		k, err := handleKey(url, opts.Resolve)
		if err != nil {
			return nil, err
		}
		key = k
	}
	limiter := e.limiter(key)

	if e.cfg.WaitOnLimit {
		if err := limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, newTransportError(err)
			}
			return nil, rejected(CodeRateLimited, ErrRateLimited)
		}
	} else if !limiter.Allow() {
		return nil, rejected(CodeRateLimited, ErrRateLimited)
	}

	return e.next.Execute(ctx, url, opts)
}

// limiter returns the limiter for key, creating one if needed.
func (e *RateLimitedExecutor) limiter(key string) *rate.Limiter {
	e.mu.RLock()
	if l, ok := e.limiters[key]; ok {
		e.mu.RUnlock()
		return l
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := e.limiters[key]; ok {
		return l
	}

	l := rate.NewLimiter(rate.Limit(e.cfg.RequestsPerSecond), e.cfg.Burst)
	e.limiters[key] = l
	return l
}

// RateLimiterStats provides visibility into limiter state.
type RateLimiterStats struct {
	Key             string
	Limit           float64
	Burst           int
	TokensAvailable float64
}

// Stats returns the state of every limiter created so far. The shared
// limiter has an empty key.
func (e *RateLimitedExecutor) Stats() []RateLimiterStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := make([]RateLimiterStats, 0, len(e.limiters))
	for k, l := range e.limiters {
		stats = append(stats, RateLimiterStats{
			Key:             k,
			Limit:           float64(l.Limit()),
			Burst:           l.Burst(),
			TokensAvailable: l.Tokens(),
		})
	}
	return stats
}

// Unwrap returns the wrapped executor.
func (e *RateLimitedExecutor) Unwrap() Executor { return e.next }

// Close closes the wrapped executor chain.
func (e *RateLimitedExecutor) Close() error { return closeExecutor(e.next) }
