package httpclient

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	gobreakerredis "github.com/sony/gobreaker/v2/redis"
)

// NewRedisStore returns a gobreaker store that keeps breaker state in Redis,
// so every process calling the same backend opens and closes together.
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	cfg := httpclient.DistributedBreakerConfig(httpclient.NewRedisStore(rdb))
func NewRedisStore(client redis.UniversalClient) gobreaker.SharedDataStore {
	return gobreakerredis.NewStoreFromClient(client)
}

// CircuitBreaker is what BreakerExecutor runs calls through. Both the local
// and the distributed gobreaker breakers satisfy it once instantiated for
// *RawResponse.
type CircuitBreaker interface {
	Execute(req func() (*RawResponse, error)) (*RawResponse, error)
}

// BreakerClassifier reports whether a call outcome is a backend failure.
// raw is nil whenever err is non-nil.
type BreakerClassifier func(raw *RawResponse, err error) bool

// BreakerConfig configures BreakerExecutor.
//
// The breaker trips when either rule fires:
//   - ConsecutiveFailures failures in a row, or
//   - a failure ratio of at least FailureRatio once FailureThreshold calls
//     were seen in the current Interval.
//
// FailureThreshold also gates the consecutive rule; set it to 0 to trip on
// consecutive failures from the first call.
type BreakerConfig struct {
	// MaxRequests is the number of probe calls let through while half-open.
	// 0 means 1.
	MaxRequests uint32

	// Interval clears the counts periodically while closed. 0 never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	// 0 means 60s.
	Timeout time.Duration

	FailureThreshold    uint32
	FailureRatio        float64
	ConsecutiveFailures uint32

	// Store shares state across processes. nil keeps it in memory.
	Store gobreaker.SharedDataStore

	// Classifier defaults to DefaultBreakerClassifier.
	Classifier BreakerClassifier

	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns an in-memory breaker that opens after 5
// failures in a row, or at 50% failures over at least 20 calls, and probes
// again after 10s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    20,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
		Classifier:          DefaultBreakerClassifier,
	}
}

// DistributedBreakerConfig is DefaultBreakerConfig with state kept in store.
func DistributedBreakerConfig(store gobreaker.SharedDataStore) BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.Store = store
	return cfg
}

// DisabledBreakerConfig never trips: no outcome is classified as a failure.
func DisabledBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: ^uint32(0),
		FailureRatio:     1.0,
		Classifier:       func(_ *RawResponse, _ error) bool { return false },
	}
}

// DefaultBreakerClassifier counts transport errors and 5xx responses as
// failures. Caller cancellation does not count, and neither does 429: the
// backend is alive and asking the caller to slow down.
func DefaultBreakerClassifier(raw *RawResponse, err error) bool {
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			switch te.Code {
			case CodeAbortedByCallback, CodeCircuitOpen, CodeRateLimited, CodeExecutorClosed:
				return false
			}
			return true
		}
		return false
	}

	return raw != nil && raw.StatusCode >= 500
}

func (c BreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if c.FailureThreshold > 0 && counts.Requests < c.FailureThreshold {
		return false
	}
	if c.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= c.ConsecutiveFailures {
		return true
	}
	if c.FailureRatio <= 0 || counts.Requests == 0 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

func (c BreakerConfig) settings(name string, onChange func(name string, from, to gobreaker.State)) gobreaker.Settings {
	return gobreaker.Settings{
		Name:          name,
		MaxRequests:   c.MaxRequests,
		Interval:      c.Interval,
		Timeout:       c.Timeout,
		ReadyToTrip:   c.readyToTrip,
		OnStateChange: onChange,
	}
}

// newCircuitBreaker builds a distributed breaker when a store is set. A
// store that cannot be initialised degrades to an in-memory breaker.
func (c BreakerConfig) newCircuitBreaker(st gobreaker.Settings) CircuitBreaker {
	if c.Store != nil {
		if dcb, err := gobreaker.NewDistributedCircuitBreaker[*RawResponse](c.Store, st); err == nil {
			return dcb
		}
	}
	return gobreaker.NewCircuitBreaker[*RawResponse](st)
}
