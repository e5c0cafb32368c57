package httpclient

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics groups the instruments recorded by the client, the built-in
// executors and the breaker. A nil *metrics records nothing.
type metrics struct {
	// Per call
	requestDuration  metric.Float64Histogram
	requestBodySize  metric.Int64Histogram
	responseBodySize metric.Int64Histogram
	activeRequests   metric.Int64UpDownCounter
	requestErrors    metric.Int64Counter

	// Transfer phases taken from TransferInfo
	dnsDuration        metric.Float64Histogram
	connectionDuration metric.Float64Histogram
	tlsDuration        metric.Float64Histogram
	ttfb               metric.Float64Histogram

	// Multi-handle cache. A steadily growing handlesCreated means call keys
	// are not being reused.
	handlesCreated metric.Int64Counter
	handlesActive  metric.Int64UpDownCounter

	// breakerState is 0 closed, 1 half-open, 2 open.
	breakerState    metric.Int64Gauge
	breakerRequests metric.Int64Counter
}

var (
	durationBuckets = []float64{
		0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10,
	}
	sizeBuckets = []float64{
		0, 100, 1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024,
	}
	phaseBuckets = []float64{
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
	}
)

// registry creates instruments on one meter and keeps the first error.
type registry struct {
	meter metric.Meter
	err   error
}

func (r *registry) keep(name string, err error) {
	if err != nil && r.err == nil {
		r.err = errors.Wrapf(err, "register %s", name)
	}
}

func (r *registry) seconds(name, desc string, buckets []float64) metric.Float64Histogram {
	h, err := r.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	r.keep(name, err)
	return h
}

func (r *registry) bytes(name, desc string) metric.Int64Histogram {
	h, err := r.meter.Int64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBuckets...),
	)
	r.keep(name, err)
	return h
}

func (r *registry) counter(name, desc, unit string) metric.Int64Counter {
	c, err := r.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	r.keep(name, err)
	return c
}

func (r *registry) upDown(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := r.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	r.keep(name, err)
	return c
}

func (r *registry) gauge(name, desc, unit string) metric.Int64Gauge {
	g, err := r.meter.Int64Gauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
	r.keep(name, err)
	return g
}

// newMetrics registers every instrument on meter. It fails if any
// registration fails.
func newMetrics(meter metric.Meter) (*metrics, error) {
	r := &registry{meter: meter}

	m := &metrics{
		requestDuration:  r.seconds("http.client.request.duration", "Duration of HTTP client calls in seconds", durationBuckets),
		requestBodySize:  r.bytes("http.client.request.body.size", "Size of HTTP client request bodies in bytes"),
		responseBodySize: r.bytes("http.client.response.body.size", "Size of HTTP client response bodies in bytes"),
		activeRequests:   r.upDown("http.client.active_requests", "Number of in-flight HTTP client calls", "{request}"),
		requestErrors:    r.counter("http.client.request.error", "Number of failed HTTP client calls by error type", "{error}"),

		dnsDuration:        r.seconds("http.client.dns.duration", "Name lookup duration in seconds", phaseBuckets),
		connectionDuration: r.seconds("http.client.connection.duration", "TCP connect duration in seconds", phaseBuckets),
		tlsDuration:        r.seconds("http.client.tls.duration", "TLS handshake duration in seconds", phaseBuckets),
		ttfb:               r.seconds("http.client.ttfb", "Time from request sent to first response byte in seconds", durationBuckets),

		handlesCreated: r.counter("http.client.handles.created", "Number of transport handles opened", "{handle}"),
		handlesActive:  r.upDown("http.client.handles.active", "Number of cached transport handles", "{handle}"),

		breakerState:    r.gauge("http.client.breaker.state", "Circuit breaker state (0 closed, 1 half-open, 2 open)", "{state}"),
		breakerRequests: r.counter("http.client.breaker.requests", "Calls seen by the circuit breaker by outcome", "{request}"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}

// recordRequestDuration records the duration of a call.
func (m *metrics) recordRequestDuration(
	ctx context.Context,
	duration time.Duration,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// recordRequestBodySize records the size of a request body.
func (m *metrics) recordRequestBodySize(
	ctx context.Context,
	size int64,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.requestBodySize == nil {
		return
	}
	m.requestBodySize.Record(ctx, size, metric.WithAttributes(attrs...))
}

// recordResponseBodySize records the size of a response body.
func (m *metrics) recordResponseBodySize(
	ctx context.Context,
	size int64,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.responseBodySize == nil {
		return
	}
	m.responseBodySize.Record(ctx, size, metric.WithAttributes(attrs...))
}

// recordTransferTimings records the network phases found in info.
// Phases that did not happen (reused connection, plain HTTP) are skipped.
func (m *metrics) recordTransferTimings(
	ctx context.Context,
	info TransferInfo,
	attrs []attribute.KeyValue,
) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(attrs...)

	if info.NameLookupTime > 0 && m.dnsDuration != nil {
		m.dnsDuration.Record(ctx, info.NameLookupTime.Seconds(), opt)
	}
	if info.ConnectTime > info.NameLookupTime && m.connectionDuration != nil {
		m.connectionDuration.Record(ctx, (info.ConnectTime - info.NameLookupTime).Seconds(), opt)
	}
	if info.AppConnectTime > info.ConnectTime && m.tlsDuration != nil {
		m.tlsDuration.Record(ctx, (info.AppConnectTime - info.ConnectTime).Seconds(), opt)
	}
	if info.StartTransferTime > info.PreTransferTime && m.ttfb != nil {
		m.ttfb.Record(ctx, (info.StartTransferTime - info.PreTransferTime).Seconds(), opt)
	}
}

// recordActiveRequestStart records a call starting.
func (m *metrics) recordActiveRequestStart(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.activeRequests == nil {
		return
	}
	m.activeRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// recordActiveRequestEnd records a call completing.
func (m *metrics) recordActiveRequestEnd(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.activeRequests == nil {
		return
	}
	m.activeRequests.Add(ctx, -1, metric.WithAttributes(attrs...))
}

// recordError records a failed call.
func (m *metrics) recordError(ctx context.Context, errorType string, attrs []attribute.KeyValue) {
	if m == nil || m.requestErrors == nil {
		return
	}
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attrs...)
	allAttrs = append(allAttrs, attribute.String("error.type", errorType))
	m.requestErrors.Add(ctx, 1, metric.WithAttributes(allAttrs...))
}

func (m *metrics) recordHandleCreated(ctx context.Context, key string) {
	if m == nil || m.handlesCreated == nil || m.handlesActive == nil {
		return
	}
	opt := metric.WithAttributes(attribute.String("http.client.handle", key))
	m.handlesCreated.Add(ctx, 1, opt)
	m.handlesActive.Add(ctx, 1)
}

func (m *metrics) recordHandleDisposed(ctx context.Context, _ string) {
	if m == nil || m.handlesActive == nil {
		return
	}
	m.handlesActive.Add(ctx, -1)
}

func (m *metrics) recordBreakerState(ctx context.Context, name string, state int64) {
	if m == nil || m.breakerState == nil {
		return
	}
	m.breakerState.Record(ctx, state, metric.WithAttributes(attribute.String("http.client.breaker", name)))
}

func (m *metrics) recordBreakerRequest(ctx context.Context, name, outcome string) {
	if m == nil || m.breakerRequests == nil {
		return
	}
	m.breakerRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.client.breaker", name),
		attribute.String("outcome", outcome),
	))
}
