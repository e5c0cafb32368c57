package httpclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// startSpan starts the client span of one call: "HTTP {method}".
func (c *Client) startSpan(ctx context.Context, method Method, u *url.URL) (context.Context, trace.Span) {
	return c.cfg.Tracer.Start(ctx, "HTTP "+string(method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(c.requestAttributes(method, u)...),
	)
}

// finishCall records the outcome of a call on span and in metrics.
// raw may be nil when the call failed before a response was received.
func (c *Client) finishCall(
	ctx context.Context,
	span trace.Span,
	method Method,
	u *url.URL,
	start time.Time,
	raw *RawResponse,
	err error,
) {
	m := c.cfg.Metrics
	attrs := c.metricsAttributes(method, u)

	if raw != nil {
		span.SetAttributes(
			attribute.Int("http.response.status_code", raw.StatusCode),
			attribute.Int("http.response.body.size", raw.Info.SizeDownload),
			attribute.Int("http.request.resend_count", raw.Info.RedirectCount),
			attribute.Bool("connection.reused", raw.Info.ConnReused),
		)
		if raw.Info.PrimaryIP != "" {
			span.SetAttributes(attribute.String("network.peer.address", raw.Info.PrimaryIP))
		}
		attrs = append(attrs, attribute.Int("http.response.status_code", raw.StatusCode))

		m.recordResponseBodySize(ctx, int64(raw.Info.SizeDownload), c.cfg.baseAttributes())
		m.recordTransferTimings(ctx, raw.Info, c.cfg.baseAttributes())
	}

	if err != nil {
		et := errorType(err)
		setSpanError(span, err, et)
		m.recordError(ctx, et, c.cfg.baseAttributes())
		attrs = append(attrs, attribute.String("error.type", et))
	} else if raw != nil && raw.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", raw.StatusCode))
	}

	m.recordRequestDuration(ctx, time.Since(start), attrs)
}

// requestAttributes returns span attributes for the call.
func (c *Client) requestAttributes(method Method, u *url.URL) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 6)
	attrs = append(attrs, c.cfg.baseAttributes()...)
	attrs = append(attrs,
		attribute.String("http.request.method", string(method)),
		attribute.String("url.full", u.String()),
		attribute.String("url.scheme", u.Scheme),
	)
	return append(attrs, serverAttributes(u)...)
}

// metricsAttributes returns the low-cardinality attributes for metrics.
func (c *Client) metricsAttributes(method Method, u *url.URL) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 6)
	attrs = append(attrs, c.cfg.baseAttributes()...)
	attrs = append(attrs, attribute.String("http.request.method", string(method)))
	return append(attrs, serverAttributes(u)...)
}

func serverAttributes(u *url.URL) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if host := u.Hostname(); host != "" {
		attrs = append(attrs, attribute.String("server.address", host))
	}

	if port := u.Port(); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			attrs = append(attrs, attribute.Int("server.port", p))
		}
	} else {
		switch u.Scheme {
		case "http":
			attrs = append(attrs, attribute.Int("server.port", 80))
		case "https":
			attrs = append(attrs, attribute.Int("server.port", 443))
		}
	}
	return attrs
}

// setSpanError records an error on the span with proper status and attributes.
func setSpanError(span trace.Span, err error, errorType string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errorType != "" {
		span.SetAttributes(attribute.String("error.type", errorType))
	}
}
