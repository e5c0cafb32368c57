package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Executor performs one call against one destination and returns the raw
// response. Failures below HTTP are returned as *TransportError; HTTP
// statuses are never treated as errors at this level.
//
// Implementations must be safe for concurrent use.
type Executor interface {
	Execute(ctx context.Context, url string, opts CallOptions) (*RawResponse, error)
}

// closeExecutor closes the first io.Closer found along the Unwrap chain
// starting at e.
func closeExecutor(e Executor) error {
	for e != nil {
		if c, ok := e.(io.Closer); ok {
			return c.Close()
		}
		u, ok := e.(interface{ Unwrap() Executor })
		if !ok {
			return nil
		}
		e = u.Unwrap()
	}
	return nil
}

var (
	_ Executor = (*SingleShotExecutor)(nil)
	_ Executor = (*MultiHandleExecutor)(nil)
)

// executorConfig is shared by the built-in executors.
type executorConfig struct {
	transport     TransportConfig
	logger        zerolog.Logger
	meterProvider metric.MeterProvider
	metrics       *metrics
	onDispose     func(key string)
	now           func() time.Time
}

// ExecutorOption configures SingleShotExecutor and MultiHandleExecutor.
type ExecutorOption func(*executorConfig)

func newExecutorConfig(opts ...ExecutorOption) *executorConfig {
	cfg := &executorConfig{
		transport:     DefaultTransportConfig(),
		logger:        zerolog.Nop(),
		meterProvider: otel.GetMeterProvider(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.metrics, _ = newMetrics(cfg.meterProvider.Meter(scope))
	return cfg
}

// WithExecutorTransportConfig sets the transport settings of every handle.
func WithExecutorTransportConfig(tc TransportConfig) ExecutorOption {
	return func(cfg *executorConfig) {
		cfg.transport = tc
	}
}

// WithExecutorLogger sets the logger used for handle lifecycle events.
func WithExecutorLogger(logger zerolog.Logger) ExecutorOption {
	return func(cfg *executorConfig) {
		cfg.logger = logger
	}
}

// WithExecutorMeterProvider sets the meter provider for handle metrics.
func WithExecutorMeterProvider(mp metric.MeterProvider) ExecutorOption {
	return func(cfg *executorConfig) {
		if mp != nil {
			cfg.meterProvider = mp
		}
	}
}

// WithDisposeHook registers fn to be called with the key of every handle a
// MultiHandleExecutor tears down, after its connections are closed.
func WithDisposeHook(fn func(key string)) ExecutorOption {
	return func(cfg *executorConfig) {
		cfg.onDispose = fn
	}
}

// perform runs one call on hc and assembles the raw response. t collects the
// call's diagnostics and its handle-level error, which takes precedence over
// the transfer-level error when both are present.
func perform(ctx context.Context, hc *http.Client, rawURL string, opts CallOptions, t *transfer) (*RawResponse, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	t.trace.start = time.Now()
	ctx = withTransfer(ctx, t)
	ctx = httptrace.WithClientTrace(ctx, t.clientTrace())

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	method := string(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, &TransportError{Code: CodeURLMalformat, Message: err.Error(), Err: err}
	}
	applyHeaderLines(req, opts.Headers)

	resp, err := hc.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, transferFailure(t, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transferFailure(t, err)
	}
	end := time.Now()

	var head bytes.Buffer
	head.WriteString(resp.Proto + " " + resp.Status + "\r\n")
	_ = resp.Header.Write(&head)
	head.WriteString("\r\n")

	data := make([]byte, 0, head.Len()+len(payload))
	data = append(data, head.Bytes()...)
	data = append(data, payload...)

	info := TransferInfo{
		URL:          resp.Request.URL.String(),
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		HeaderSize:   head.Len(),
		RequestSize:  requestLineSize(req) + t.requestHeaderBytes() + len("\r\n") + len(opts.Body),
		SizeDownload: len(payload),
	}
	t.fillInfo(&info, end)

	return &RawResponse{
		StatusCode: resp.StatusCode,
		Data:       data,
		Info:       info,
	}, nil
}

// requestLineSize is the length of req's HTTP/1.1 request line, CRLF
// included.
func requestLineSize(req *http.Request) int {
	return len(req.Method) + len(" ") + len(req.URL.RequestURI()) + len(" HTTP/1.1\r\n")
}

func transferFailure(t *transfer, err error) error {
	if herr := t.handleError(); herr != nil {
		return newTransportError(herr)
	}
	return newTransportError(err)
}

// applyHeaderLines adds "Name: Value" lines to req. A "Host" line replaces
// the request host; lines without a name are skipped.
func applyHeaderLines(req *http.Request, lines []string) {
	for _, line := range lines {
		name, value, ok := splitHeaderLine(line)
		if !ok {
			continue
		}
		if strings.EqualFold(name, "Host") {
			req.Host = value
			continue
		}
		req.Header.Add(name, value)
	}
}
