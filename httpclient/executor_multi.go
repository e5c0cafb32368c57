package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// handle is a long-lived transport context. Connections opened through it
// are kept alive and reused by later calls with the same key.
type handle struct {
	key       string
	transport *http.Transport
	client    *http.Client
	resolver  *resolveCache
	created   time.Time

	calls    atomic.Uint64
	inflight atomic.Int64
	lastUsed atomic.Int64
}

// HandleStats is a point-in-time view of one cached handle.
type HandleStats struct {
	Key      string
	Created  time.Time
	LastUsed time.Time
	Calls    uint64
	InFlight int64
	Pins     int
}

// MultiHandleExecutor keeps one reusable handle per destination key and
// routes every call through the handle of its key.
//
// The key is the target address of the call's last resolve override, so
// calls pinned to the same backend share connections. Calls without
// overrides are keyed by the scheme and host of their URL.
//
// Handles live until Dispose or Close. The cache has no eviction, so the
// number of distinct keys should stay bounded.
type MultiHandleExecutor struct {
	cfg *executorConfig

	mu      sync.Mutex
	handles map[string]*handle
	closed  bool
}

// NewMultiHandleExecutor returns an empty MultiHandleExecutor.
func NewMultiHandleExecutor(opts ...ExecutorOption) *MultiHandleExecutor {
	return &MultiHandleExecutor{
		cfg:     newExecutorConfig(opts...),
		handles: make(map[string]*handle),
	}
}

// Execute implements Executor.
func (e *MultiHandleExecutor) Execute(ctx context.Context, rawURL string, opts CallOptions) (*RawResponse, error) {
	key, err := handleKey(rawURL, opts.Resolve)
	if err != nil {
		return nil, err
	}

	h, err := e.acquire(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := h.resolver.apply(opts.Resolve); err != nil {
		return nil, err
	}

	h.inflight.Add(1)
	defer h.inflight.Add(-1)

	raw, err := perform(ctx, h.client, rawURL, opts, newTransfer(opts))

	h.calls.Add(1)
	h.lastUsed.Store(e.cfg.now().UnixNano())

	return raw, err
}

func (e *MultiHandleExecutor) acquire(ctx context.Context, key string) (*handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, rejected(CodeExecutorClosed, ErrExecutorClosed)
	}
	if h, ok := e.handles[key]; ok {
		return h, nil
	}

	resolver := newResolveCache()
	transport := e.cfg.transport.buildTransport(resolver)
	h := &handle{
		key:       key,
		transport: transport,
		client:    newHTTPClient(transport),
		resolver:  resolver,
		created:   e.cfg.now(),
	}
	e.handles[key] = h

	e.cfg.metrics.recordHandleCreated(ctx, key)
	e.cfg.logger.Debug().Str("handle", key).Msg("transport handle created")

	return h, nil
}

// Dispose closes the handle for key. It reports whether a handle existed.
// Calls in flight on the handle complete; their connections are closed
// once idle.
func (e *MultiHandleExecutor) Dispose(key string) bool {
	e.mu.Lock()
	h, ok := e.handles[key]
	if ok {
		delete(e.handles, key)
	}
	e.mu.Unlock()

	if ok {
		e.teardown(h)
	}
	return ok
}

// Close disposes every handle. Later calls fail with ErrExecutorClosed.
func (e *MultiHandleExecutor) Close() error {
	e.mu.Lock()
	handles := make([]*handle, 0, len(e.handles))
	for _, h := range e.handles {
		handles = append(handles, h)
	}
	e.handles = make(map[string]*handle)
	e.closed = true
	e.mu.Unlock()

	sort.Slice(handles, func(i, j int) bool { return handles[i].key < handles[j].key })
	for _, h := range handles {
		e.teardown(h)
	}
	return nil
}

func (e *MultiHandleExecutor) teardown(h *handle) {
	h.transport.CloseIdleConnections()

	e.cfg.metrics.recordHandleDisposed(context.Background(), h.key)
	e.cfg.logger.Debug().
		Str("handle", h.key).
		Uint64("calls", h.calls.Load()).
		Msg("transport handle disposed")

	if e.cfg.onDispose != nil {
		e.cfg.onDispose(h.key)
	}
}

// Len returns the number of cached handles.
func (e *MultiHandleExecutor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

// Handles returns a snapshot of every cached handle, sorted by key.
func (e *MultiHandleExecutor) Handles() []HandleStats {
	e.mu.Lock()
	stats := make([]HandleStats, 0, len(e.handles))
	for _, h := range e.handles {
		s := HandleStats{
			Key:      h.key,
			Created:  h.created,
			Calls:    h.calls.Load(),
			InFlight: h.inflight.Load(),
			Pins:     h.resolver.len(),
		}
		if ns := h.lastUsed.Load(); ns > 0 {
			s.LastUsed = time.Unix(0, ns)
		}
		stats = append(stats, s)
	}
	e.mu.Unlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].Key < stats[j].Key })
	return stats
}

// handleKey derives the handle key of a call: the address of the last
// resolve override, or scheme://host of the URL when there is none.
func handleKey(rawURL string, resolve []string) (string, error) {
	if n := len(resolve); n > 0 {
		e, err := ParseResolveEntry(resolve[n-1])
		if err != nil {
			return "", err
		}
		if e.Address != "" {
			return e.Address, nil
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &TransportError{Code: CodeURLMalformat, Message: err.Error(), Err: err}
	}
	return u.Scheme + "://" + u.Host, nil
}
