package httpclient

import "context"

// SingleShotExecutor opens a fresh transport for every call and releases it
// when the call returns. Nothing is shared between calls, so resolve
// overrides and connections never leak from one call to the next.
type SingleShotExecutor struct {
	cfg *executorConfig
}

// NewSingleShotExecutor returns a SingleShotExecutor.
func NewSingleShotExecutor(opts ...ExecutorOption) *SingleShotExecutor {
	return &SingleShotExecutor{cfg: newExecutorConfig(opts...)}
}

// Execute implements Executor.
func (e *SingleShotExecutor) Execute(ctx context.Context, url string, opts CallOptions) (*RawResponse, error) {
	cache := newResolveCache()
	if err := cache.apply(opts.Resolve); err != nil {
		return nil, err
	}

	transport := e.cfg.transport.buildTransport(cache)
	transport.DisableKeepAlives = true
	defer transport.CloseIdleConnections()

	return perform(ctx, newHTTPClient(transport), url, opts, newTransfer(opts))
}
