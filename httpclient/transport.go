package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"
)

// =============================================================================
// TransportConfig - connection level settings shared by all executors
// =============================================================================

// TransportConfig holds the settings used to build the underlying
// http.Transport of every executor handle.
//
// Example:
//
//	tc := httpclient.DefaultTransportConfig()
//	tc.TLSHandshakeTimeout = 3 * time.Second
//
//	client, err := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithTransportConfig(tc),
//	)
type TransportConfig struct {
	// DialTimeout bounds TCP connection establishment when the call does not
	// set its own connect timeout.
	//
	// Default: 30s
	DialTimeout time.Duration

	// KeepAlive is the TCP keep-alive probe interval.
	//
	// Default: 30s
	KeepAlive time.Duration

	// MaxIdleConns and MaxIdleConnsPerHost size the idle pool of a handle.
	// Only the multi-handle executor keeps idle connections.
	//
	// Default: 100 and 20
	MaxIdleConns        int
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits idle plus active connections per host on one
	// handle. Zero means unlimited.
	//
	// Default: 0
	MaxConnsPerHost int

	// IdleConnTimeout closes idle pooled connections.
	//
	// Default: 90s
	IdleConnTimeout time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake.
	//
	// Default: 10s
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers after the
	// request is written. Zero leaves it to the call's operation timeout.
	//
	// Default: 0
	ResponseHeaderTimeout time.Duration

	// ExpectContinueTimeout is the wait for "100 Continue".
	//
	// Default: 1s
	ExpectContinueTimeout time.Duration

	// DisableCompression stops the transport from asking for gzip and
	// transparently decompressing it. Left on, the raw response holds the
	// bytes exactly as the server sent them.
	//
	// Default: true
	DisableCompression bool

	// ForceHTTP2 attempts HTTP/2 when a custom dialer or TLS config is set.
	//
	// Default: false
	ForceHTTP2 bool

	// TLSConfig is the client TLS configuration. nil uses Go defaults.
	TLSConfig *tls.Config

	// ProxyURL routes requests through a proxy. nil disables proxying
	// unless ProxyFromEnvironment is set.
	ProxyURL *url.URL

	// ProxyFromEnvironment honours HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
	//
	// Default: false
	ProxyFromEnvironment bool
}

// DefaultTransportConfig returns the transport settings used by New.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout:           30 * time.Second,
		KeepAlive:             30 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
	}
}

// LowLatencyTransportConfig fails fast on slow connects and handshakes and
// keeps a larger idle pool for the multi-handle executor.
//
// Best for:
//   - Internal services on the same network
//   - Calls pinned to a small set of backend addresses
func LowLatencyTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout:           2 * time.Second,
		KeepAlive:             15 * time.Second,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   50,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
		ExpectContinueTimeout: 500 * time.Millisecond,
		DisableCompression:    true,
	}
}

// buildTransport creates an http.Transport that dials through cache.
func (tc TransportConfig) buildTransport(cache *resolveCache) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   tc.DialTimeout,
		KeepAlive: tc.KeepAlive,
	}

	transport := &http.Transport{
		DialContext:           pinnedDialContext(cache, dialer),
		MaxIdleConns:          tc.MaxIdleConns,
		MaxIdleConnsPerHost:   tc.MaxIdleConnsPerHost,
		MaxConnsPerHost:       tc.MaxConnsPerHost,
		IdleConnTimeout:       tc.IdleConnTimeout,
		TLSHandshakeTimeout:   tc.TLSHandshakeTimeout,
		ResponseHeaderTimeout: tc.ResponseHeaderTimeout,
		ExpectContinueTimeout: tc.ExpectContinueTimeout,
		DisableCompression:    tc.DisableCompression,
		TLSClientConfig:       tc.TLSConfig,
		ForceAttemptHTTP2:     tc.ForceHTTP2,
	}

	if tc.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(tc.ProxyURL)
	} else if tc.ProxyFromEnvironment {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return transport
}

// newHTTPClient wraps transport in a client whose redirect policy is read
// from the call in the request context.
func newHTTPClient(transport http.RoundTripper) *http.Client {
	return &http.Client{
		Transport:     transport,
		CheckRedirect: checkRedirect,
	}
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	t := transferFromContext(req.Context())
	if t == nil {
		if len(via) >= 10 {
			return errTooManyRedirects
		}
		return nil
	}

	if !t.followRedirects {
		return http.ErrUseLastResponse
	}
	if t.maxRedirects >= 0 && len(via) > t.maxRedirects {
		return errTooManyRedirects
	}

	t.setRedirects(len(via))
	return nil
}
