package httpclient

import (
	"context"
	"crypto/tls"
	"net"
	"net/http/httptrace"
	"strconv"
	"sync"
	"time"
)

// transfer is the per-call state an executor attaches to the request
// context. Everything the transport reports about the call lands here, so
// concurrent calls sharing one handle never see each other's results.
type transfer struct {
	connectTimeout  time.Duration
	followRedirects bool
	maxRedirects    int

	mu        sync.Mutex
	handleErr error
	redirects int
	trace     networkTrace
}

func newTransfer(opts CallOptions) *transfer {
	return &transfer{
		connectTimeout:  opts.ConnectTimeout,
		followRedirects: opts.FollowRedirects,
		maxRedirects:    opts.MaxRedirects,
	}
}

type transferKey struct{}

func withTransfer(ctx context.Context, t *transfer) context.Context {
	return context.WithValue(ctx, transferKey{}, t)
}

func transferFromContext(ctx context.Context) *transfer {
	t, _ := ctx.Value(transferKey{}).(*transfer)
	return t
}

// setHandleErr records the first connection-level failure of the call.
func (t *transfer) setHandleErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handleErr == nil {
		t.handleErr = err
	}
}

func (t *transfer) handleError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handleErr
}

func (t *transfer) setRedirects(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.redirects = n
}

// networkTrace holds timing data collected from httptrace.ClientTrace.
type networkTrace struct {
	start time.Time

	dnsStart time.Time
	dnsDone  time.Time

	connectStart time.Time
	connectDone  time.Time

	tlsStart time.Time
	tlsDone  time.Time

	gotConnTime       time.Time
	wroteRequestTime  time.Time
	firstResponseTime time.Time

	connReused bool
	connRemote net.Addr
	connLocal  net.Addr

	// headerBytes sums the header field lines written, in HTTP/1.1 form,
	// across redirects.
	headerBytes int
}

// requestHeaderBytes returns the header field bytes written so far.
func (t *transfer) requestHeaderBytes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trace.headerBytes
}

// clientTrace returns an httptrace.ClientTrace that populates t's timings.
// Callbacks may fire from transport goroutines, hence the lock.
func (t *transfer) clientTrace() *httptrace.ClientTrace {
	record := func(fn func(nt *networkTrace)) {
		t.mu.Lock()
		fn(&t.trace)
		t.mu.Unlock()
	}

	return &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			record(func(nt *networkTrace) {
				nt.gotConnTime = time.Now()
				nt.connReused = info.Reused
				if info.Conn != nil {
					nt.connRemote = info.Conn.RemoteAddr()
					nt.connLocal = info.Conn.LocalAddr()
				}
			})
		},
		DNSStart: func(_ httptrace.DNSStartInfo) {
			record(func(nt *networkTrace) { nt.dnsStart = time.Now() })
		},
		DNSDone: func(_ httptrace.DNSDoneInfo) {
			record(func(nt *networkTrace) { nt.dnsDone = time.Now() })
		},
		ConnectStart: func(_, _ string) {
			record(func(nt *networkTrace) {
				if nt.connectStart.IsZero() {
					nt.connectStart = time.Now()
				}
			})
		},
		ConnectDone: func(_, _ string, _ error) {
			record(func(nt *networkTrace) { nt.connectDone = time.Now() })
		},
		TLSHandshakeStart: func() {
			record(func(nt *networkTrace) { nt.tlsStart = time.Now() })
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			record(func(nt *networkTrace) { nt.tlsDone = time.Now() })
			if err != nil {
				t.setHandleErr(err)
			}
		},
		WroteHeaderField: func(key string, values []string) {
			record(func(nt *networkTrace) {
				for _, v := range values {
					nt.headerBytes += len(key) + len(v) + len(": \r\n")
				}
			})
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			record(func(nt *networkTrace) { nt.wroteRequestTime = time.Now() })
		},
		GotFirstResponseByte: func() {
			record(func(nt *networkTrace) { nt.firstResponseTime = time.Now() })
		},
	}
}

// fillInfo copies the collected timings into info. Timings are cumulative
// from the start of the call, zero when the phase did not happen.
func (t *transfer) fillInfo(info *TransferInfo, end time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nt := t.trace
	since := func(ts time.Time) time.Duration {
		if ts.IsZero() || nt.start.IsZero() {
			return 0
		}
		return ts.Sub(nt.start)
	}

	info.NameLookupTime = since(nt.dnsDone)
	info.ConnectTime = since(nt.connectDone)
	info.AppConnectTime = since(nt.tlsDone)
	info.PreTransferTime = since(nt.wroteRequestTime)
	info.StartTransferTime = since(nt.firstResponseTime)
	info.TotalTime = since(end)
	info.ConnReused = nt.connReused
	info.RedirectCount = t.redirects

	info.PrimaryIP, info.PrimaryPort = splitAddr(nt.connRemote)
	info.LocalIP, info.LocalPort = splitAddr(nt.connLocal)
}

func splitAddr(addr net.Addr) (string, int) {
	if addr == nil {
		return "", 0
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	p, _ := strconv.Atoi(port)
	return host, p
}
