package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// MockExecutor is an Executor for tests. It records every call and answers
// from stubs instead of the network.
//
// Example:
//
//	mock := httpclient.NewMockExecutor().
//	    StubResponse(http.StatusOK, map[string]string{"Content-Type": "application/json"}, `{"id":1}`)
//	client, _ := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithExecutor(mock),
//	)
type MockExecutor struct {
	mu       sync.RWMutex
	stubs    []mockStub
	fallback *mockStub
	calls    []MockCall
}

// MockCall is one call recorded by MockExecutor.
type MockCall struct {
	URL     string
	Options CallOptions
}

type mockStub struct {
	matcher func(url string, opts CallOptions) bool
	status  int
	headers map[string]string
	body    string
	err     error
}

var _ Executor = (*MockExecutor)(nil)

// NewMockExecutor creates a MockExecutor without stubs.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

// StubResponse answers every unmatched call with the given response.
func (m *MockExecutor) StubResponse(status int, headers map[string]string, body string) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &mockStub{status: status, headers: headers, body: body}
	return m
}

// StubError answers every unmatched call with err.
func (m *MockExecutor) StubError(err error) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &mockStub{err: err}
	return m
}

// StubFunc answers calls matching the predicate with the given response.
// Stubs are checked in registration order; the first match wins.
func (m *MockExecutor) StubFunc(
	matcher func(url string, opts CallOptions) bool,
	status int,
	headers map[string]string,
	body string,
) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, mockStub{matcher: matcher, status: status, headers: headers, body: body})
	return m
}

// StubFuncError answers calls matching the predicate with err.
func (m *MockExecutor) StubFuncError(matcher func(url string, opts CallOptions) bool, err error) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, mockStub{matcher: matcher, err: err})
	return m
}

// Execute implements Executor.
func (m *MockExecutor) Execute(ctx context.Context, url string, opts CallOptions) (*RawResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{URL: url, Options: opts.Clone()})
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, newTransportError(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.stubs {
		if s.matcher(url, opts) {
			return s.respond(url)
		}
	}
	if m.fallback != nil {
		return m.fallback.respond(url)
	}

	return nil, errors.Newf("no stub found for call: %s %s", opts.Method, url)
}

func (s mockStub) respond(url string) (*RawResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return mockRawResponse(url, s.status, s.headers, s.body), nil
}

// mockRawResponse assembles a RawResponse the way a real transfer would:
// status line, headers sorted by name, a blank line, then the body.
func mockRawResponse(url string, status int, headers map[string]string, body string) *RawResponse {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))

	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)

	contentType := ""
	for _, k := range names {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, headers[k])
		if strings.EqualFold(k, "Content-Type") {
			contentType = headers[k]
		}
	}
	buf.WriteString("\r\n")

	headerSize := buf.Len()
	buf.WriteString(body)

	return &RawResponse{
		StatusCode: status,
		Data:       buf.Bytes(),
		Info: TransferInfo{
			URL:          url,
			StatusCode:   status,
			ContentType:  contentType,
			HeaderSize:   headerSize,
			SizeDownload: len(body),
		},
	}
}

// Calls returns every recorded call in order.
func (m *MockExecutor) Calls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MockCall{}, m.calls...)
}

// CallCount returns the number of recorded calls.
func (m *MockExecutor) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// LastCall returns the most recent call, or false if none was made.
func (m *MockExecutor) LastCall() (MockCall, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.calls) == 0 {
		return MockCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Reset clears all recorded calls and stubs.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.stubs = nil
	m.fallback = nil
}
