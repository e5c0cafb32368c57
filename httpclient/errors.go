package httpclient

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors. Every error returned by Client matches exactly one of the
// top-level sentinels below via errors.Is; status failures additionally match
// one of the status subtypes when the strict policy is active.
var (
	// ErrInvalidConfig is returned by New and Config.Validate.
	ErrInvalidConfig = errors.New("httpclient: invalid configuration")

	// ErrInvalidRequest marks caller misuse detected before any I/O:
	// an unparseable URL, an unsupported method or an unencodable payload.
	ErrInvalidRequest = errors.New("httpclient: invalid request")

	// ErrMiddleware is matched by *MiddlewareError.
	ErrMiddleware = errors.New("httpclient: middleware failed")

	// ErrTransport is matched by *TransportError.
	ErrTransport = errors.New("httpclient: transport failure")

	// ErrDecode is matched by *DecodeError.
	ErrDecode = errors.New("httpclient: response decode failed")

	// ErrHTTPStatus is matched by every *StatusError.
	ErrHTTPStatus = errors.New("httpclient: unexpected http status")

	ErrBadRequest = errors.New("httpclient: bad request")
	ErrForbidden  = errors.New("httpclient: forbidden")
	ErrNotFound   = errors.New("httpclient: not found")
	ErrConflict   = errors.New("httpclient: conflict")

	// ErrExecutorClosed is wrapped by the *TransportError a MultiHandleExecutor
	// returns after Close.
	ErrExecutorClosed = errors.New("httpclient: executor closed")
)

// invalidRequestf and invalidConfigf wrap the sentinel itself so that both
// the standard library and cockroachdb errors.Is match it.
func invalidRequestf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidRequest, format, args...)
}

func invalidConfigf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}

// MiddlewareError reports a middleware that refused the call.
// No I/O is attempted when it is returned.
type MiddlewareError struct {
	// Index is the position of the failing middleware in the chain.
	Index int
	Err   error
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("httpclient: middleware %d: %v", e.Index, e.Err)
}

func (e *MiddlewareError) Unwrap() error { return e.Err }

func (e *MiddlewareError) Is(target error) bool { return target == ErrMiddleware }

// TransportError reports a failure below HTTP: name resolution, connect,
// TLS, timeouts, or a broken transfer. Code follows the libcurl numbering
// so that codes stay stable across client implementations.
type TransportError struct {
	Code    TransportErrorCode
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("httpclient: transport error %d (%s): %s", int(e.Code), e.Code, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func newTransportError(err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{
		Code:    classifyTransportError(err),
		Message: err.Error(),
		Err:     err,
	}
}

// rejected reports a call refused locally. cause stays reachable through
// errors.Is.
func rejected(code TransportErrorCode, cause error) *TransportError {
	return &TransportError{Code: code, Message: cause.Error(), Err: cause}
}

// DecodeError is returned when the response body cannot be decoded by the
// configured codec. The raw response is preserved unmodified.
type DecodeError struct {
	StatusCode int
	Raw        []byte
	Body       string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("httpclient: decode response body (status %d): %v", e.StatusCode, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// StatusError is returned when the response status falls outside the range
// accepted by the client's StatusPolicy.
type StatusError struct {
	StatusCode int
	Method     Method
	URL        string
	Raw        []byte
	Body       string
	Headers    []string

	kind error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: %s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// Kind returns the status subtype sentinel (ErrNotFound, ...) or
// ErrHTTPStatus when the status has no dedicated subtype.
func (e *StatusError) Kind() error {
	if e.kind == nil {
		return ErrHTTPStatus
	}
	return e.kind
}

func (e *StatusError) Is(target error) bool {
	if target == ErrHTTPStatus {
		return true
	}
	return e.kind != nil && target == e.kind
}
