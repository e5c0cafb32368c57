package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
)

// TransportErrorCode identifies the class of a transport failure.
// Values match the libcurl error numbers of the same meaning.
type TransportErrorCode int

const (
	CodeUnknown                TransportErrorCode = -1
	CodeOK                     TransportErrorCode = 0
	CodeUnsupportedProtocol    TransportErrorCode = 1
	CodeURLMalformat           TransportErrorCode = 3
	CodeCouldNotResolveHost    TransportErrorCode = 6
	CodeCouldNotConnect        TransportErrorCode = 7
	CodeOperationTimedOut      TransportErrorCode = 28
	CodeSSLConnectError        TransportErrorCode = 35
	CodeAbortedByCallback      TransportErrorCode = 42
	CodeTooManyRedirects       TransportErrorCode = 47
	CodeGotNothing             TransportErrorCode = 52
	CodeSendError              TransportErrorCode = 55
	CodeRecvError              TransportErrorCode = 56
	CodePeerFailedVerification TransportErrorCode = 60
)

// Codes below CodeUnknown have no libcurl counterpart. They mark calls a
// client-side executor refused before any I/O.
const (
	CodeCircuitOpen    TransportErrorCode = -2
	CodeRateLimited    TransportErrorCode = -3
	CodeExecutorClosed TransportErrorCode = -4
)

func (c TransportErrorCode) String() string {
	switch c {
	case CodeOK:
		return "no error"
	case CodeUnsupportedProtocol:
		return "unsupported protocol"
	case CodeURLMalformat:
		return "url malformed"
	case CodeCouldNotResolveHost:
		return "could not resolve host"
	case CodeCouldNotConnect:
		return "could not connect"
	case CodeOperationTimedOut:
		return "operation timed out"
	case CodeSSLConnectError:
		return "ssl connect error"
	case CodeAbortedByCallback:
		return "aborted"
	case CodeTooManyRedirects:
		return "too many redirects"
	case CodeGotNothing:
		return "empty reply from server"
	case CodeSendError:
		return "send failure"
	case CodeRecvError:
		return "receive failure"
	case CodePeerFailedVerification:
		return "peer certificate verification failed"
	case CodeCircuitOpen:
		return "circuit breaker open"
	case CodeRateLimited:
		return "rate limited"
	case CodeExecutorClosed:
		return "executor closed"
	default:
		return "unknown error"
	}
}

// Error type classifications for the error.type attribute.
const (
	ErrorTypeTimeout           = "timeout"
	ErrorTypeConnectionRefused = "connection_refused"
	ErrorTypeDNSError          = "dns_error"
	ErrorTypeTLSError          = "tls_error"
	ErrorTypeCancelled         = "cancelled"
	ErrorTypeConnectionReset   = "connection_reset"
	ErrorTypeEOF               = "eof"
	ErrorTypeRedirect          = "too_many_redirects"
	ErrorTypeInvalidRequest    = "invalid_request"
	ErrorTypeMiddleware        = "middleware"
	ErrorTypeDecode            = "decode"
	ErrorTypeCircuitOpen       = "circuit_open"
	ErrorTypeRateLimited       = "rate_limited"
	ErrorTypeExecutorClosed    = "executor_closed"
	ErrorTypeUnknown           = "unknown"
)

// errorType maps the code to the coarse error.type attribute value.
func (c TransportErrorCode) errorType() string {
	switch c {
	case CodeOperationTimedOut:
		return ErrorTypeTimeout
	case CodeCouldNotConnect:
		return ErrorTypeConnectionRefused
	case CodeCouldNotResolveHost:
		return ErrorTypeDNSError
	case CodeSSLConnectError, CodePeerFailedVerification:
		return ErrorTypeTLSError
	case CodeAbortedByCallback:
		return ErrorTypeCancelled
	case CodeRecvError, CodeSendError:
		return ErrorTypeConnectionReset
	case CodeGotNothing:
		return ErrorTypeEOF
	case CodeTooManyRedirects:
		return ErrorTypeRedirect
	case CodeCircuitOpen:
		return ErrorTypeCircuitOpen
	case CodeRateLimited:
		return ErrorTypeRateLimited
	case CodeExecutorClosed:
		return ErrorTypeExecutorClosed
	default:
		return ErrorTypeUnknown
	}
}

// errTooManyRedirects is returned from CheckRedirect when the per-call
// redirect cap is exceeded.
var errTooManyRedirects = errors.New("maximum redirects followed")

// classifyTransportError maps a net/http client error onto a TransportErrorCode.
func classifyTransportError(err error) TransportErrorCode {
	if err == nil {
		return CodeOK
	}

	if errors.Is(err, errTooManyRedirects) {
		return CodeTooManyRedirects
	}
	if errors.Is(err, context.Canceled) {
		return CodeAbortedByCallback
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeOperationTimedOut
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeOperationTimedOut
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeCouldNotResolveHost
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return CodePeerFailedVerification
	}
	var unknownAuthErr x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthErr) {
		return CodePeerFailedVerification
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return CodePeerFailedVerification
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return CodeSSLConnectError
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return CodeCouldNotConnect
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return CodeRecvError
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return CodeGotNothing
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return CodeCouldNotConnect
		case "write":
			return CodeSendError
		case "read":
			return CodeRecvError
		}
	}

	// Fallback: message patterns for errors that lost their type on the way up.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unsupported protocol scheme"):
		return CodeUnsupportedProtocol
	case strings.Contains(msg, "timeout"):
		return CodeOperationTimedOut
	case strings.Contains(msg, "no such host"):
		return CodeCouldNotResolveHost
	case strings.Contains(msg, "connection refused"):
		return CodeCouldNotConnect
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "broken pipe"):
		return CodeRecvError
	case strings.Contains(msg, "x509"), strings.Contains(msg, "certificate"):
		return CodePeerFailedVerification
	case strings.Contains(msg, "tls"):
		return CodeSSLConnectError
	case strings.Contains(msg, "eof"):
		return CodeGotNothing
	}

	return CodeUnknown
}

// errorType returns the error.type attribute value for any error produced
// by Client.
func errorType(err error) string {
	if err == nil {
		return ""
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Code.errorType()
	}
	var se *StatusError
	if errors.As(err, &se) {
		return strconv.Itoa(se.StatusCode)
	}

	switch {
	case errors.Is(err, ErrMiddleware):
		return ErrorTypeMiddleware
	case errors.Is(err, ErrDecode):
		return ErrorTypeDecode
	case errors.Is(err, ErrInvalidRequest):
		return ErrorTypeInvalidRequest
	}

	return ErrorTypeUnknown
}

// IsRetryable reports whether a caller may reasonably retry the call that
// produced err. The client itself never retries.
//
// Retryable:
//   - Transport errors, except caller cancellation, malformed URLs,
//     unsupported protocols, redirect loops, certificate failures and a
//     closed executor. An open breaker or a rate limit clears with time.
//   - 429 Too Many Requests and 5xx status errors
//
// Everything else (invalid requests, middleware and decode failures,
// remaining 4xx statuses) is permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		switch te.Code {
		case CodeAbortedByCallback, CodeURLMalformat, CodeUnsupportedProtocol,
			CodeTooManyRedirects, CodePeerFailedVerification, CodeExecutorClosed:
			return false
		default:
			return true
		}
	}

	var se *StatusError
	if errors.As(err, &se) {
		return isRetryableStatusCode(se.StatusCode)
	}

	return false
}

func isRetryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
