package httpclient

import "net/http"

// StatusPolicy decides which HTTP status codes count as success.
// A client uses exactly one policy for all of its calls.
type StatusPolicy int

const (
	// StatusPolicyStrict accepts 2xx only. 400, 403, 404 and 409 produce
	// StatusErrors matching ErrBadRequest, ErrForbidden, ErrNotFound and
	// ErrConflict respectively. A 3xx left over after redirect handling is
	// a failure.
	StatusPolicyStrict StatusPolicy = iota

	// StatusPolicyLenient accepts 200-399 and reports every other status as
	// a generic StatusError.
	StatusPolicyLenient
)

func (p StatusPolicy) String() string {
	switch p {
	case StatusPolicyStrict:
		return "strict"
	case StatusPolicyLenient:
		return "lenient"
	default:
		return "unknown"
	}
}

// Accepts reports whether code is a success under the policy.
func (p StatusPolicy) Accepts(code int) bool {
	if p == StatusPolicyLenient {
		return code >= http.StatusOK && code < http.StatusBadRequest
	}
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

func (p StatusPolicy) kind(code int) error {
	if p != StatusPolicyStrict {
		return nil
	}
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}
	return nil
}

// checkStatus returns a *StatusError when raw's status is rejected by p.
func checkStatus(p StatusPolicy, method Method, url string, raw *RawResponse) error {
	if p.Accepts(raw.StatusCode) {
		return nil
	}
	return &StatusError{
		StatusCode: raw.StatusCode,
		Method:     method,
		URL:        url,
		Raw:        raw.Data,
		Body:       string(raw.BodyBlock()),
		Headers:    splitHeaderBlock(raw.HeaderBlock()),
		kind:       p.kind(raw.StatusCode),
	}
}
