package httpclient

import (
	"strings"
	"time"
)

// Defaults applied to every call before client settings.
const (
	DefaultOperationTimeout = 120 * time.Second
	DefaultMaxRedirects     = 5
)

// CallOptions is the complete set of transport options for one call.
// Middleware receives a CallOptions and returns the one to use instead.
type CallOptions struct {
	// Method is sent verbatim as the request method.
	Method Method

	// PostStyle marks a classic form-style POST. Only set for POST.
	PostStyle bool

	FollowRedirects bool

	// MaxRedirects caps followed redirects. Negative means unlimited.
	MaxRedirects int

	// Timeout bounds the whole call. Zero disables it.
	Timeout time.Duration

	// ConnectTimeout bounds connection establishment. Zero falls back to the
	// transport's dial timeout.
	ConnectTimeout time.Duration

	// Body is sent as-is. nil sends no body.
	Body []byte

	// Headers are "Name: Value" lines sent in order. A "Host" line
	// overrides the request host.
	Headers []string

	// Resolve holds "host:port:addr" pins and "-host:port:addr" evictions.
	Resolve []string
}

// DefaultCallOptions returns the base options every call starts from.
func DefaultCallOptions() CallOptions {
	return CallOptions{
		FollowRedirects: true,
		MaxRedirects:    DefaultMaxRedirects,
		Timeout:         DefaultOperationTimeout,
	}
}

// Clone returns a deep copy of o.
func (o CallOptions) Clone() CallOptions {
	c := o
	if o.Body != nil {
		c.Body = append([]byte(nil), o.Body...)
	}
	c.Headers = append([]string(nil), o.Headers...)
	c.Resolve = append([]string(nil), o.Resolve...)
	return c
}

// Header returns the value of the last header line named name.
// Names match case-insensitively.
func (o CallOptions) Header(name string) (string, bool) {
	value, found := "", false
	for _, line := range o.Headers {
		n, v, ok := splitHeaderLine(line)
		if ok && strings.EqualFold(n, name) {
			value, found = v, true
		}
	}
	return value, found
}

// WithHeader returns a copy of o where every line named name is replaced by
// a single "name: value" line appended at the end.
func (o CallOptions) WithHeader(name, value string) CallOptions {
	c := o.WithoutHeader(name)
	c.Headers = append(c.Headers, name+": "+value)
	return c
}

// WithoutHeader returns a copy of o without any line named name.
func (o CallOptions) WithoutHeader(name string) CallOptions {
	c := o
	c.Headers = make([]string, 0, len(o.Headers)+1)
	for _, line := range o.Headers {
		if n, _, ok := splitHeaderLine(line); ok && strings.EqualFold(n, name) {
			continue
		}
		c.Headers = append(c.Headers, line)
	}
	return c
}

// splitHeaderLine splits "Name: Value". ok is false for lines without a
// colon or with an empty name.
func splitHeaderLine(line string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}
