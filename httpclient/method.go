package httpclient

import "net/http"

// Method is an HTTP verb supported by Client.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// Valid reports whether m is one of the five supported verbs.
// Matching is case-sensitive: "get" is not valid.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	}
	return false
}

// HasBody reports whether calls with this method carry an encoded payload.
func (m Method) HasBody() bool {
	return m.Valid() && m != MethodGet
}

// ParseMethod validates s and returns it as a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !m.Valid() {
		return "", invalidRequestf("unsupported method %q", s)
	}
	return m, nil
}
