package httpclient

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// RequestOptions carries the optional parts of a call.
type RequestOptions struct {
	// Query is serialized with BuildQuery and appended to the URL.
	Query map[string]any

	// Headers are raw "Name: Value" lines. They are applied after every
	// option the client sets itself, so they win on conflict.
	Headers []string

	// Payload is encoded with the client's Codec for POST, PUT, PATCH and
	// DELETE. It is ignored for GET. A nil payload sends no body.
	Payload any
}

// RequestSpec is the normalized description of one call.
type RequestSpec struct {
	Path    string
	Method  Method
	Query   map[string]any
	Headers []string

	// Payload is the encoded body. It is nil for GET and when no payload
	// was given.
	Payload []byte
}

// newRequestSpec builds a RequestSpec, encoding the payload with codec.
func newRequestSpec(path string, method Method, opts RequestOptions, codec Codec) (RequestSpec, error) {
	spec := RequestSpec{
		Path:    path,
		Method:  method,
		Query:   opts.Query,
		Headers: append([]string(nil), opts.Headers...),
	}

	if method.HasBody() && opts.Payload != nil {
		body, err := codec.Encode(opts.Payload)
		if err != nil {
			return RequestSpec{}, errors.WithSecondaryError(
				invalidRequestf("encode %s payload: %v", method, err),
				err,
			)
		}
		spec.Payload = body
	}

	return spec, nil
}

// URL joins base, the request path and its query string. The "?" separator
// is only added when the query is non-empty.
func (s RequestSpec) URL(base string) string {
	u := base + s.Path
	if q := BuildQuery(s.Query); q != "" {
		u += "?" + q
	}
	return u
}

// validateURL checks that raw is an absolute URL with scheme and host.
func validateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.WithSecondaryError(invalidRequestf("invalid url %q", raw), err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, invalidRequestf("url %q must be absolute with scheme and host", raw)
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return nil, invalidRequestf("url %q contains whitespace", raw)
	}
	return u, nil
}

// BuildQuery serializes params as an application/x-www-form-urlencoded
// query string.
//
// Keys are emitted in sorted order so the result is deterministic.
// Nested maps and slices are flattened with bracket notation, with the
// brackets percent-encoded as part of the key:
//
//	{"filter": {"status": "open"}, "ids": [1, 2]}
//	-> filter%5Bstatus%5D=open&ids%5B0%5D=1&ids%5B1%5D=2
//
// Booleans are written as 1 and 0, nil values are skipped and spaces are
// encoded as "+". An empty or nil map yields "".
func BuildQuery(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		pairs = appendQueryPairs(pairs, k, params[k])
	}

	return strings.Join(pairs, "&")
}

func appendQueryPairs(pairs []string, key string, v any) []string {
	switch val := v.(type) {
	case nil:
		return pairs
	case string:
		return append(pairs, encodePair(key, val))
	case bool:
		if val {
			return append(pairs, encodePair(key, "1"))
		}
		return append(pairs, encodePair(key, "0"))
	case []byte:
		return append(pairs, encodePair(key, string(val)))
	case fmt.Stringer:
		return append(pairs, encodePair(key, val.String()))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return pairs
		}
		return appendQueryPairs(pairs, key, rv.Elem().Interface())

	case reflect.Map:
		type entry struct {
			key string
			val any
		}
		entries := make([]entry, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			entries = append(entries, entry{
				key: fmt.Sprint(iter.Key().Interface()),
				val: iter.Value().Interface(),
			})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
		for _, e := range entries {
			pairs = appendQueryPairs(pairs, key+"["+e.key+"]", e.val)
		}
		return pairs

	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			pairs = appendQueryPairs(pairs, key+"["+strconv.Itoa(i)+"]", rv.Index(i).Interface())
		}
		return pairs

	case reflect.Float32:
		return append(pairs, encodePair(key, strconv.FormatFloat(rv.Float(), 'f', -1, 32)))
	case reflect.Float64:
		return append(pairs, encodePair(key, strconv.FormatFloat(rv.Float(), 'f', -1, 64)))
	}

	return append(pairs, encodePair(key, fmt.Sprint(v)))
}

func encodePair(key, value string) string {
	return url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
