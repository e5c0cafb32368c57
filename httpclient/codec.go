package httpclient

import (
	"fmt"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
)

// Codec converts request payloads to bytes and response bodies to values.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)

	// ContentType is sent as the Content-Type header of every request,
	// payload or not, unless the caller supplies one. An empty value sends
	// no header.
	ContentType() string
}

var (
	_ Codec = JSONCodec{}
	_ Codec = RawCodec{}
)

// JSONCodec encodes payloads as JSON and decodes bodies into generic Go
// values: map[string]any for objects, []any for arrays, float64 for numbers.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte) (any, error) {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (JSONCodec) ContentType() string { return "application/json" }

// RawCodec passes payloads through unchanged and exposes bodies as strings.
// Accepted payloads are []byte, string and url.Values (form encoded).
type RawCodec struct{}

func (RawCodec) Encode(v any) ([]byte, error) {
	switch p := v.(type) {
	case []byte:
		return p, nil
	case string:
		return []byte(p), nil
	case url.Values:
		return []byte(p.Encode()), nil
	case fmt.Stringer:
		return []byte(p.String()), nil
	default:
		return nil, errors.Newf("raw codec cannot encode %T", v)
	}
}

func (RawCodec) Decode(data []byte) (any, error) {
	return string(data), nil
}

func (RawCodec) ContentType() string { return "" }
