package httpclient

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodec(t *testing.T) {
	c := JSONCodec{}

	tests := []struct {
		name string
		in   any
		want any
	}{
		{
			name: "given object, then decodes to map with float numbers",
			in:   map[string]any{"id": 1, "name": "John"},
			want: map[string]any{"id": float64(1), "name": "John"},
		},
		{
			name: "given list, then decodes to slice",
			in:   []any{"a", true, nil},
			want: []any{"a", true, nil},
		},
		{
			name: "given string, then decodes to string",
			in:   "hello",
			want: "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := c.Encode(tt.in)
			require.NoError(t, err)

			got, err := c.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "application/json", c.ContentType())
}

func TestJSONCodec_DecodeInvalid(t *testing.T) {
	_, err := JSONCodec{}.Decode([]byte("<html>"))
	assert.Error(t, err)
}

func TestRawCodec(t *testing.T) {
	c := RawCodec{}

	tests := []struct {
		name    string
		in      any
		want    []byte
		wantErr bool
	}{
		{name: "given bytes, then passes them through", in: []byte{0x01, 0x02}, want: []byte{0x01, 0x02}},
		{name: "given string, then uses its bytes", in: "a=b", want: []byte("a=b")},
		{name: "given form values, then form encodes them", in: url.Values{"b": {"2"}, "a": {"1"}}, want: []byte("a=1&b=2")},
		{name: "given map, then fails", in: map[string]any{"a": 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Encode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	v, err := c.Decode([]byte("plain text"))
	require.NoError(t, err)
	assert.Equal(t, "plain text", v)
	assert.Empty(t, c.ContentType())
}
