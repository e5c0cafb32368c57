package httpclient

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurlCommand(t *testing.T) {
	tests := []struct {
		name string
		url  string
		opts func() CallOptions
		want string
	}{
		{
			name: "given plain get, then omits the method",
			url:  "https://api.example.com/items",
			opts: func() CallOptions {
				o := DefaultCallOptions()
				o.FollowRedirects = false
				o.Timeout = 0
				return o
			},
			want: "curl 'https://api.example.com/items'",
		},
		{
			name: "given post with body, then relies on -d",
			url:  "https://api.example.com/items",
			opts: func() CallOptions {
				o := DefaultCallOptions()
				o.Method = MethodPost
				o.PostStyle = true
				o.Body = []byte(`{"name":"John"}`)
				o.FollowRedirects = false
				o.Timeout = 0
				o.Headers = []string{"Content-Type: application/json"}
				return o
			},
			want: `curl 'https://api.example.com/items' -H 'Content-Type: application/json' -d '{"name":"John"}'`,
		},
		{
			name: "given put with redirects, timeouts and pins, then renders every flag",
			url:  "https://api.example.com/users/1",
			opts: func() CallOptions {
				o := DefaultCallOptions()
				o.Method = MethodPut
				o.Body = []byte(`it's`)
				o.MaxRedirects = 3
				o.ConnectTimeout = 1500 * time.Millisecond
				o.Timeout = 10 * time.Second
				o.Resolve = []string{"-api.example.com:443:10.0.0.1", "api.example.com:443:10.0.0.2"}
				return o
			},
			want: "curl -X PUT 'https://api.example.com/users/1' -L --max-redirs 3 " +
				"--connect-timeout 1.5 --max-time 10 --resolve 'api.example.com:443:10.0.0.2' " +
				`-d 'it'\''s'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurlCommand(tt.url, tt.opts()))
		})
	}
}

func TestLogCall(t *testing.T) {
	t.Run("given success, then logs status and transfer details", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

		raw := mockRawResponse("https://api.example.com/items", http.StatusOK, nil, "ok")
		raw.Info.PrimaryIP = "10.0.0.2"

		logCall(logger, "https://api.example.com/items", callOpts(MethodGet), raw, nil, 25*time.Millisecond)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "debug", entry["level"])
		assert.Equal(t, "HTTP call", entry["message"])
		assert.Equal(t, "GET", entry["method"])
		assert.InDelta(t, 200, entry["status"], 0)
		assert.Equal(t, "10.0.0.2", entry["primary_ip"])
		assert.Contains(t, entry["curl"], "curl 'https://api.example.com/items'")
	})

	t.Run("given transport error, then logs the code", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

		err := &TransportError{Code: CodeCouldNotConnect, Message: "refused"}
		logCall(logger, "https://api.example.com/items", callOpts(MethodGet), nil, err, time.Millisecond)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "HTTP call failed", entry["message"])
		assert.InDelta(t, 7, entry["transport_code"], 0)
		assert.NotEmpty(t, entry["error"])
	})

	t.Run("given info level, then logs nothing", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

		logCall(logger, "https://api.example.com/", callOpts(MethodGet), nil, ErrRateLimited, 0)
		assert.Empty(t, buf.String())
	})
}

func TestClient_DebugLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	mock := NewMockExecutor().StubResponse(http.StatusOK, jsonHeaders, `{}`)
	c := newTestClient(t, mock, WithLogger(logger), WithDebug(true))

	_, err := c.Get(context.Background(), "/items", map[string]any{"q": "a"})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"url":"https://api.example.com/items?q=a"`)
	assert.Contains(t, buf.String(), "-H 'Content-Type: application/json'")
}
