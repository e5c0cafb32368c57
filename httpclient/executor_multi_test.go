package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestHandleKey(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		resolve []string
		want    string
		wantErr bool
	}{
		{
			name: "given no overrides, then keys by scheme and host",
			url:  "https://api.example.com:8443/items?x=1",
			want: "https://api.example.com:8443",
		},
		{
			name: "given overrides, then keys by the last entry's address",
			url:  "https://api.example.com/items",
			resolve: []string{
				"-api.example.com:443:10.0.0.1",
				"api.example.com:443:10.0.0.2",
			},
			want: "10.0.0.2",
		},
		{
			name:    "given last entry without address, then falls back to the url",
			url:     "http://api.example.com/",
			resolve: []string{"-api.example.com:80"},
			want:    "http://api.example.com",
		},
		{
			name:    "given malformed entry, then fails",
			url:     "http://api.example.com/",
			resolve: []string{"garbage"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := handleKey(tt.url, tt.resolve)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMultiHandleExecutor_ReusesConnections(t *testing.T) {
	srv := newTestBackend(t)
	exec := NewMultiHandleExecutor()
	defer exec.Close()

	first, err := exec.Execute(context.Background(), srv.URL+"/items", callOpts(MethodGet))
	require.NoError(t, err)
	second, err := exec.Execute(context.Background(), srv.URL+"/items", callOpts(MethodGet))
	require.NoError(t, err)

	assert.False(t, first.Info.ConnReused)
	assert.True(t, second.Info.ConnReused)
	assert.Equal(t, first.Info.LocalPort, second.Info.LocalPort)

	require.Equal(t, 1, exec.Len())
	stats := exec.Handles()[0]
	assert.Equal(t, srv.URL, stats.Key)
	assert.Equal(t, uint64(2), stats.Calls)
	assert.Equal(t, int64(0), stats.InFlight)
	assert.False(t, stats.LastUsed.IsZero())
}

func TestMultiHandleExecutor_HandlePerPinnedAddress(t *testing.T) {
	srvA := newTestBackend(t)
	u, err := url.Parse(srvA.URL)
	require.NoError(t, err)
	port := u.Port()

	// Second backend on 127.0.0.2, same port as the first.
	ln, err := net.Listen("tcp", "127.0.0.2:"+port)
	if err != nil {
		t.Skip("127.0.0.2 not usable on this host")
	}
	srvB := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("b"))
	}))
	srvB.Listener.Close()
	srvB.Listener = ln
	srvB.Start()
	defer srvB.Close()

	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	exec := NewMultiHandleExecutor()
	defer exec.Close()

	target := "http://api.internal:" + port + "/host"
	candidates := []string{"127.0.0.1", "127.0.0.2"}
	pin := func(selected string) CallOptions {
		opts := callOpts(MethodGet)
		opts.Resolve = ResolveOverrides("api.internal", []int{80, 443, portNum}, selected, candidates)
		return opts
	}

	rawA, err := exec.Execute(context.Background(), target, pin("127.0.0.1"))
	require.NoError(t, err)
	rawB, err := exec.Execute(context.Background(), target, pin("127.0.0.2"))
	require.NoError(t, err)

	assert.Equal(t, "api.internal:"+port, string(rawA.BodyBlock()))
	assert.Equal(t, "b", string(rawB.BodyBlock()))
	assert.Equal(t, "127.0.0.2", rawB.Info.PrimaryIP)

	keys := []string{}
	for _, h := range exec.Handles() {
		keys = append(keys, h.Key)
	}
	assert.Equal(t, candidates, keys)
}

func TestMultiHandleExecutor_DisposeAndClose(t *testing.T) {
	srv := newTestBackend(t)

	var mu sync.Mutex
	var disposed []string
	exec := NewMultiHandleExecutor(WithDisposeHook(func(key string) {
		mu.Lock()
		defer mu.Unlock()
		disposed = append(disposed, key)
	}))

	_, err := exec.Execute(context.Background(), srv.URL+"/items", callOpts(MethodGet))
	require.NoError(t, err)

	pinned := callOpts(MethodGet)
	u, _ := url.Parse(srv.URL)
	pinned.Resolve = []string{"pinned.invalid:" + u.Port() + ":127.0.0.1"}
	_, err = exec.Execute(context.Background(), "http://pinned.invalid:"+u.Port()+"/items", pinned)
	require.NoError(t, err)

	require.Equal(t, 2, exec.Len())

	assert.True(t, exec.Dispose("127.0.0.1"))
	assert.False(t, exec.Dispose("127.0.0.1"))
	assert.Equal(t, 1, exec.Len())

	require.NoError(t, exec.Close())
	assert.Equal(t, 0, exec.Len())
	assert.Equal(t, []string{"127.0.0.1", srv.URL}, disposed)

	_, err = exec.Execute(context.Background(), srv.URL+"/items", callOpts(MethodGet))
	assert.ErrorIs(t, err, ErrExecutorClosed)
}

func TestMultiHandleExecutor_Concurrent(t *testing.T) {
	srv := newTestBackend(t)
	exec := NewMultiHandleExecutor()
	defer exec.Close()

	const calls = 20

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < calls; i++ {
		g.Go(func() error {
			raw, err := exec.Execute(ctx, srv.URL+"/items", callOpts(MethodGet))
			if err != nil {
				return err
			}
			if raw.StatusCode != http.StatusOK {
				return &StatusError{StatusCode: raw.StatusCode}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, 1, exec.Len())
	stats := exec.Handles()[0]
	assert.Equal(t, uint64(calls), stats.Calls)
	assert.Equal(t, int64(0), stats.InFlight)
}
