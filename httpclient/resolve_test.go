package httpclient

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolveEntry(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ResolveEntry
		wantErr bool
	}{
		{
			name: "given pin, then parses host port and address",
			in:   "api.example.com:443:10.0.0.2",
			want: ResolveEntry{Host: "api.example.com", Port: "443", Address: "10.0.0.2"},
		},
		{
			name: "given eviction with address, then marks it for removal",
			in:   "-api.example.com:80:10.0.0.1",
			want: ResolveEntry{Remove: true, Host: "api.example.com", Port: "80", Address: "10.0.0.1"},
		},
		{
			name: "given eviction without address, then address is empty",
			in:   "-api.example.com:80",
			want: ResolveEntry{Remove: true, Host: "api.example.com", Port: "80"},
		},
		{
			name: "given bracketed ipv6 address, then strips the brackets",
			in:   "api.example.com:443:[fd00::1]",
			want: ResolveEntry{Host: "api.example.com", Port: "443", Address: "fd00::1"},
		},
		{name: "given pin without address, then fails", in: "api.example.com:443", wantErr: true},
		{name: "given empty host, then fails", in: ":443:10.0.0.1", wantErr: true},
		{name: "given bare host, then fails", in: "api.example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResolveEntry(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveCache_Apply(t *testing.T) {
	tests := []struct {
		name      string
		batches   [][]string
		wantAddr  string
		wantFound bool
	}{
		{
			name:      "given pin, then looks it up by host and port",
			batches:   [][]string{{"h:443:10.0.0.1"}},
			wantAddr:  "10.0.0.1",
			wantFound: true,
		},
		{
			name: "given eviction of a stale pin, then repins to the new address",
			batches: [][]string{
				{"h:443:10.0.0.1"},
				{"-h:443:10.0.0.1", "h:443:10.0.0.2"},
			},
			wantAddr:  "10.0.0.2",
			wantFound: true,
		},
		{
			name: "given eviction naming another address, then keeps the pin",
			batches: [][]string{
				{"h:443:10.0.0.2"},
				{"-h:443:10.0.0.1"},
			},
			wantAddr:  "10.0.0.2",
			wantFound: true,
		},
		{
			name: "given eviction without address, then drops the pin",
			batches: [][]string{
				{"h:443:10.0.0.2"},
				{"-h:443"},
			},
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newResolveCache()
			for _, b := range tt.batches {
				require.NoError(t, c.apply(b))
			}

			addr, ok := c.lookup("h:443")
			assert.Equal(t, tt.wantFound, ok)
			assert.Equal(t, tt.wantAddr, addr)
		})
	}
}

func TestResolveCache_ApplyIsAtomic(t *testing.T) {
	c := newResolveCache()

	err := c.apply([]string{"h:443:10.0.0.1", "garbage"})
	require.Error(t, err)
	assert.Equal(t, 0, c.len())
}

func TestPinnedDialContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	cache := newResolveCache()
	require.NoError(t, cache.apply([]string{"backend.invalid:" + port + ":127.0.0.1"}))

	dial := pinnedDialContext(cache, &net.Dialer{Timeout: time.Second})

	t.Run("given pinned host, then dials the override address", func(t *testing.T) {
		conn, err := dial(context.Background(), "tcp", "backend.invalid:"+port)
		require.NoError(t, err)
		defer conn.Close()

		assert.Equal(t, ln.Addr().String(), conn.RemoteAddr().String())
	})

	t.Run("given dial failure, then records it on the call", func(t *testing.T) {
		tr := newTransfer(CallOptions{ConnectTimeout: 200 * time.Millisecond})
		ctx := withTransfer(context.Background(), tr)

		_, err := dial(ctx, "tcp", "unpinned.invalid:"+port)
		require.Error(t, err)
		assert.Error(t, tr.handleError())
	})
}
