package httpclient

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestAddressSelector_Next(t *testing.T) {
	type args struct {
		candidates []string
		unix       int64
		calls      int
	}

	tests := []struct {
		name   string
		args   args
		want   []string
		wantOK bool
	}{
		{
			name: "given empty pool, then returns not ok",
			args: args{
				candidates: nil,
				unix:       42,
				calls:      1,
			},
			want:   []string{""},
			wantOK: false,
		},
		{
			name: "given single address, then always returns it",
			args: args{
				candidates: []string{"10.0.0.1"},
				unix:       99,
				calls:      3,
			},
			want:   []string{"10.0.0.1", "10.0.0.1", "10.0.0.1"},
			wantOK: true,
		},
		{
			name: "given clock at 7 and three addresses, then starts at index 1 and wraps",
			args: args{
				candidates: []string{"a", "b", "c"},
				unix:       7,
				calls:      4,
			},
			want:   []string{"b", "c", "a", "b"},
			wantOK: true,
		},
		{
			name: "given clock divisible by pool size, then starts at index 0",
			args: args{
				candidates: []string{"a", "b"},
				unix:       10,
				calls:      3,
			},
			want:   []string{"a", "b", "a"},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewAddressSelector(tt.args.candidates, fixedClock(tt.args.unix))

			got := make([]string, 0, tt.args.calls)
			for i := 0; i < tt.args.calls; i++ {
				addr, ok := s.Next()
				assert.Equal(t, tt.wantOK, ok)
				got = append(got, addr)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddressSelector_SeedsOnce(t *testing.T) {
	now := time.Unix(1, 0)
	s := NewAddressSelector([]string{"a", "b", "c"}, func() time.Time { return now })

	first, _ := s.Next()
	assert.Equal(t, "b", first)

	// A later clock must not reseed the cursor.
	now = time.Unix(0, 0)
	second, _ := s.Next()
	assert.Equal(t, "c", second)
}

func TestAddressSelector_CandidatesCopy(t *testing.T) {
	in := []string{"a", "b"}
	s := NewAddressSelector(in, nil)
	in[0] = "z"

	got := s.Candidates()
	got[1] = "y"

	assert.Equal(t, []string{"a", "b"}, s.Candidates())
	assert.Equal(t, 2, s.Len())
}

func TestResolveOverrides(t *testing.T) {
	type args struct {
		host       string
		ports      []int
		selected   string
		candidates []string
	}

	tests := []struct {
		name string
		args args
		want []string
	}{
		{
			name: "given two candidates, then evicts the other before pinning the selected",
			args: args{
				host:       "api.example.com",
				ports:      []int{80, 443},
				selected:   "10.0.0.2",
				candidates: []string{"10.0.0.1", "10.0.0.2"},
			},
			want: []string{
				"-api.example.com:80:10.0.0.1",
				"-api.example.com:443:10.0.0.1",
				"api.example.com:80:10.0.0.2",
				"api.example.com:443:10.0.0.2",
			},
		},
		{
			name: "given single candidate, then only pins",
			args: args{
				host:       "api.example.com",
				ports:      []int{80, 443},
				selected:   "10.0.0.1",
				candidates: []string{"10.0.0.1"},
			},
			want: []string{
				"api.example.com:80:10.0.0.1",
				"api.example.com:443:10.0.0.1",
			},
		},
		{
			name: "given ipv6 addresses, then brackets them",
			args: args{
				host:       "api.example.com",
				ports:      []int{443},
				selected:   "fd00::2",
				candidates: []string{"fd00::1", "fd00::2"},
			},
			want: []string{
				"-api.example.com:443:[fd00::1]",
				"api.example.com:443:[fd00::2]",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveOverrides(tt.args.host, tt.args.ports, tt.args.selected, tt.args.candidates)
			assert.Equal(t, tt.want, got)

			last, err := ParseResolveEntry(got[len(got)-1])
			require.NoError(t, err)
			assert.False(t, last.Remove)
			assert.Equal(t, tt.args.selected, last.Address)
		})
	}
}

func TestOverridePorts(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want []int
	}{
		{
			name: "given no explicit port, then pins 80 and 443",
			url:  "https://api.example.com",
			want: []int{80, 443},
		},
		{
			name: "given explicit custom port, then appends it",
			url:  "https://api.example.com:8443/v1",
			want: []int{80, 443, 8443},
		},
		{
			name: "given explicit standard port, then does not duplicate it",
			url:  "http://api.example.com:443",
			want: []int{80, 443},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, overridePorts(u))
		})
	}
}
