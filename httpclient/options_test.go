package httpclient

import (
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Empty(t, cfg.BaseURL)
	assert.Empty(t, cfg.Addresses)
	assert.Equal(t, time.Duration(0), cfg.ConnectTimeout)
	assert.Equal(t, 120*time.Second, cfg.OperationTimeout)
	assert.True(t, cfg.FollowRedirects)
	assert.Equal(t, 5, cfg.MaxRedirects)
	assert.Equal(t, StatusPolicyStrict, cfg.StatusPolicy)
	assert.Equal(t, DefaultTransportConfig(), cfg.Transport)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{
			name:   "given absolute base url, then valid",
			modify: func(c *Config) { c.BaseURL = "https://api.example.com/v1" },
		},
		{
			name: "given ipv4 and ipv6 addresses, then valid",
			modify: func(c *Config) {
				c.BaseURL = "https://api.example.com"
				c.Addresses = []string{"10.0.0.1", "fd00::3"}
			},
		},
		{
			name:    "given empty base url, then invalid",
			modify:  func(*Config) {},
			wantErr: true,
		},
		{
			name:    "given base url without scheme, then invalid",
			modify:  func(c *Config) { c.BaseURL = "api.example.com" },
			wantErr: true,
		},
		{
			name:    "given unparsable base url, then invalid",
			modify:  func(c *Config) { c.BaseURL = "http://[::1" },
			wantErr: true,
		},
		{
			name: "given hostname in addresses, then invalid",
			modify: func(c *Config) {
				c.BaseURL = "https://api.example.com"
				c.Addresses = []string{"backend.internal"}
			},
			wantErr: true,
		},
		{
			name: "given negative timeout, then invalid",
			modify: func(c *Config) {
				c.BaseURL = "https://api.example.com"
				c.ConnectTimeout = -time.Second
			},
			wantErr: true,
		},
		{
			name: "given unknown status policy, then invalid",
			modify: func(c *Config) {
				c.BaseURL = "https://api.example.com"
				c.StatusPolicy = StatusPolicy(9)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewConfig_Options(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	mp := sdkmetric.NewMeterProvider()
	logger := zerolog.Nop().With().Str("component", "test").Logger()
	now := func() time.Time { return time.Unix(7, 0) }

	addrs := []string{"10.0.0.1", "10.0.0.2"}
	cfg := newConfig(
		WithBaseURL("https://api.example.com"),
		WithAddresses(addrs...),
		WithConnectionTimeout(2*time.Second),
		WithOperationTimeout(10*time.Second),
		WithFollowRedirects(false),
		WithMaxRedirects(-1),
		WithStatusPolicy(StatusPolicyLenient),
		WithTransportConfig(LowLatencyTransportConfig()),
		WithCodec(RawCodec{}),
		WithServiceName("orders-api"),
		WithTracerProvider(tp),
		WithMeterProvider(mp),
		WithLogger(logger),
		WithDebug(true),
		WithClock(now),
		WithMultiHandle(),
	)
	addrs[0] = "changed"

	c := cfg.config
	assert.Equal(t, "https://api.example.com", c.BaseURL)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, c.Addresses)
	assert.Equal(t, 2*time.Second, c.ConnectTimeout)
	assert.Equal(t, 10*time.Second, c.OperationTimeout)
	assert.False(t, c.FollowRedirects)
	assert.Equal(t, -1, c.MaxRedirects)
	assert.Equal(t, StatusPolicyLenient, c.StatusPolicy)
	assert.Equal(t, LowLatencyTransportConfig(), c.Transport)

	assert.Equal(t, RawCodec{}, cfg.Codec)
	assert.Equal(t, "orders-api", cfg.ServiceName)
	assert.Same(t, tp, cfg.TracerProvider)
	assert.Same(t, mp, cfg.MeterProvider)
	assert.True(t, cfg.Debug)
	assert.Equal(t, time.Unix(7, 0), cfg.Clock())
	assert.NotNil(t, cfg.Metrics)

	attrs := cfg.baseAttributes()
	require.Len(t, attrs, 1)
	assert.Equal(t, "orders-api", attrs[0].Value.AsString())

	_, ok := cfg.newExecutor().(*MultiHandleExecutor)
	assert.True(t, ok)
}

func TestNewConfig_NilOptionsKeepDefaults(t *testing.T) {
	cfg := newConfig(
		WithCodec(nil),
		WithTracerProvider(nil),
		WithMeterProvider(nil),
		WithPropagators(nil),
		WithClock(nil),
	)

	assert.Equal(t, JSONCodec{}, cfg.Codec)
	assert.NotNil(t, cfg.TracerProvider)
	assert.NotNil(t, cfg.MeterProvider)
	assert.NotNil(t, cfg.Propagators)
	assert.NotNil(t, cfg.Clock)
	assert.Empty(t, cfg.baseAttributes())

	_, ok := cfg.newExecutor().(*SingleShotExecutor)
	assert.True(t, ok)
}

func TestWithConfig(t *testing.T) {
	base := DefaultConfig()
	base.BaseURL = "https://api.example.com"
	base.MaxRedirects = 1

	cfg := newConfig(WithConfig(base), WithMaxRedirects(2))

	assert.Equal(t, "https://api.example.com", cfg.config.BaseURL)
	assert.Equal(t, 2, cfg.config.MaxRedirects)
}

func TestTransportConfig_BuildTransport(t *testing.T) {
	proxy, err := url.Parse("http://proxy.internal:3128")
	require.NoError(t, err)

	tc := LowLatencyTransportConfig()
	tc.ProxyURL = proxy
	tc.MaxConnsPerHost = 8

	tr := tc.buildTransport(newResolveCache())

	assert.Equal(t, 200, tr.MaxIdleConns)
	assert.Equal(t, 50, tr.MaxIdleConnsPerHost)
	assert.Equal(t, 8, tr.MaxConnsPerHost)
	assert.Equal(t, 5*time.Second, tr.ResponseHeaderTimeout)
	assert.True(t, tr.DisableCompression)
	assert.NotNil(t, tr.DialContext)
	require.NotNil(t, tr.Proxy)

	def := DefaultTransportConfig().buildTransport(newResolveCache())
	assert.Nil(t, def.Proxy)
	assert.Equal(t, 30*time.Second, DefaultTransportConfig().DialTimeout)
}
