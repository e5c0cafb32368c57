package config

import (
	"os"
	"strings"
)

const (
	// Backend configuration
	DefaultBaseURL   = "http://localhost:8080/api"
	DefaultAddresses = "127.0.0.1"

	// Server configuration
	MetricsPort = ":2112"

	// OpenTelemetry configuration
	OTLPEndpoint   = "localhost:4317"
	ServiceName    = "sentinel-rest-example"
	ServiceVersion = "0.1.0"

	// Operation intervals
	OperationInterval = 5 // seconds
)

// Config is read from the environment, falling back to the defaults above.
type Config struct {
	BaseURL   string
	Addresses []string
	RedisAddr string
	Debug     bool
}

// Load reads ORDERS_BASE_URL, ORDERS_ADDRESSES (comma separated IPs),
// REDIS_ADDR and DEBUG.
func Load() Config {
	cfg := Config{
		BaseURL:   getenv("ORDERS_BASE_URL", DefaultBaseURL),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		Debug:     os.Getenv("DEBUG") == "1",
	}
	for _, a := range strings.Split(getenv("ORDERS_ADDRESSES", DefaultAddresses), ",") {
		if a = strings.TrimSpace(a); a != "" {
			cfg.Addresses = append(cfg.Addresses, a)
		}
	}
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
