package httpclient

import (
	"context"
	"net"
	"strings"
	"sync"
)

// ResolveEntry is one parsed resolve override.
//
//	"api.example.com:443:10.0.0.2"    pin
//	"-api.example.com:443:10.0.0.1"   evict, only if pinned to 10.0.0.1
//	"-api.example.com:443"            evict unconditionally
type ResolveEntry struct {
	Remove  bool
	Host    string
	Port    string
	Address string
}

// ParseResolveEntry parses s. IPv6 addresses may be bracketed.
func ParseResolveEntry(s string) (ResolveEntry, error) {
	var e ResolveEntry
	if strings.HasPrefix(s, "-") {
		e.Remove = true
		s = s[1:]
	}

	parts := strings.SplitN(s, ":", 3)
	switch {
	case len(parts) == 3:
		e.Host, e.Port, e.Address = parts[0], parts[1], strings.Trim(parts[2], "[]")
	case len(parts) == 2 && e.Remove:
		e.Host, e.Port = parts[0], parts[1]
	default:
		return ResolveEntry{}, invalidRequestf("malformed resolve entry %q", s)
	}

	if e.Host == "" || e.Port == "" || (!e.Remove && e.Address == "") {
		return ResolveEntry{}, invalidRequestf("malformed resolve entry %q", s)
	}
	return e, nil
}

func (e ResolveEntry) hostPort() string {
	return net.JoinHostPort(e.Host, e.Port)
}

// resolveCache maps "host:port" to the address a dial should use instead.
type resolveCache struct {
	mu   sync.RWMutex
	pins map[string]string
}

func newResolveCache() *resolveCache {
	return &resolveCache{pins: make(map[string]string)}
}

// apply parses and applies entries in order. Nothing is applied when any
// entry is malformed.
func (c *resolveCache) apply(entries []string) error {
	if len(entries) == 0 {
		return nil
	}

	parsed := make([]ResolveEntry, 0, len(entries))
	for _, raw := range entries {
		e, err := ParseResolveEntry(raw)
		if err != nil {
			return err
		}
		parsed = append(parsed, e)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range parsed {
		key := e.hostPort()
		if !e.Remove {
			c.pins[key] = e.Address
			continue
		}
		if e.Address == "" || c.pins[key] == e.Address {
			delete(c.pins, key)
		}
	}
	return nil
}

func (c *resolveCache) lookup(hostPort string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	addr, ok := c.pins[hostPort]
	return addr, ok
}

func (c *resolveCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pins)
}

type dialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// pinnedDialContext dials through dialer, rewriting pinned "host:port"
// targets to their override address. The connect timeout of the call in
// ctx, when set, replaces the dialer's own timeout. Dial failures are
// recorded on the call as handle-level errors.
func pinnedDialContext(cache *resolveCache, dialer *net.Dialer) dialContextFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if pinned, ok := cache.lookup(addr); ok {
			if _, port, err := net.SplitHostPort(addr); err == nil {
				addr = net.JoinHostPort(pinned, port)
			}
		}

		d := dialer
		t := transferFromContext(ctx)
		if t != nil && t.connectTimeout > 0 {
			dd := *dialer
			dd.Timeout = t.connectTimeout
			d = &dd
		}

		conn, err := d.DialContext(ctx, network, addr)
		if err != nil && t != nil {
			t.setHandleErr(err)
		}
		return conn, err
	}
}
