package httpclient

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// AddressSelector hands out backend addresses in round-robin order.
//
// The cursor is seeded lazily on the first call to Next with the current
// Unix time modulo the pool size, so independent processes start at
// different offsets. It then advances by one per call and wraps around.
//
// AddressSelector is not safe for concurrent use.
type AddressSelector struct {
	candidates []string
	now        func() time.Time

	cursor int
	seeded bool
}

// NewAddressSelector returns a selector over candidates. now is used to seed
// the cursor; nil means time.Now.
func NewAddressSelector(candidates []string, now func() time.Time) *AddressSelector {
	if now == nil {
		now = time.Now
	}
	return &AddressSelector{
		candidates: append([]string(nil), candidates...),
		now:        now,
	}
}

// Next returns the next address. ok is false when the pool is empty.
func (s *AddressSelector) Next() (addr string, ok bool) {
	n := len(s.candidates)
	if n == 0 {
		return "", false
	}

	if !s.seeded {
		s.cursor = int(s.now().Unix() % int64(n))
		if s.cursor < 0 {
			s.cursor += n
		}
		s.seeded = true
	}

	addr = s.candidates[s.cursor]
	s.cursor = (s.cursor + 1) % n
	return addr, true
}

// Len returns the pool size.
func (s *AddressSelector) Len() int { return len(s.candidates) }

// Candidates returns a copy of the pool.
func (s *AddressSelector) Candidates() []string {
	return append([]string(nil), s.candidates...)
}

// ResolveOverrides pins host to selected on every port in ports.
//
// For each candidate other than selected it first emits an eviction entry
// "-host:port:addr" per port, so that a pin left over from a previous call
// on a reused handle is dropped. The pins "host:port:selected" follow, which
// makes the last entry always name the selected address.
func ResolveOverrides(host string, ports []int, selected string, candidates []string) []string {
	out := make([]string, 0, len(ports)*len(candidates))

	for _, c := range candidates {
		if c == selected {
			continue
		}
		for _, p := range ports {
			out = append(out, "-"+resolveEntry(host, p, c))
		}
	}
	for _, p := range ports {
		out = append(out, resolveEntry(host, p, selected))
	}

	return out
}

// overridePorts returns the ports to pin for u: 80 and 443, plus the
// explicit port of u when it is neither.
func overridePorts(u *url.URL) []int {
	ports := []int{80, 443}
	if p, err := strconv.Atoi(u.Port()); err == nil && p != 80 && p != 443 {
		ports = append(ports, p)
	}
	return ports
}

func resolveEntry(host string, port int, addr string) string {
	if ip := net.ParseIP(addr); ip != nil && ip.To4() == nil {
		addr = "[" + addr + "]"
	}
	return host + ":" + strconv.Itoa(port) + ":" + addr
}
