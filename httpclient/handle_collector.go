package httpclient

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HandleCollector exports the handle cache of a MultiHandleExecutor as
// Prometheus metrics. Values are read on every scrape.
//
// Example:
//
//	exec := httpclient.NewMultiHandleExecutor()
//	prometheus.MustRegister(httpclient.NewHandleCollector(exec, "orders"))
type HandleCollector struct {
	exec *MultiHandleExecutor

	handles  *prometheus.Desc
	calls    *prometheus.Desc
	inflight *prometheus.Desc
	pins     *prometheus.Desc
}

var _ prometheus.Collector = (*HandleCollector)(nil)

// NewHandleCollector creates a collector for exec. namespace prefixes every
// metric name and may be empty.
func NewHandleCollector(exec *MultiHandleExecutor, namespace string) *HandleCollector {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "http_client", n)
	}
	return &HandleCollector{
		exec: exec,
		handles: prometheus.NewDesc(
			name("handles"),
			"Number of cached transport handles.",
			nil, nil,
		),
		calls: prometheus.NewDesc(
			name("handle_calls_total"),
			"Calls routed through a handle.",
			[]string{"key"}, nil,
		),
		inflight: prometheus.NewDesc(
			name("handle_inflight_calls"),
			"Calls currently running on a handle.",
			[]string{"key"}, nil,
		),
		pins: prometheus.NewDesc(
			name("handle_resolve_pins"),
			"Resolve pins held by a handle.",
			[]string{"key"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *HandleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.handles
	ch <- c.calls
	ch <- c.inflight
	ch <- c.pins
}

// Collect implements prometheus.Collector.
func (c *HandleCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.exec.Handles()

	ch <- prometheus.MustNewConstMetric(c.handles, prometheus.GaugeValue, float64(len(stats)))
	for _, s := range stats {
		ch <- prometheus.MustNewConstMetric(c.calls, prometheus.CounterValue, float64(s.Calls), s.Key)
		ch <- prometheus.MustNewConstMetric(c.inflight, prometheus.GaugeValue, float64(s.InFlight), s.Key)
		ch <- prometheus.MustNewConstMetric(c.pins, prometheus.GaugeValue, float64(s.Pins), s.Key)
	}
}
