// Package metrics publishes the builder's and download pool's Prometheus
// collectors (SPEC_FULL.md §4.10). Wiring a *Collector is always optional:
// every call site accepts a nil *Collector and treats it as "don't record".
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector groups every metric syncra exposes under one registry.
type Collector struct {
	registry *prometheus.Registry

	scanModsTotal       prometheus.Counter
	scanDuration        prometheus.Histogram
	poolActiveWorkers   prometheus.Gauge
	poolBytesDownloaded *prometheus.CounterVec
	poolRateLimit       prometheus.Gauge
}

// New creates a Collector registered against a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		scanModsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncra_scan_mods_total",
			Help: "Total number of mods scanned across all builds.",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "syncra_scan_duration_seconds",
			Help:    "Duration of a full repository build's parallel mod scan.",
			Buckets: prometheus.DefBuckets,
		}),
		poolActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncra_pool_active_workers",
			Help: "Current number of active download workers.",
		}),
		poolBytesDownloaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncra_pool_bytes_downloaded_total",
			Help: "Total bytes downloaded, labeled by URL scheme and host.",
		}, []string{"scheme", "host"}),
		poolRateLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncra_pool_rate_limit_bytes",
			Help: "Current per-worker rate limit allocation in bytes/sec (0 = unlimited).",
		}),
	}
	reg.MustRegister(c.scanModsTotal, c.scanDuration, c.poolActiveWorkers, c.poolBytesDownloaded, c.poolRateLimit)
	return c
}

// Registry exposes the underlying registry, e.g. for promhttp.HandlerFor.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveScan records one build's mod count and scan duration.
func (c *Collector) ObserveScan(mods int, d time.Duration) {
	if c == nil {
		return
	}
	c.scanModsTotal.Add(float64(mods))
	c.scanDuration.Observe(d.Seconds())
}

// SetActiveWorkers records the download pool's current worker count.
func (c *Collector) SetActiveWorkers(n int) {
	if c == nil {
		return
	}
	c.poolActiveWorkers.Set(float64(n))
}

// AddBytesDownloaded records bytes downloaded for one scheme+host pair.
func (c *Collector) AddBytesDownloaded(scheme, host string, n int64) {
	if c == nil {
		return
	}
	c.poolBytesDownloaded.WithLabelValues(scheme, host).Add(float64(n))
}

// SetRateLimit records the current per-worker rate limit allocation (0 for
// unlimited).
func (c *Collector) SetRateLimit(bytesPerSec uint64) {
	if c == nil {
		return
	}
	c.poolRateLimit.Set(float64(bytesPerSec))
}
