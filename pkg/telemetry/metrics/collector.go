// Package metrics exposes Prometheus instrumentation for the gateway:
// upstream call outcomes per connection, catalog refresh activity, and
// streamed relay counts.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records the gateway's Prometheus metrics.
// A nil *Collector is valid and records nothing, so instrumentation can be
// disabled without conditional call sites.
type Collector struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	catalogRefreshes prometheus.Counter
	catalogEntries   prometheus.Gauge
	streamsStarted   prometheus.Counter
	streamsCompleted prometheus.Counter
}

// NewCollector creates a collector backed by its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gisaweb_upstream_requests_total",
			Help: "Outbound requests per connection index and outcome.",
		}, []string{"connection", "operation", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gisaweb_upstream_request_duration_seconds",
			Help:    "Outbound request latency per connection index.",
			Buckets: prometheus.DefBuckets,
		}, []string{"connection", "operation"}),
		catalogRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gisaweb_catalog_refreshes_total",
			Help: "Completed model catalog aggregation cycles.",
		}),
		catalogEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gisaweb_catalog_entries",
			Help: "Entries in the most recent model catalog.",
		}),
		streamsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gisaweb_relay_streams_started_total",
			Help: "Streaming responses handed to downstream consumers.",
		}),
		streamsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gisaweb_relay_streams_completed_total",
			Help: "Streaming responses fully drained and released.",
		}),
	}

	registry.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.catalogRefreshes,
		c.catalogEntries,
		c.streamsStarted,
		c.streamsCompleted,
	)

	return c
}

// Handler returns the /metrics HTTP handler.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordUpstreamRequest records one outbound call.
func (c *Collector) RecordUpstreamRequest(connection int, operation string, err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	idx := strconv.Itoa(connection)
	c.upstreamRequests.WithLabelValues(idx, operation, outcome).Inc()
	c.upstreamLatency.WithLabelValues(idx, operation).Observe(elapsed.Seconds())
}

// RecordCatalogRefresh records a completed aggregation cycle.
func (c *Collector) RecordCatalogRefresh(entries int) {
	if c == nil {
		return
	}
	c.catalogRefreshes.Inc()
	c.catalogEntries.Set(float64(entries))
}

// RecordStreamStarted records a streaming relay handoff.
func (c *Collector) RecordStreamStarted() {
	if c == nil {
		return
	}
	c.streamsStarted.Inc()
}

// RecordStreamCompleted records a fully drained stream.
func (c *Collector) RecordStreamCompleted() {
	if c == nil {
		return
	}
	c.streamsCompleted.Inc()
}
