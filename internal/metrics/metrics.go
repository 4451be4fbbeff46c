// Package metrics defines the Prometheus collectors for the canvass service
// and the HTTP middleware that feeds them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	VendorRequestsTotal  *prometheus.CounterVec
	VendorLatency        prometheus.Histogram
	LookupsTotal         *prometheus.CounterVec
	NeighborsReturned    prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		VendorRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consumer_api_requests_total",
				Help: "Calls to the consumer-records vendor by outcome (ok, upstream_error, unauthorized, timeout, error).",
			},
			[]string{"outcome"},
		),
		VendorLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "consumer_api_latency_seconds",
				Help:    "Consumer-records vendor latency in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proximity_lookups_total",
				Help: "Proximity lookups by outcome (found, target_not_found, error).",
			},
			[]string{"outcome"},
		),
		NeighborsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proximity_neighbors_returned",
				Help:    "Number of neighbors returned per successful lookup.",
				Buckets: []float64{0, 1, 5, 10, 15, 20},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "consumer_cache_hits_total",
				Help: "Vendor responses served from the Redis cache.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "consumer_cache_misses_total",
				Help: "Vendor responses not found in the Redis cache.",
			},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.VendorRequestsTotal,
		m.VendorLatency,
		m.LookupsTotal,
		m.NeighborsReturned,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
