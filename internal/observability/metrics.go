package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream API call rate by api (weather, forecast, geocode, places) and status.
	UpstreamCallsTotal *prometheus.CounterVec

	// External API latency. Watch for: p95 > 2s (upstream degradation), p99 > 5s (timeout risk).
	UpstreamDuration *prometheus.HistogramVec

	// Locations submitted to the batch saved-weather endpoint per request.
	BatchLocationsPerRequest prometheus.Histogram

	// Locations silently dropped from a batch response because their fetch failed.
	BatchLocationFailuresTotal prometheus.Counter

	// Photo lookups short-circuited by the open circuit breaker.
	PhotoBreakerOpenTotal prometheus.Counter

	// Saved-location cache reconciliations by outcome (success, partial, failed).
	CacheReconcileTotal *prometheus.CounterVec

	// Entries refreshed per reconciliation.
	CacheEntriesRefreshed prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream API calls",
		},
		[]string{"api", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "status"},
	)
	BatchLocationsPerRequest = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batchLocationsPerRequest",
			Help:    "Number of locations submitted per saved-weather batch request",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)
	BatchLocationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "batchLocationFailuresTotal",
			Help: "Locations omitted from a batch response because their upstream fetch failed",
		},
	)
	PhotoBreakerOpenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "photoBreakerOpenTotal",
			Help: "Photo lookups rejected because the places circuit breaker was open",
		},
	)
	CacheReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheReconcileTotal",
			Help: "Saved-location cache reconciliations by outcome",
		},
		[]string{"outcome"},
	)
	CacheEntriesRefreshed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheEntriesRefreshed",
			Help: "Saved-location cache entries refreshed by reconciliation",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration,
		BatchLocationsPerRequest, BatchLocationFailuresTotal,
		PhotoBreakerOpenTotal,
		CacheReconcileTotal, CacheEntriesRefreshed,
	)
}

// ObserveUpstreamCall records one upstream call with its status and duration.
func ObserveUpstreamCall(api, status string, d time.Duration) {
	UpstreamCallsTotal.WithLabelValues(api, status).Inc()
	UpstreamDuration.WithLabelValues(api, status).Observe(d.Seconds())
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
