package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	realtimeConnections     prometheus.Gauge
	realtimeSignalsTotal    *prometheus.CounterVec
	realtimeDroppedTotal    prometheus.Counter
	presenceFallbackWrites  prometheus.Counter
	analyticsQueriesLatency *prometheus.HistogramVec
	adminRequestsTotal      *prometheus.CounterVec
	adminLatencySeconds     *prometheus.HistogramVec
	adminErrorsTotal        *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the realtime service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		realtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Number of websocket clients currently connected.",
		})

		realtimeSignalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_signals_total",
			Help: "Total inbound realtime signals, by signal name and outcome.",
		}, []string{"signal", "outcome"})

		realtimeDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_dropped_broadcasts_total",
			Help: "Broadcast messages dropped because a client send queue was full.",
		})

		presenceFallbackWrites = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presence_fallback_writes_total",
			Help: "Presence writes served by the in-process fallback store.",
		})

		analyticsQueriesLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analytics_query_seconds",
			Help:    "Latency distribution for analytics aggregation queries.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"query"})

		adminRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_requests_total",
			Help: "Total number of admin API requests served.",
		}, []string{"method", "route", "status"})

		adminLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admin_latency_seconds",
			Help:    "Latency distribution for admin API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		adminErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_errors_total",
			Help: "Total number of error responses returned by admin endpoints.",
		}, []string{"method", "route", "status"})

		prometheus.MustRegister(
			realtimeConnections,
			realtimeSignalsTotal,
			realtimeDroppedTotal,
			presenceFallbackWrites,
			analyticsQueriesLatency,
			adminRequestsTotal,
			adminLatencySeconds,
			adminErrorsTotal,
		)
	})
}

// RealtimeConnections exposes the gauge of live websocket clients.
func RealtimeConnections() prometheus.Gauge {
	RegisterMetrics()
	return realtimeConnections
}

// RealtimeSignals exposes the counter of inbound signals.
func RealtimeSignals() *prometheus.CounterVec {
	RegisterMetrics()
	return realtimeSignalsTotal
}

// RealtimeDroppedBroadcasts exposes the dropped-broadcast counter.
func RealtimeDroppedBroadcasts() prometheus.Counter {
	RegisterMetrics()
	return realtimeDroppedTotal
}

// PresenceFallbackWrites exposes the fallback write counter.
func PresenceFallbackWrites() prometheus.Counter {
	RegisterMetrics()
	return presenceFallbackWrites
}

// AnalyticsQueryLatency exposes the aggregation latency histogram.
func AnalyticsQueryLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return analyticsQueriesLatency
}

// AdminRequests exposes the counter for admin requests.
func AdminRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return adminRequestsTotal
}

// AdminLatency exposes the latency histogram for admin requests.
func AdminLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return adminLatencySeconds
}

// AdminErrors exposes the counter for admin error responses.
func AdminErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return adminErrorsTotal
}
