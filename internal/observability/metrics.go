package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	transportEventsTotal     *prometheus.CounterVec
	transportReconnectsTotal prometheus.Counter
	transportState           prometheus.Gauge
	transportEmitsTotal      *prometheus.CounterVec
	storeDispatchTotal       *prometheus.CounterVec
	restRequestsTotal        *prometheus.CounterVec
	restLatencySeconds       *prometheus.HistogramVec
	inspectorRequestsTotal   *prometheus.CounterVec
	inspectorLatencySeconds  *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used by the sync engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		transportEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsync_transport_events_total",
			Help: "Total number of events received over the realtime channel.",
		}, []string{"event"})

		transportReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatsync_transport_reconnect_attempts_total",
			Help: "Total number of automatic reconnect attempts.",
		})

		transportState = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatsync_transport_state",
			Help: "Current channel state (0 disconnected, 1 connecting, 2 connected, 3 failed).",
		})

		transportEmitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsync_transport_emits_total",
			Help: "Total number of fire-and-forget emits by outcome.",
		}, []string{"event", "outcome"})

		storeDispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsync_store_dispatch_total",
			Help: "Total number of store transitions by action.",
		}, []string{"action"})

		restRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsync_rest_requests_total",
			Help: "Total number of REST collaborator calls by operation and status.",
		}, []string{"operation", "status"})

		restLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatsync_rest_latency_seconds",
			Help:    "Latency distribution for REST collaborator calls.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"operation"})

		inspectorRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsync_inspector_requests_total",
			Help: "Total number of inspector HTTP requests.",
		}, []string{"method", "route", "status"})

		inspectorLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatsync_inspector_request_duration_seconds",
			Help:    "Latency distribution for inspector HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		prometheus.MustRegister(
			transportEventsTotal,
			transportReconnectsTotal,
			transportState,
			transportEmitsTotal,
			storeDispatchTotal,
			restRequestsTotal,
			restLatencySeconds,
			inspectorRequestsTotal,
			inspectorLatencySeconds,
		)
	})
}

// TransportEvents exposes the counter of inbound channel events.
func TransportEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return transportEventsTotal
}

// TransportReconnects exposes the counter of reconnect attempts.
func TransportReconnects() prometheus.Counter {
	RegisterMetrics()
	return transportReconnectsTotal
}

// TransportState exposes the channel state gauge.
func TransportState() prometheus.Gauge {
	RegisterMetrics()
	return transportState
}

// TransportEmits exposes the counter of outbound emits.
func TransportEmits() *prometheus.CounterVec {
	RegisterMetrics()
	return transportEmitsTotal
}

// StoreDispatches exposes the counter of store transitions.
func StoreDispatches() *prometheus.CounterVec {
	RegisterMetrics()
	return storeDispatchTotal
}

// RESTRequests exposes the counter of REST calls.
func RESTRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return restRequestsTotal
}

// RESTLatency exposes the latency histogram of REST calls.
func RESTLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return restLatencySeconds
}

// InspectorRequests exposes the counter of inspector requests.
func InspectorRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return inspectorRequestsTotal
}

// InspectorLatency exposes the latency histogram of inspector requests.
func InspectorLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return inspectorLatencySeconds
}
