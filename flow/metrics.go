package flow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects execution metrics for production
// monitoring. All metrics are namespaced "mediagraph_":
//
//   - inflight_dispatches (gauge): dispatches currently executing.
//   - frontier_depth (gauge): ready nodes waiting for a worker.
//   - dispatch_latency_ms (histogram): dispatch duration, labeled by
//     run_id, node_id, and status (success/error).
//   - dispatch_retries_total (counter): retry attempts, labeled by
//     run_id, node_id, and reason.
//   - node_states_total (counter): node state transitions, labeled by
//     run_id and status.
//
// Create with a dedicated registry and expose it over promhttp:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewPrometheusMetrics(registry)
//	runner := flow.NewRunner(d, flow.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// All methods are safe for concurrent use.
type PrometheusMetrics struct {
	inflightDispatches prometheus.Gauge
	frontierDepth      prometheus.Gauge
	dispatchLatency    *prometheus.HistogramVec
	retries            *prometheus.CounterVec
	nodeStates         *prometheus.CounterVec
}

// NewPrometheusMetrics registers all execution metrics with the given
// registry. A nil registry falls back to the global default registerer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		inflightDispatches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mediagraph",
			Name:      "inflight_dispatches",
			Help:      "Dispatches currently executing against generation backends",
		}),
		frontierDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mediagraph",
			Name:      "frontier_depth",
			Help:      "Ready nodes waiting for a dispatch worker",
		}),
		dispatchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mediagraph",
			Name:      "dispatch_latency_ms",
			Help:      "Dispatch duration in milliseconds, from issue to completion",
			// Generation calls run from sub-second (local nodes) to minutes (video).
			Buckets: []float64{1, 10, 100, 500, 1000, 5000, 15000, 60000, 300000},
		}, []string{"run_id", "node_id", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediagraph",
			Name:      "dispatch_retries_total",
			Help:      "Cumulative retry attempts across all dispatches",
		}, []string{"run_id", "node_id", "reason"}),
		nodeStates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediagraph",
			Name:      "node_states_total",
			Help:      "Node state transitions by resulting status",
		}, []string{"run_id", "status"}),
	}
}

// RecordDispatchLatency observes one dispatch duration. Status is
// "success" or "error".
func (pm *PrometheusMetrics) RecordDispatchLatency(runID, nodeID string, latency time.Duration, status string) {
	pm.dispatchLatency.WithLabelValues(runID, nodeID, status).Observe(float64(latency.Milliseconds()))
}

// IncrementRetries counts one retry attempt with its cause
// ("rate-limited", "backend-unavailable").
func (pm *PrometheusMetrics) IncrementRetries(runID, nodeID, reason string) {
	pm.retries.WithLabelValues(runID, nodeID, reason).Inc()
}

// IncrementNodeState counts a node state transition.
func (pm *PrometheusMetrics) IncrementNodeState(runID, status string) {
	pm.nodeStates.WithLabelValues(runID, status).Inc()
}

// UpdateInflightDispatches sets the inflight gauge.
func (pm *PrometheusMetrics) UpdateInflightDispatches(n int) {
	pm.inflightDispatches.Set(float64(n))
}

// UpdateFrontierDepth sets the frontier depth gauge.
func (pm *PrometheusMetrics) UpdateFrontierDepth(n int) {
	pm.frontierDepth.Set(float64(n))
}
