// Package monitoring exposes Prometheus metrics for the grasp service.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Command metrics
	CommandsTotal  *prometheus.CounterVec
	CycleDuration  *prometheus.HistogramVec
	CyclesInFlight prometheus.Gauge

	// External service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec
	ServiceErrors   *prometheus.CounterVec

	// Sensor metrics
	StreamMessages   *prometheus.CounterVec
	SnapshotsMatched prometheus.Counter
	SnapshotSkew     prometheus.Histogram

	// Candidate metrics
	CandidatesReturned prometheus.Histogram
	CandidatesFeasible prometheus.Histogram

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates and registers the metrics collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graspd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graspd_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		CommandsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graspd_commands_total",
				Help: "Commands handled, by command and outcome",
			},
			[]string{"command", "outcome"},
		),
		CycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graspd_cycle_duration_seconds",
				Help:    "Grasp cycle duration, by command",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"command"},
		),
		CyclesInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "graspd_cycles_in_flight",
				Help: "Grasp cycles currently executing (0 or 1)",
			},
		),

		ServiceCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graspd_service_calls_total",
				Help: "External service calls",
			},
			[]string{"service", "method"},
		),
		ServiceDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graspd_service_call_duration_seconds",
				Help:    "External service call duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "method"},
		),
		ServiceErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graspd_service_errors_total",
				Help: "External service call errors",
			},
			[]string{"service", "method"},
		),

		StreamMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graspd_stream_messages_total",
				Help: "Sensor stream messages received, by stream",
			},
			[]string{"stream"},
		),
		SnapshotsMatched: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "graspd_snapshots_matched_total",
				Help: "Synchronized sensor snapshots produced",
			},
		),
		SnapshotSkew: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "graspd_snapshot_skew_seconds",
				Help:    "Timestamp spread across streams in a matched snapshot",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5},
			},
		),

		CandidatesReturned: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "graspd_candidates_returned",
				Help:    "Candidates returned by the planner per cycle",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		CandidatesFeasible: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "graspd_candidates_feasible",
				Help:    "Candidates passing the feasibility test per cycle",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "graspd_uptime_seconds",
				Help: "Service uptime",
			},
		),
	}

	go m.trackUptime()
	return m
}

func (m *Metrics) trackUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// ObserveServiceCall records one external service call.
func (m *Metrics) ObserveServiceCall(service, method string, d time.Duration, err error) {
	m.ServiceCalls.WithLabelValues(service, method).Inc()
	m.ServiceDuration.WithLabelValues(service, method).Observe(d.Seconds())
	if err != nil {
		m.ServiceErrors.WithLabelValues(service, method).Inc()
	}
}
