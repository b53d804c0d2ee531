package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Repository metrics
	DatabasesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "turingdb_databases_total",
			Help: "Number of databases in the repository",
		},
	)

	// Operation metrics
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turingdb_operations_total",
			Help: "Total number of operations by op and outcome",
		},
		[]string{"op", "outcome"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turingdb_operation_duration_seconds",
			Help:    "Operation duration in seconds by op",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Connection metrics
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "turingdb_connections_active",
			Help: "Number of currently open client connections",
		},
	)

	ConnectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "turingdb_connections_total",
			Help: "Total number of client connections accepted",
		},
	)

	// Frame metrics
	FrameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turingdb_frame_bytes",
			Help:    "Size of protocol frames in bytes by direction",
			Buckets: prometheus.ExponentialBuckets(64, 4, 12),
		},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(DatabasesTotal)
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(FrameBytes)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
