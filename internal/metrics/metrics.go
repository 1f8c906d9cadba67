package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "resultgate"

var (
	SessionsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of stream sessions opened.",
		},
	)

	SessionsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Total number of stream sessions finished, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of stream sessions currently polling.",
		},
	)

	HeartbeatsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Total number of working heartbeat events emitted.",
		},
	)

	ScanErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_errors_total",
			Help:      "Total number of directory scans that reported an error.",
		},
	)

	ScanDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of one directory scan across all watch patterns.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	SessionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall-clock duration of a stream session, labeled by outcome.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"outcome"},
	)
)

// Session outcome labels.
const (
	OutcomeCompleted    = "completed"
	OutcomeTimeout      = "timeout"
	OutcomeDisconnected = "disconnected"
)

func init() {
	prometheus.MustRegister(
		SessionsStartedTotal,
		SessionsFinishedTotal,
		ActiveSessions,
		HeartbeatsTotal,
		ScanErrorsTotal,
		ScanDurationSeconds,
		SessionDurationSeconds,
	)
}
