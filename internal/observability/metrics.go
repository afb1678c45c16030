// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Training metrics
	EpisodesCompleted prometheus.Counter
	GradientSteps     prometheus.Counter
	TargetSyncs       prometheus.Counter
	CurrentEpisode    prometheus.Gauge
	Epsilon           prometheus.Gauge
	ReplayBufferSize  prometheus.Gauge

	// Decision metrics
	DecisionsTotal       *prometheus.CounterVec
	ExplorationDecisions prometheus.Counter
	GateRejections       prometheus.Counter
	RewardDistribution   prometheus.Histogram
	ConfidenceLevels     prometheus.Histogram

	// Checkpoint metrics
	CheckpointWrites        *prometheus.CounterVec
	CheckpointWriteDuration prometheus.Histogram

	// Progress stream metrics
	ProgressPublished prometheus.Counter
	ProgressDropped   prometheus.Counter
	WSClients         prometheus.Gauge

	// Inference metrics
	InferenceRequests prometheus.Counter
	InferenceLatency  prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastCheckpointWritten prometheus.Gauge
	UptimeSeconds         prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "virtualanalytics"
	}

	return &Metrics{
		// Training metrics
		EpisodesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "episodes_completed_total",
			Help:      "Total number of training episodes completed",
		}),
		GradientSteps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "gradient_steps_total",
			Help:      "Total number of gradient steps applied to the online network",
		}),
		TargetSyncs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "target_syncs_total",
			Help:      "Total number of target network synchronizations",
		}),
		CurrentEpisode: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "current_episode",
			Help:      "Episode index of the running training session",
		}),
		Epsilon: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "epsilon",
			Help:      "Current exploration rate",
		}),
		ReplayBufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "replay_buffer_size",
			Help:      "Current number of transitions in the replay buffer",
		}),

		// Decision metrics
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decisions",
			Name:      "total",
			Help:      "Total number of wager decisions by action and outcome",
		}, []string{"action", "outcome"}),
		ExplorationDecisions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decisions",
			Name:      "explored_total",
			Help:      "Total number of decisions taken by exploration",
		}),
		GateRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decisions",
			Name:      "gate_rejections_total",
			Help:      "Total number of entries demoted to skip by the confidence gate",
		}),
		RewardDistribution: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "decisions",
			Name:      "reward",
			Help:      "Distribution of shaped rewards",
			Buckets:   []float64{-10, -6, -4, -2, -1, -0.5, 0, 0.5, 1, 2, 4, 6, 10},
		}),
		ConfidenceLevels: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "decisions",
			Name:      "confidence",
			Help:      "Distribution of decision confidence values",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),

		// Checkpoint metrics
		CheckpointWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkpoints",
			Name:      "writes_total",
			Help:      "Total number of checkpoint writes by status",
		}, []string{"status"}),
		CheckpointWriteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkpoints",
			Name:      "write_duration_seconds",
			Help:      "Checkpoint write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Progress stream metrics
		ProgressPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "updates_published_total",
			Help:      "Total number of progress updates published",
		}),
		ProgressDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "updates_dropped_total",
			Help:      "Total number of progress updates dropped by slow subscribers",
		}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "ws_clients",
			Help:      "Number of connected progress WebSocket clients",
		}),

		// Inference metrics
		InferenceRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "requests_total",
			Help:      "Total number of single-event inference requests",
		}),
		InferenceLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "latency_seconds",
			Help:      "Single-event inference latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastCheckpointWritten: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_checkpoint_timestamp",
			Help:      "Unix timestamp of last successful checkpoint write",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordDecision records one wager decision.
func RecordDecision(action, outcome string, explored, gated bool, confidence, reward float64) {
	DefaultMetrics.DecisionsTotal.WithLabelValues(action, outcome).Inc()
	if explored {
		DefaultMetrics.ExplorationDecisions.Inc()
	}
	if gated {
		DefaultMetrics.GateRejections.Inc()
	}
	DefaultMetrics.ConfidenceLevels.Observe(confidence)
	DefaultMetrics.RewardDistribution.Observe(reward)
}

// RecordGradientStep increments the gradient step counter.
func RecordGradientStep() {
	DefaultMetrics.GradientSteps.Inc()
}

// RecordTargetSync increments the target sync counter.
func RecordTargetSync() {
	DefaultMetrics.TargetSyncs.Inc()
}

// RecordEpisodeCompleted increments the episode counter and updates the gauge.
func RecordEpisodeCompleted(episode int) {
	DefaultMetrics.EpisodesCompleted.Inc()
	DefaultMetrics.CurrentEpisode.Set(float64(episode))
}

// UpdateTrainingGauges updates epsilon and replay buffer size.
func UpdateTrainingGauges(epsilon float64, bufferSize int) {
	DefaultMetrics.Epsilon.Set(epsilon)
	DefaultMetrics.ReplayBufferSize.Set(float64(bufferSize))
}

// RecordCheckpointWrite records a checkpoint write attempt.
func RecordCheckpointWrite(seconds float64, createdAtMs int64, err error) {
	DefaultMetrics.CheckpointWriteDuration.Observe(seconds)
	if err != nil {
		DefaultMetrics.CheckpointWrites.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.CheckpointWrites.WithLabelValues("ok").Inc()
	DefaultMetrics.LastCheckpointWritten.Set(float64(createdAtMs) / 1000)
}

// RecordProgressPublished increments the published updates counter.
func RecordProgressPublished() {
	DefaultMetrics.ProgressPublished.Inc()
}

// RecordProgressDropped adds to the dropped updates counter.
func RecordProgressDropped(n int64) {
	DefaultMetrics.ProgressDropped.Add(float64(n))
}

// RecordInference records one inference request.
func RecordInference(seconds float64) {
	DefaultMetrics.InferenceRequests.Inc()
	DefaultMetrics.InferenceLatency.Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
