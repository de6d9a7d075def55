package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Rebuild run metrics
	RebuildRuns        *prometheus.CounterVec
	RebuildRunDuration prometheus.Histogram

	// Per-date outcome metrics
	DaysIndexed prometheus.Counter
	DayFailures *prometheus.CounterVec
	LogsFetched prometheus.Gauge
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	if globalMetrics != nil {
		return globalMetrics
	}

	metrics := &Metrics{
		// Rebuild runs by outcome ("success" or "error") and trigger ("http" or "schedule")
		RebuildRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dialogue_index_rebuild_runs_total",
			Help: "Total number of index rebuild runs by outcome and trigger",
		}, []string{"outcome", "trigger"}),

		// Full-rebuild latency; LLM-backed analysis can take minutes over long histories
		RebuildRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dialogue_index_rebuild_duration_seconds",
			Help:    "Index rebuild run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),

		// Date-buckets successfully indexed (counter - only goes up)
		DaysIndexed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dialogue_index_days_indexed_total",
			Help: "Total number of date buckets successfully indexed",
		}),

		// Per-date failures by stage ("analyze" or "write")
		DayFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dialogue_index_day_failures_total",
			Help: "Total number of per-date failures by pipeline stage",
		}, []string{"stage"}),

		// Logs fetched on the most recent run
		LogsFetched: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dialogue_index_logs_fetched",
			Help: "Number of dialogue logs fetched by the most recent rebuild run",
		}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance (may be nil before InitMetrics)
func GetMetrics() *Metrics {
	return globalMetrics
}
