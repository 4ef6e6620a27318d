package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/personasim/internal/engine"
)

var (
	// RunsTotal counts finished runs by outcome status.
	// Labels: status (success, partial, failed)
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "personasim",
			Subsystem: "runs",
			Name:      "total",
			Help:      "Total number of finished simulation runs by outcome status",
		},
		[]string{"status"},
	)

	// FailuresTotal counts classified failure records across all runs.
	// Labels: category (timeout, persona_drift, sut_error, ...)
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "personasim",
			Subsystem: "runs",
			Name:      "failures_total",
			Help:      "Total number of classified failure records by category",
		},
		[]string{"category"},
	)

	// TurnsTotal counts conversation turns across all runs.
	TurnsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "personasim",
			Subsystem: "runs",
			Name:      "turns_total",
			Help:      "Total number of conversation turns across all runs",
		},
	)

	// RunDuration tracks wall-clock run time.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "personasim",
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of simulation runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// CompletionPercent tracks the field-capture completion level per run.
	CompletionPercent = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "personasim",
			Subsystem: "runs",
			Name:      "completion_percent",
			Help:      "Mandatory-field completion percentage per run",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		},
	)
)

// RecordRun updates the run metrics from a finished result.
func RecordRun(res *engine.Result) {
	if res == nil {
		return
	}
	RunsTotal.WithLabelValues(string(res.Outcome.Status)).Inc()
	TurnsTotal.Add(float64(res.Turn))
	RunDuration.Observe(res.Elapsed.Seconds())
	CompletionPercent.Observe(float64(res.Outcome.CompletionPercent))
	for _, f := range res.Outcome.Failures {
		FailuresTotal.WithLabelValues(string(f.Category)).Inc()
	}
}
