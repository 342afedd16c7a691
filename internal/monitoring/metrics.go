package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldpipe_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"pipeline", "outcome"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goldpipe_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{1, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"pipeline"},
	)

	UnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldpipe_units_total",
			Help: "Total number of units processed, by outcome",
		},
		[]string{"pipeline", "outcome"},
	)

	UnitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goldpipe_unit_duration_seconds",
			Help:    "Per-unit aggregation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"pipeline", "stage"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goldpipe_stage_duration_seconds",
			Help:    "Summary stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"pipeline", "stage"},
	)

	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldpipe_retry_attempts_total",
			Help: "Total number of retried attempts, by operation",
		},
		[]string{"pipeline", "operation"},
	)

	PendingUnits = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "goldpipe_pending_units",
			Help: "Units discovered as pending by the most recent run",
		},
		[]string{"pipeline"},
	)
)

type Metrics struct {
	enabled  bool
	pipeline string
}

func New(enabled bool, pipeline string) *Metrics {
	return &Metrics{
		enabled:  enabled,
		pipeline: pipeline,
	}
}

func (m *Metrics) isEnabled() bool {
	return m.enabled
}

// RecordRun records a finished run with its overall outcome
// ("succeeded", "failed" or "aborted").
func (m *Metrics) RecordRun(outcome string, duration time.Duration) {
	if !m.isEnabled() {
		return
	}
	RunsTotal.WithLabelValues(m.pipeline, outcome).Inc()
	RunDuration.WithLabelValues(m.pipeline).Observe(duration.Seconds())
}

// RecordUnit records one unit's outcome ("succeeded", "failed" or
// "skipped") and, for executed units, its aggregation duration.
func (m *Metrics) RecordUnit(stage, outcome string, duration time.Duration) {
	if !m.isEnabled() {
		return
	}
	UnitsTotal.WithLabelValues(m.pipeline, outcome).Inc()
	if outcome != "skipped" {
		UnitDuration.WithLabelValues(m.pipeline, stage).Observe(duration.Seconds())
	}
}

// RecordStage records a summary stage execution
func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	if !m.isEnabled() {
		return
	}
	StageDuration.WithLabelValues(m.pipeline, stage).Observe(duration.Seconds())
}

// RecordRetry counts one retried attempt of an operation
func (m *Metrics) RecordRetry(operation string) {
	if !m.isEnabled() {
		return
	}
	RetryAttemptsTotal.WithLabelValues(m.pipeline, operation).Inc()
}

// SetPendingUnits publishes the size of the pending set after discovery
func (m *Metrics) SetPendingUnits(n int) {
	if !m.isEnabled() {
		return
	}
	PendingUnits.WithLabelValues(m.pipeline).Set(float64(n))
}
