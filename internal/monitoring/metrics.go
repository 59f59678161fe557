// Package monitoring records pipeline run metrics for Prometheus and
// evaluates alert thresholds over recent runs.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for pipeline runs.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	StageDuration *prometheus.HistogramVec
	StageAttempts *prometheus.CounterVec
	FailuresTotal *prometheus.CounterVec
	TokensTotal   *prometheus.CounterVec
}

// NewMetrics registers the pipeline instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locus_runs_total",
				Help: "Total pipeline runs by terminal status",
			},
			[]string{"status"},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "locus_run_duration_seconds",
				Help:    "Wall-clock duration of pipeline runs",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
			},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "locus_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"stage", "status"},
		),
		StageAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locus_stage_attempts_total",
				Help: "External call attempts made by stages, retries included",
			},
			[]string{"stage"},
		),
		FailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locus_stage_failures_total",
				Help: "Failed runs by failing stage and error kind",
			},
			[]string{"stage", "kind"},
		),
		TokensTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locus_tokens_total",
				Help: "Reasoner tokens consumed",
			},
			[]string{"type"}, // input, output
		),
	}
}
