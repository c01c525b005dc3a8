// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"fmt"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the Prometheus collectors of one mend process.
// All methods are safe on a nil Recorder.
//
// Metrics:
//   - mend_checks_total{strategy,status} - Count of finished checks
//   - mend_check_duration_seconds{strategy} - Histogram of check durations
//   - mend_fix_attempts_total{fixer,outcome} - Count of fix attempts
//   - mend_iterations_total - Count of remediation iterations
//   - mend_remaining_issues - Issues left after the latest iteration
//   - mend_rollbacks_total - Count of rolled back modifications
//   - mend_backups_total - Count of backups written
type Recorder struct {
	registry *prometheus.Registry

	ChecksTotal     *prometheus.CounterVec
	CheckDuration   *prometheus.HistogramVec
	FixAttempts     *prometheus.CounterVec
	Iterations      prometheus.Counter
	RemainingIssues prometheus.Gauge
	Rollbacks       prometheus.Counter
	Backups         prometheus.Counter
}

// New creates a recorder on its own registry
func New() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,

		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mend_checks_total",
				Help: "Total number of checks finished",
			},
			[]string{"strategy", "status"},
		),

		CheckDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mend_check_duration_seconds",
				Help:    "Duration of check execution in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
			[]string{"strategy"},
		),

		FixAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mend_fix_attempts_total",
				Help: "Total number of fix attempts",
			},
			[]string{"fixer", "outcome"},
		),

		Iterations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mend_iterations_total",
				Help: "Total number of remediation iterations",
			},
		),

		RemainingIssues: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mend_remaining_issues",
				Help: "Issues remaining after the latest iteration",
			},
		),

		Rollbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mend_rollbacks_total",
				Help: "Total number of modifications rolled back",
			},
		),

		Backups: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mend_backups_total",
				Help: "Total number of backups written",
			},
		),
	}
}

// Registry returns the registry the collectors are registered on
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WaveStarted is part of the scheduler observer interface
func (r *Recorder) WaveStarted(string, int, models.ExecutionWave) {}

// CheckFinished records a check result. Skipped checks are counted but not timed.
func (r *Recorder) CheckFinished(result models.CheckResult) {
	if r == nil {
		return
	}
	r.ChecksTotal.WithLabelValues(result.Strategy, string(result.Status)).Inc()
	if result.Status != models.StatusSkipped {
		r.CheckDuration.WithLabelValues(result.Strategy).Observe(result.Duration.Seconds())
	}
}

// StrategyFinished is part of the scheduler observer interface
func (r *Recorder) StrategyFinished(string, []models.CheckResult) {}

// FixAttempt records the outcome of one fix attempt
func (r *Recorder) FixAttempt(attempt models.FixAttempt) {
	if r == nil {
		return
	}
	r.FixAttempts.WithLabelValues(attempt.FixerName, string(attempt.Outcome)).Inc()
}

// Iteration records a completed remediation iteration
func (r *Recorder) Iteration(state models.IterationState) {
	if r == nil {
		return
	}
	r.Iterations.Inc()
	r.RemainingIssues.Set(float64(state.RemainingIssueCount))
}

// Remaining sets the remaining issue gauge
func (r *Recorder) Remaining(count int) {
	if r == nil {
		return
	}
	r.RemainingIssues.Set(float64(count))
}

// Rollback records a rolled back modification
func (r *Recorder) Rollback() {
	if r == nil {
		return
	}
	r.Rollbacks.Inc()
}

// BackupWritten records a backup
func (r *Recorder) BackupWritten() {
	if r == nil {
		return
	}
	r.Backups.Inc()
}

// WriteTextfile writes the current values in the text exposition format, for the node
// exporter textfile collector
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("error writing metrics to %s: %w", path, err)
	}
	return nil
}
