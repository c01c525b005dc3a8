// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kusari-oss/mend/internal/check"
	"github.com/kusari-oss/mend/internal/core/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Default values for the wave executor
const (
	DefaultMaxWorkers = 4
	DefaultTimeout    = 5 * time.Minute
)

// CheckRunner runs a single check. check.Runner is the production implementation.
type CheckRunner interface {
	Run(ctx context.Context, def models.CheckDefinition) (*check.Output, error)
}

// WaveExecutor runs the checks of one wave with bounded concurrency
type WaveExecutor struct {
	runner         CheckRunner
	maxWorkers     int
	defaultTimeout time.Duration
	logger         *zap.Logger
	observer       Observer
}

// Option configures a WaveExecutor
type Option func(*WaveExecutor)

// WithDefaultTimeout sets the timeout for checks that do not declare one
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *WaveExecutor) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *WaveExecutor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers an observer for check events
func WithObserver(observer Observer) Option {
	return func(e *WaveExecutor) {
		if observer != nil {
			e.observer = observer
		}
	}
}

// NewWaveExecutor creates a wave executor running at most maxWorkers checks at once
func NewWaveExecutor(runner CheckRunner, maxWorkers int, opts ...Option) *WaveExecutor {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	e := &WaveExecutor{
		runner:         runner,
		maxWorkers:     maxWorkers,
		defaultTimeout: DefaultTimeout,
		logger:         zap.NewNop(),
		observer:       NopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every check of the wave and returns one result per check in wave order.
// statuses holds the results of earlier waves and is only read. A blocking check whose
// dependencies did not all pass is skipped without being dispatched. One check failing
// never stops its siblings.
func (e *WaveExecutor) Execute(ctx context.Context, strategy string, wave models.ExecutionWave, statuses map[string]models.CheckStatus) []models.CheckResult {
	results := make([]models.CheckResult, len(wave))

	var g errgroup.Group
	g.SetLimit(e.maxWorkers)

	for i, def := range wave {
		if reason := skipReason(def, statuses); reason != "" {
			results[i] = models.CheckResult{
				CheckName:  def.Name,
				Strategy:   strategy,
				Status:     models.StatusSkipped,
				SkipReason: reason,
			}
			e.logger.Info("check skipped", zap.String("check", def.Name), zap.String("strategy", strategy), zap.String("reason", reason))
			e.observer.CheckFinished(results[i])
			continue
		}

		g.Go(func() error {
			results[i] = e.run(ctx, strategy, def)
			e.observer.CheckFinished(results[i])
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// skipReason explains why a blocking check must not run, or returns ""
func skipReason(def models.CheckDefinition, statuses map[string]models.CheckStatus) string {
	if !def.Blocking {
		return ""
	}
	for _, dep := range def.DependsOn {
		status, ok := statuses[dep]
		if !ok {
			return fmt.Sprintf("dependency %s did not run", dep)
		}
		if status != models.StatusPassed {
			return fmt.Sprintf("dependency %s %s", dep, status)
		}
	}
	return ""
}

// run executes one check under its timeout and maps the outcome to a status
func (e *WaveExecutor) run(ctx context.Context, strategy string, def models.CheckDefinition) (result models.CheckResult) {
	timeout := def.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result = models.CheckResult{CheckName: def.Name, Strategy: strategy}
	log := e.logger.With(zap.String("check", def.Name), zap.String("strategy", strategy))

	defer func() {
		if r := recover(); r != nil {
			err := &CheckExecutionError{Check: def.Name, Err: fmt.Errorf("panic: %v", r)}
			result.Status = models.StatusError
			result.Error = err.Error()
			result.Issues = nil
			log.Error("check panicked", zap.Error(err))
		}
		result.Duration = time.Since(start)
		log.Debug("check finished", zap.String("status", string(result.Status)), zap.Duration("duration", result.Duration))
	}()

	log.Debug("check started", zap.Duration("timeout", timeout))
	out, err := e.runner.Run(checkCtx, def)

	switch {
	case err != nil && errors.Is(checkCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		timeoutErr := &CheckTimeoutError{Check: def.Name, Timeout: timeout}
		result.Status = models.StatusTimeout
		result.Error = timeoutErr.Error()
		log.Warn("check timed out", zap.Error(timeoutErr))
	case err != nil:
		execErr := &CheckExecutionError{Check: def.Name, Err: err}
		result.Status = models.StatusError
		result.Error = execErr.Error()
		log.Warn("check errored", zap.Error(execErr))
	case out == nil:
		execErr := &CheckExecutionError{Check: def.Name, Err: errors.New("runner returned no output")}
		result.Status = models.StatusError
		result.Error = execErr.Error()
	default:
		result.RawOutput = string(out.Raw)
		result.Issues = make([]models.Issue, 0, len(out.Issues))
		for _, issue := range out.Issues {
			if issue.OriginCheck == "" {
				issue.OriginCheck = def.Name
			}
			result.Issues = append(result.Issues, issue)
		}
		if out.Failed || len(result.Issues) > 0 {
			result.Status = models.StatusFailed
		} else {
			result.Status = models.StatusPassed
		}
	}

	return result
}
