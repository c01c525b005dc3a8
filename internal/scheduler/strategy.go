// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/graph"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Strategy is a named group of checks scheduled independently of other groups
type Strategy struct {
	Name   string
	Checks []models.CheckDefinition
	// Prior holds statuses of dependencies that ran in an earlier pass and are not
	// part of Checks
	Prior map[string]models.CheckStatus
}

// Plan is the resolved wave sequence of one strategy
type Plan struct {
	Strategy Strategy
	Waves    []models.ExecutionWave
}

// PlanError is returned when a strategy's checks cannot be ordered
type PlanError struct {
	Strategy string
	Err      error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("error planning strategy %s: %v", e.Strategy, e.Err)
}

// Unwrap returns the underlying graph error
func (e *PlanError) Unwrap() error {
	return e.Err
}

// StrategyScheduler runs strategies concurrently, each one wave after another
type StrategyScheduler struct {
	executor *WaveExecutor
	logger   *zap.Logger
	observer Observer
}

// NewStrategyScheduler creates a scheduler that runs waves through executor
func NewStrategyScheduler(executor *WaveExecutor) *StrategyScheduler {
	return &StrategyScheduler{
		executor: executor,
		logger:   executor.logger,
		observer: executor.observer,
	}
}

// Plan resolves the waves of every strategy
func (s *StrategyScheduler) Plan(strategies []Strategy) ([]Plan, error) {
	plans := make([]Plan, 0, len(strategies))
	for _, strategy := range strategies {
		waves, err := graph.ResolveWithExternal(strategy.Checks, strategy.Prior)
		if err != nil {
			return nil, &PlanError{Strategy: strategy.Name, Err: err}
		}
		plans = append(plans, Plan{Strategy: strategy, Waves: waves})
	}
	return plans, nil
}

// RunAll runs every strategy and returns their results keyed by strategy name.
// All plans are resolved before any check runs, so a graph error means nothing ran.
func (s *StrategyScheduler) RunAll(ctx context.Context, strategies []Strategy) (map[string][]models.CheckResult, error) {
	plans, err := s.Plan(strategies)
	if err != nil {
		return nil, err
	}

	collected := make([][]models.CheckResult, len(plans))

	var g errgroup.Group
	for i, plan := range plans {
		g.Go(func() error {
			collected[i] = s.runPlan(ctx, plan)
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[string][]models.CheckResult, len(plans))
	for i, plan := range plans {
		results[plan.Strategy.Name] = collected[i]
	}
	return results, nil
}

// runPlan sequences one strategy's waves. A halting critical check stops later waves
// from starting; their checks are reported as skipped.
func (s *StrategyScheduler) runPlan(ctx context.Context, plan Plan) []models.CheckResult {
	name := plan.Strategy.Name
	log := s.logger.With(zap.String("strategy", name))

	statuses := make(map[string]models.CheckStatus, len(plan.Strategy.Prior))
	for check, status := range plan.Strategy.Prior {
		statuses[check] = status
	}

	var results []models.CheckResult
	haltedBy := ""

	for index, wave := range plan.Waves {
		if haltedBy == "" && ctx.Err() != nil {
			haltedBy = "run cancelled"
		}
		if haltedBy != "" {
			for _, def := range wave {
				skipped := models.CheckResult{
					CheckName:  def.Name,
					Strategy:   name,
					Status:     models.StatusSkipped,
					SkipReason: haltedBy,
				}
				results = append(results, skipped)
				s.observer.CheckFinished(skipped)
			}
			continue
		}

		log.Debug("wave started", zap.Int("wave", index), zap.Strings("checks", wave.Names()))
		s.observer.WaveStarted(name, index, wave)

		waveResults := s.executor.Execute(ctx, name, wave, statuses)
		for i, result := range waveResults {
			statuses[result.CheckName] = result.Status
			if haltedBy == "" && wave[i].Critical && result.Status.Halts() {
				haltedBy = fmt.Sprintf("strategy halted by critical check %s", result.CheckName)
				log.Warn("critical check halted strategy", zap.String("check", result.CheckName), zap.String("status", string(result.Status)))
			}
		}
		results = append(results, waveResults...)
	}

	s.observer.StrategyFinished(name, results)
	return results
}

// Strategies groups checks by stage into strategies in stage order
func Strategies(defs []models.CheckDefinition) []Strategy {
	var strategies []Strategy
	for _, stage := range []models.Stage{models.StageFast, models.StageComprehensive} {
		var checks []models.CheckDefinition
		for _, def := range defs {
			if def.Stage == stage {
				checks = append(checks, def)
			}
		}
		if len(checks) > 0 {
			strategies = append(strategies, Strategy{Name: stage.StrategyName(), Checks: checks})
		}
	}
	return strategies
}
