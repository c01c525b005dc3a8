// SPDX-License-Identifier: Apache-2.0

// Package mend assembles the orchestrator from a loaded configuration. Every component is
// constructed once here and handed to its consumers explicitly.
package mend

import (
	"context"
	"fmt"

	"github.com/kusari-oss/mend/internal/check"
	"github.com/kusari-oss/mend/internal/convergence"
	"github.com/kusari-oss/mend/internal/core/config"
	"github.com/kusari-oss/mend/internal/core/logging"
	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/fixer"
	"github.com/kusari-oss/mend/internal/issues"
	"github.com/kusari-oss/mend/internal/metrics"
	"github.com/kusari-oss/mend/internal/modifier"
	"github.com/kusari-oss/mend/internal/policy"
	"github.com/kusari-oss/mend/internal/scheduler"
	"go.uber.org/zap"
)

// Options adjusts an engine beyond what the configuration says
type Options struct {
	// DryRun scores and selects fixers without writing anything
	DryRun bool
	// MaxIterations overrides convergence.max_iterations when positive
	MaxIterations int
	// Observer receives scheduling events, e.g. a progress bar
	Observer scheduler.Observer
	// Adapter replaces the command adapter
	Adapter check.Adapter
}

// Engine holds the assembled components
type Engine struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Recorder
	Runner     *check.Runner
	Scheduler  *scheduler.StrategyScheduler
	Registry   *issues.Registry
	Classifier *policy.Classifier
	Modifier   *modifier.Modifier
	Fixers     *fixer.Table
	Router     *fixer.Router
	Controller *convergence.Controller
}

// Build wires the engine for cfg
func Build(cfg *config.Config, logger *zap.Logger, opts Options) (*Engine, error) {
	logger = logging.OrNop(logger)
	recorder := metrics.New()

	adapter := opts.Adapter
	if adapter == nil {
		adapter = check.NewCommandAdapter(cfg.ProjectDir, check.DefaultParsers(), logger)
	}
	runner := check.NewRunner(adapter, cfg.ProjectDir, config.DefaultConfigDir, cfg.BackupDir())

	observers := scheduler.Observers{recorder}
	if opts.Observer != nil {
		observers = append(observers, opts.Observer)
	}
	executor := scheduler.NewWaveExecutor(runner, cfg.Execution.MaxWorkers,
		scheduler.WithDefaultTimeout(cfg.Execution.DefaultTimeout),
		scheduler.WithLogger(logger),
		scheduler.WithObserver(observers))
	sched := scheduler.NewStrategyScheduler(executor)

	classifier, err := policy.NewClassifier(policy.Options{
		Allow:       cfg.Policy.Allow,
		Deny:        cfg.Policy.Deny,
		ReviewKinds: cfg.Policy.ReviewKinds,
		Rules:       cfg.Policy.Rules,
	})
	if err != nil {
		return nil, fmt.Errorf("error compiling policy: %w", err)
	}

	mod := modifier.New(cfg.BackupDir(),
		modifier.WithRetain(cfg.Backup.Retain),
		modifier.WithLogger(logger),
		modifier.WithMetrics(recorder))

	factory := fixer.NewFactory(fixer.FactoryContext{
		Root:         cfg.ProjectDir,
		TemplatesDir: cfg.TemplatesDir(),
		Logger:       logger,
	})
	factory.RegisterDefaultTypes()
	table, err := factory.BuildTable(cfg.Fixers)
	if err != nil {
		return nil, err
	}

	router := fixer.NewRouter(table, mod, fixer.RouterConfig{
		Root:              cfg.ProjectDir,
		FastPathThreshold: cfg.Fixing.FastPathThreshold,
		RetryBudget:       cfg.Fixing.RetryBudget,
		FixWorkers:        cfg.Fixing.FixWorkers,
		DryRun:            opts.DryRun,
	},
		fixer.WithHistory(fixer.NewHistory(cfg.Fixing.MinSamples, cfg.Fixing.StatedWeight)),
		fixer.WithLogger(logger),
		fixer.WithMetrics(recorder))

	maxIterations := cfg.Convergence.MaxIterations
	if opts.MaxIterations > 0 {
		maxIterations = opts.MaxIterations
	}
	registry := issues.NewRegistry()
	controller := convergence.New(sched, router, convergence.Config{
		Root:          cfg.ProjectDir,
		Checks:        cfg.Checks,
		MaxIterations: maxIterations,
	},
		convergence.WithClassifier(classifier),
		convergence.WithRegistry(registry),
		convergence.WithRefresher(runner),
		convergence.WithLogger(logger),
		convergence.WithMetrics(recorder))

	if table.Len() == 0 && !opts.DryRun {
		logger.Warn("no fixers configured, issues will only be reported")
	}
	logger.Debug("engine assembled",
		zap.String("project", cfg.ProjectDir),
		zap.Int("checks", len(cfg.Checks)),
		zap.Strings("fixers", table.Names()),
		zap.Bool("dry_run", opts.DryRun))

	return &Engine{
		Config:     cfg,
		Logger:     logger,
		Metrics:    recorder,
		Runner:     runner,
		Scheduler:  sched,
		Registry:   registry,
		Classifier: classifier,
		Modifier:   mod,
		Fixers:     table,
		Router:     router,
		Controller: controller,
	}, nil
}

// Plan resolves the waves of every strategy without running anything
func (e *Engine) Plan() ([]scheduler.Plan, error) {
	return e.Scheduler.Plan(scheduler.Strategies(e.Config.Checks))
}

// Check runs every strategy once and returns the results and the collected issues
func (e *Engine) Check(ctx context.Context) (map[string][]models.CheckResult, []models.Issue, error) {
	if err := e.Runner.Refresh(); err != nil {
		return nil, nil, fmt.Errorf("error listing project files: %w", err)
	}
	results, err := e.Scheduler.RunAll(ctx, scheduler.Strategies(e.Config.Checks))
	if err != nil {
		return nil, nil, err
	}
	found := e.Registry.Collect(scheduler.Flatten(results))
	e.Registry.Observe(0, found)
	return results, found, nil
}

// Run executes the remediation loop
func (e *Engine) Run(ctx context.Context) (*convergence.Result, error) {
	return e.Controller.Run(ctx)
}
