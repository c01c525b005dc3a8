// SPDX-License-Identifier: Apache-2.0

package convergence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/core/workspace"
	"github.com/kusari-oss/mend/internal/fixer"
	"github.com/kusari-oss/mend/internal/graph"
	"github.com/kusari-oss/mend/internal/issues"
	"github.com/kusari-oss/mend/internal/metrics"
	"github.com/kusari-oss/mend/internal/scheduler"
	"go.uber.org/zap"
)

// DefaultMaxIterations bounds the remediation loop when no limit is configured
const DefaultMaxIterations = 5

// Scheduler runs strategies. *scheduler.StrategyScheduler is the production implementation.
type Scheduler interface {
	RunAll(ctx context.Context, strategies []scheduler.Strategy) (map[string][]models.CheckResult, error)
}

// Router dispatches issues to fixers. *fixer.Router is the production implementation.
type Router interface {
	Route(ctx context.Context, issues []models.Issue) ([]models.FixAttempt, error)
}

// Classifier splits issues into auto-fixable ones and ones that need review
type Classifier interface {
	Partition(issues []models.Issue) (autoFix, review []models.Issue)
}

// Refresher re-reads the project file list before checks run
type Refresher interface {
	Refresh() error
}

// Config holds the loop parameters
type Config struct {
	Root          string
	Checks        []models.CheckDefinition
	MaxIterations int
}

// Result is the outcome of one remediation run. Remaining issues are always reported,
// whatever the status.
type Result struct {
	RunID       string                          `json:"run_id" yaml:"run_id"`
	Status      models.LoopStatus               `json:"status" yaml:"status"`
	Iterations  int                             `json:"iterations" yaml:"iterations"`
	Baseline    int                             `json:"baseline" yaml:"baseline"`
	Remaining   []models.Issue                  `json:"remaining,omitempty" yaml:"remaining,omitempty"`
	NeedsReview []models.Issue                  `json:"needs_review,omitempty" yaml:"needs_review,omitempty"`
	Attempts    []models.FixAttempt             `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	History     []models.IterationState         `json:"history" yaml:"history"`
	Results     map[string][]models.CheckResult `json:"results" yaml:"results"`

	// FirstSeen maps the key of every remaining issue to the iteration it appeared in;
	// Ages to the number of iterations it survived
	FirstSeen map[string]int `json:"first_seen,omitempty" yaml:"first_seen,omitempty"`
	Ages      map[string]int `json:"ages,omitempty" yaml:"ages,omitempty"`
	Duration  time.Duration  `json:"duration" yaml:"duration"`
}

// Controller drives check, fix and re-verify iterations until the issue count reaches
// zero, stops decreasing, or the iteration budget runs out
type Controller struct {
	scheduler  Scheduler
	router     Router
	classifier Classifier
	registry   *issues.Registry
	refresher  Refresher
	config     Config
	logger     *zap.Logger
	metrics    *metrics.Recorder
}

// Option configures a Controller
type Option func(*Controller)

// WithClassifier sets the auto-fix policy. Without one every issue is auto-fixable.
func WithClassifier(classifier Classifier) Option {
	return func(c *Controller) {
		if classifier != nil {
			c.classifier = classifier
		}
	}
}

// WithRegistry sets the issue registry
func WithRegistry(registry *issues.Registry) Option {
	return func(c *Controller) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// WithRefresher refreshes the project snapshot before every check pass
func WithRefresher(refresher Refresher) Option {
	return func(c *Controller) {
		c.refresher = refresher
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records iterations and remaining issue counts
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(c *Controller) {
		c.metrics = recorder
	}
}

// New creates a controller
func New(sched Scheduler, router Router, config Config, opts ...Option) *Controller {
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultMaxIterations
	}
	c := &Controller{
		scheduler:  sched,
		router:     router,
		classifier: fixAll{},
		registry:   issues.NewRegistry(),
		config:     config,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the remediation loop. Loop outcomes are reported in Result.Status; the
// error is non-nil only when checks cannot be planned or a backup cannot be written,
// in which case the partial result is returned alongside it.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{
		RunID:  uuid.NewString(),
		Status: models.LoopRunning,
	}
	log := c.logger.With(zap.String("run_id", result.RunID))
	defer func() {
		result.Duration = time.Since(start)
	}()

	strategies := scheduler.Strategies(c.config.Checks)
	results, err := c.runChecks(ctx, strategies)
	if err != nil {
		return result, fmt.Errorf("error running baseline checks: %w", err)
	}
	result.Results = results

	current := c.registry.Collect(scheduler.Flatten(results))
	c.registry.Observe(0, current)
	result.Baseline = len(current)
	c.metrics.Remaining(len(current))
	log.Info("baseline complete", zap.Int("issues", len(current)))

	if len(current) == 0 {
		result.Status = models.LoopConverged
		result.History = append(result.History, models.IterationState{
			PreviousIssueCount: models.UnknownCount,
			MaxIterations:      c.config.MaxIterations,
		})
		return result, nil
	}

	previous := models.UnknownCount
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			c.finish(result, current, iteration-1)
			return result, err
		}
		log := log.With(zap.Int("iteration", iteration))

		autoFix, review := c.classifier.Partition(current)
		result.NeedsReview = review

		attempts, err := c.router.Route(ctx, autoFix)
		result.Attempts = append(result.Attempts, attempts...)
		if err != nil {
			c.finish(result, current, iteration)
			return result, fmt.Errorf("error applying fixes in iteration %d: %w", iteration, err)
		}

		unresolved := fixer.Unresolved(autoFix, attempts)
		before := current

		touched := fixer.TouchedFiles(attempts)
		if len(touched) > 0 {
			rerun := c.affected(strategies, results, touched)
			log.Debug("re-running affected checks", zap.Strings("files", touched), zap.Int("strategies", len(rerun)))

			rerunResults, err := c.runChecks(ctx, rerun)
			if err != nil {
				c.finish(result, current, iteration)
				return result, fmt.Errorf("error re-running checks in iteration %d: %w", iteration, err)
			}
			results = scheduler.Merge(results, rerunResults)
			result.Results = results
			current = c.registry.Collect(scheduler.Flatten(results))
		}
		c.registry.Observe(iteration, current)
		resolved, introduced, unchanged := issues.Diff(before, current)

		state := models.IterationState{
			IterationNumber:     iteration,
			RemainingIssueCount: len(current),
			PreviousIssueCount:  previous,
			MaxIterations:       c.config.MaxIterations,
			Resolved:            len(resolved),
			Introduced:          len(introduced),
			Unchanged:           len(unchanged),
		}
		result.History = append(result.History, state)
		c.metrics.Iteration(state)
		c.metrics.Remaining(len(current))

		status := state.Status()
		log.Info("iteration complete",
			zap.Int("attempts", len(attempts)),
			zap.Int("unresolved", len(unresolved)),
			zap.Int("files", len(touched)),
			zap.Int("resolved", len(resolved)),
			zap.Int("introduced", len(introduced)),
			zap.Int("remaining", len(current)),
			zap.String("status", string(status)))

		if state.Terminal() {
			result.Status = status
			c.finish(result, current, iteration)
			return result, nil
		}
		previous = len(current)
	}
}

// runChecks refreshes the snapshot and runs the strategies
func (c *Controller) runChecks(ctx context.Context, strategies []scheduler.Strategy) (map[string][]models.CheckResult, error) {
	if c.refresher != nil {
		if err := c.refresher.Refresh(); err != nil {
			return nil, fmt.Errorf("error listing project files: %w", err)
		}
	}
	return c.scheduler.RunAll(ctx, strategies)
}

// affected builds the re-run strategies: checks whose file patterns match a touched file
// plus everything that transitively depends on them. A critical check still failing from
// the previous pass is re-run with them so it can halt the strategy again. Checks outside
// the subset keep their previous status as prior state.
func (c *Controller) affected(strategies []scheduler.Strategy, results map[string][]models.CheckResult, touched []string) []scheduler.Strategy {
	relative := make([]string, 0, len(touched))
	for _, path := range touched {
		relative = append(relative, workspace.Relative(c.config.Root, path))
	}
	statuses := scheduler.Statuses(results)

	var rerun []scheduler.Strategy
	for _, strategy := range strategies {
		var roots []string
		for _, def := range strategy.Checks {
			if workspace.NewMatcher(def.FilePatterns).MatchAny(relative) {
				roots = append(roots, def.Name)
			}
		}
		if len(roots) == 0 {
			continue
		}
		for _, def := range strategy.Checks {
			if def.Critical && statuses[def.Name].Halts() {
				roots = append(roots, def.Name)
			}
		}
		subset := graph.Subset(strategy.Checks, roots)
		rerun = append(rerun, scheduler.Strategy{
			Name:   strategy.Name,
			Checks: subset,
			Prior:  statuses,
		})
	}
	return rerun
}

// finish fills in the remaining issue details
func (c *Controller) finish(result *Result, current []models.Issue, iteration int) {
	result.Iterations = iteration
	result.Remaining = current
	result.FirstSeen = make(map[string]int, len(current))
	result.Ages = make(map[string]int, len(current))
	for _, issue := range current {
		if first, ok := c.registry.FirstSeen(issue); ok {
			result.FirstSeen[issue.Key()] = first
			result.Ages[issue.Key()] = c.registry.Age(issue, iteration)
		}
	}
}

// fixAll treats every issue as auto-fixable
type fixAll struct{}

func (fixAll) Partition(issues []models.Issue) ([]models.Issue, []models.Issue) {
	return issues, nil
}
