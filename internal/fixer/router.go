// SPDX-License-Identifier: Apache-2.0

package fixer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/metrics"
	"github.com/kusari-oss/mend/internal/modifier"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Routing defaults
const (
	DefaultFastPathThreshold = 0.7
	DefaultRetryBudget       = 2
	DefaultFixWorkers        = 4
)

// Applier writes proposed content. *modifier.Modifier is the production implementation.
type Applier interface {
	Apply(ctx context.Context, path string, content []byte, validate modifier.Validator) (*modifier.ApplyResult, error)
}

// RouterConfig holds the routing knobs
type RouterConfig struct {
	// Root resolves relative proposal paths
	Root              string
	FastPathThreshold float64
	RetryBudget       int
	FixWorkers        int
	// DryRun scores and selects fixers without proposing or applying anything
	DryRun bool
}

// Router sends issues to fixers and applies their proposals
type Router struct {
	table   *Table
	applier Applier
	history *History
	config  RouterConfig
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithHistory sets the outcome history used for the confidence blend
func WithHistory(history *History) RouterOption {
	return func(r *Router) {
		if history != nil {
			r.history = history
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records fix attempts
func WithMetrics(recorder *metrics.Recorder) RouterOption {
	return func(r *Router) {
		r.metrics = recorder
	}
}

// NewRouter creates a router over a frozen table
func NewRouter(table *Table, applier Applier, config RouterConfig, opts ...RouterOption) *Router {
	if config.FastPathThreshold <= 0 || config.FastPathThreshold > 1 {
		config.FastPathThreshold = DefaultFastPathThreshold
	}
	if config.RetryBudget < 0 {
		config.RetryBudget = DefaultRetryBudget
	}
	if config.FixWorkers <= 0 {
		config.FixWorkers = DefaultFixWorkers
	}
	r := &Router{
		table:   table,
		applier: applier,
		history: NewHistory(DefaultMinSamples, DefaultStatedWeight),
		config:  config,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Candidate is a fixer with its effective confidence for one issue
type Candidate struct {
	Capability Capability
	Stated     float64
	Confidence float64
}

// Rank scores every registered fixer for the issue and returns the ones to try, in
// order. A top confidence at or above the fast path threshold selects that fixer alone;
// otherwise every fixer scoring above zero is returned, most confident first.
func (r *Router) Rank(issue models.Issue) []Candidate {
	var candidates []Candidate
	for _, capability := range r.table.Candidates(issue.Kind) {
		stated := clamp(capability.Score(issue))
		if stated <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			Capability: capability,
			Stated:     stated,
			Confidence: r.history.Blend(capability.Name(), stated),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Capability.Name() < candidates[j].Capability.Name()
	})

	if len(candidates) > 0 && candidates[0].Confidence >= r.config.FastPathThreshold {
		return candidates[:1]
	}
	return candidates
}

// Route dispatches every issue. Issues on different files run concurrently; issues on
// the same file run one after another. Issues no fixer scores produce no attempt.
// Only a backup write failure stops routing; it is returned with the attempts made so far.
func (r *Router) Route(ctx context.Context, issues []models.Issue) ([]models.FixAttempt, error) {
	groups := groupByFile(issues)
	collected := make([][]models.FixAttempt, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.FixWorkers)

	for i, group := range groups {
		g.Go(func() error {
			for _, issue := range group {
				if gctx.Err() != nil {
					return nil
				}
				attempts, err := r.routeIssue(gctx, issue)
				collected[i] = append(collected[i], attempts...)
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()

	var attempts []models.FixAttempt
	for _, list := range collected {
		attempts = append(attempts, list...)
	}
	return attempts, err
}

// routeIssue walks the candidate chain until a fixer succeeds
func (r *Router) routeIssue(ctx context.Context, issue models.Issue) ([]models.FixAttempt, error) {
	log := r.logger.With(zap.String("issue", issue.Key()))

	candidates := r.Rank(issue)
	if len(candidates) == 0 {
		log.Debug("no fixer for issue")
		return nil, nil
	}

	if r.config.DryRun {
		top := candidates[0]
		return []models.FixAttempt{{
			Issue:      issue,
			FixerName:  top.Capability.Name(),
			Confidence: top.Confidence,
			Outcome:    models.OutcomeFailed,
			Error:      "dry run",
		}}, nil
	}

	var attempts []models.FixAttempt
	for _, candidate := range candidates {
		attempt, err := r.attempt(ctx, issue, candidate)
		attempts = append(attempts, attempt)
		r.history.Record(attempt.FixerName, attempt.Outcome)
		r.metrics.FixAttempt(attempt)
		log.Info("fix attempt finished",
			zap.String("fixer", attempt.FixerName),
			zap.String("outcome", string(attempt.Outcome)),
			zap.Int("tries", attempt.Tries),
			zap.Float64("confidence", attempt.Confidence))

		if err != nil {
			return attempts, err
		}
		if attempt.Outcome == models.OutcomeSucceeded || ctx.Err() != nil {
			break
		}
	}
	return attempts, nil
}

// attempt runs one fixer with its retry budget. The error is non-nil only for failures
// that must stop routing.
func (r *Router) attempt(ctx context.Context, issue models.Issue, candidate Candidate) (models.FixAttempt, error) {
	attempt := models.FixAttempt{
		Issue:      issue,
		FixerName:  candidate.Capability.Name(),
		Confidence: candidate.Confidence,
		Outcome:    models.OutcomeFailed,
	}

	for try := 0; try <= r.config.RetryBudget; try++ {
		if ctx.Err() != nil {
			attempt.Error = ctx.Err().Error()
			return attempt, nil
		}
		attempt.Tries++

		proposal, err := candidate.Capability.ProposeFix(ctx, issue)
		if err != nil {
			attempt.Error = fmt.Sprintf("error proposing fix: %v", err)
			continue
		}
		if proposal == nil {
			attempt.Error = "fixer proposed nothing"
			continue
		}

		path := r.resolve(proposal.FilePath)
		result, err := r.applier.Apply(ctx, path, proposal.Content, proposal.Validator)
		if err != nil {
			var backupErr *modifier.BackupWriteError
			if errors.As(err, &backupErr) {
				attempt.Error = err.Error()
				return attempt, err
			}
			attempt.Error = err.Error()
			if result != nil {
				attempt.Outcome = result.Outcome
				attempt.FilesTouched = []string{path}
			}
			continue
		}

		attempt.Outcome = result.Outcome
		attempt.Error = ""
		if result.Err != nil {
			attempt.Error = result.Err.Error()
		}
		if result.Outcome == models.OutcomeSucceeded {
			attempt.FilesTouched = []string{path}
			return attempt, nil
		}
		if errors.Is(result.Err, modifier.ErrNoChange) {
			// the same fixer would propose the same content again
			return attempt, nil
		}
	}
	return attempt, nil
}

func (r *Router) resolve(path string) string {
	if filepath.IsAbs(path) || r.config.Root == "" {
		return path
	}
	return filepath.Join(r.config.Root, path)
}

// groupByFile groups issues by file path in first-seen order. Issues without a path
// share one group since their fixers may write anywhere.
func groupByFile(issues []models.Issue) [][]models.Issue {
	index := make(map[string]int)
	var groups [][]models.Issue
	for _, issue := range issues {
		i, ok := index[issue.FilePath]
		if !ok {
			i = len(groups)
			index[issue.FilePath] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], issue)
	}
	return groups
}

// Unresolved returns the issues without a successful attempt
func Unresolved(issues []models.Issue, attempts []models.FixAttempt) []models.Issue {
	fixed := make(map[string]bool)
	for _, attempt := range attempts {
		if attempt.Outcome == models.OutcomeSucceeded {
			fixed[attempt.Issue.Key()] = true
		}
	}

	var out []models.Issue
	for _, issue := range issues {
		if !fixed[issue.Key()] {
			out = append(out, issue)
		}
	}
	return out
}

// TouchedFiles returns the distinct files modified by successful attempts, sorted
func TouchedFiles(attempts []models.FixAttempt) []string {
	seen := make(map[string]bool)
	var files []string
	for _, attempt := range attempts {
		if attempt.Outcome != models.OutcomeSucceeded {
			continue
		}
		for _, f := range attempt.FilesTouched {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)
	return files
}

func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
