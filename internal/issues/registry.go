// SPDX-License-Identifier: Apache-2.0

package issues

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kusari-oss/mend/internal/core/models"
)

// Registry deduplicates issues across checks and remembers when each issue was first seen.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	firstSeen map[string]int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{firstSeen: make(map[string]int)}
}

// Collect flattens the issues of all results into a normalized, deduplicated list.
// The first occurrence of each issue wins and first-seen order is preserved.
func (r *Registry) Collect(results []models.CheckResult) []models.Issue {
	var all []models.Issue
	for _, result := range results {
		for _, issue := range result.Issues {
			if issue.OriginCheck == "" {
				issue.OriginCheck = result.CheckName
			}
			all = append(all, issue)
		}
	}
	return Dedupe(all)
}

// Observe records the iteration in which each issue first appeared
func (r *Registry) Observe(iteration int, issues []models.Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, issue := range issues {
		key := issue.Key()
		if _, ok := r.firstSeen[key]; !ok {
			r.firstSeen[key] = iteration
		}
	}
}

// FirstSeen returns the iteration an issue was first observed in
func (r *Registry) FirstSeen(issue models.Issue) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	iteration, ok := r.firstSeen[issue.Key()]
	return iteration, ok
}

// Age returns how many iterations an issue has survived as of iteration
func (r *Registry) Age(issue models.Issue, iteration int) int {
	first, ok := r.FirstSeen(issue)
	if !ok {
		return 0
	}
	return iteration - first
}

// Normalize brings an issue into canonical form
func Normalize(issue models.Issue) models.Issue {
	issue.Kind = models.NormalizeKind(issue.Kind)
	issue.Severity = models.NormalizeSeverity(issue.Severity)
	issue.Message = strings.TrimSpace(issue.Message)
	if issue.FilePath != "" {
		issue.FilePath = filepath.ToSlash(filepath.Clean(issue.FilePath))
	}
	if issue.LineNumber < 0 {
		issue.LineNumber = 0
	}
	return issue
}

// Dedupe normalizes issues and drops structural duplicates, keeping first-seen order
func Dedupe(issues []models.Issue) []models.Issue {
	seen := make(map[string]bool, len(issues))
	out := make([]models.Issue, 0, len(issues))
	for _, issue := range issues {
		issue = Normalize(issue)
		key := issue.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, issue)
	}
	return out
}

// Diff compares two passes. An issue present in both is the same logical issue.
func Diff(previous, current []models.Issue) (resolved, introduced, unchanged []models.Issue) {
	prevKeys := keySet(previous)
	currKeys := keySet(current)

	for _, issue := range previous {
		if !currKeys[issue.Key()] {
			resolved = append(resolved, issue)
		}
	}
	for _, issue := range current {
		if prevKeys[issue.Key()] {
			unchanged = append(unchanged, issue)
		} else {
			introduced = append(introduced, issue)
		}
	}
	return resolved, introduced, unchanged
}

func keySet(issues []models.Issue) map[string]bool {
	keys := make(map[string]bool, len(issues))
	for _, issue := range issues {
		keys[issue.Key()] = true
	}
	return keys
}

// Sort orders issues by file, line, kind and message for stable reporting
func Sort(issues []models.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.LineNumber != b.LineNumber {
			return a.LineNumber < b.LineNumber
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Message < b.Message
	})
}

// CountByKind tallies issues per kind
func CountByKind(issues []models.Issue) map[models.IssueKind]int {
	counts := make(map[models.IssueKind]int)
	for _, issue := range issues {
		counts[issue.Kind]++
	}
	return counts
}
