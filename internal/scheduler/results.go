// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"sort"

	"github.com/kusari-oss/mend/internal/core/models"
)

// Statuses maps every check name to its status
func Statuses(results map[string][]models.CheckResult) map[string]models.CheckStatus {
	statuses := make(map[string]models.CheckStatus)
	for _, list := range results {
		for _, result := range list {
			statuses[result.CheckName] = result.Status
		}
	}
	return statuses
}

// Flatten returns all results ordered by strategy name, keeping per-strategy order
func Flatten(results map[string][]models.CheckResult) []models.CheckResult {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var flat []models.CheckResult
	for _, name := range names {
		flat = append(flat, results[name]...)
	}
	return flat
}

// AnyFailed reports whether a check ended FAILED, ERROR or TIMEOUT
func AnyFailed(results map[string][]models.CheckResult) bool {
	for _, list := range results {
		for _, result := range list {
			if result.Status.Halts() || result.Status == models.StatusTimeout {
				return true
			}
		}
	}
	return false
}

// Merge replaces the results of re-run checks in previous, keeping checks that did not
// run again. Checks new to a strategy are appended.
func Merge(previous, rerun map[string][]models.CheckResult) map[string][]models.CheckResult {
	merged := make(map[string][]models.CheckResult, len(previous))
	for strategy, list := range previous {
		replacements := make(map[string]models.CheckResult)
		for _, result := range rerun[strategy] {
			replacements[result.CheckName] = result
		}

		out := make([]models.CheckResult, 0, len(list))
		seen := make(map[string]bool)
		for _, result := range list {
			if replacement, ok := replacements[result.CheckName]; ok {
				result = replacement
			}
			seen[result.CheckName] = true
			out = append(out, result)
		}
		for _, result := range rerun[strategy] {
			if !seen[result.CheckName] {
				out = append(out, result)
			}
		}
		merged[strategy] = out
	}
	for strategy, list := range rerun {
		if _, ok := merged[strategy]; !ok {
			merged[strategy] = append([]models.CheckResult(nil), list...)
		}
	}
	return merged
}
