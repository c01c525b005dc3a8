// SPDX-License-Identifier: Apache-2.0

package report

import (
	"io"
	"time"

	"github.com/kusari-oss/mend/internal/convergence"
	"github.com/kusari-oss/mend/internal/core/format"
	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/issues"
	"github.com/kusari-oss/mend/internal/scheduler"
)

// Summary is the reportable view of a check run or a remediation run
type Summary struct {
	RunID       string                   `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Status      models.LoopStatus        `json:"status,omitempty" yaml:"status,omitempty"`
	Iterations  int                      `json:"iterations" yaml:"iterations"`
	Baseline    int                      `json:"baseline" yaml:"baseline"`
	Duration    time.Duration            `json:"duration,omitempty" yaml:"duration,omitempty"`
	Checks      []CheckRow               `json:"checks" yaml:"checks"`
	Remaining   []IssueRow               `json:"remaining,omitempty" yaml:"remaining,omitempty"`
	NeedsReview []models.Issue           `json:"needs_review,omitempty" yaml:"needs_review,omitempty"`
	Attempts    []models.FixAttempt      `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	ByKind      map[models.IssueKind]int `json:"by_kind,omitempty" yaml:"by_kind,omitempty"`
	History     []models.IterationState  `json:"history,omitempty" yaml:"history,omitempty"`
}

// CheckRow is one check's final result
type CheckRow struct {
	Strategy string             `json:"strategy" yaml:"strategy"`
	Name     string             `json:"name" yaml:"name"`
	Status   models.CheckStatus `json:"status" yaml:"status"`
	Duration time.Duration      `json:"duration" yaml:"duration"`
	Issues   int                `json:"issues" yaml:"issues"`
	Note     string             `json:"note,omitempty" yaml:"note,omitempty"`
}

// IssueRow is a remaining issue with the number of iterations it survived
type IssueRow struct {
	models.Issue `json:",inline" yaml:",inline"`
	Age          int `json:"age" yaml:"age"`
}

// FromResult summarizes a remediation run
func FromResult(result *convergence.Result) *Summary {
	s := &Summary{
		RunID:       result.RunID,
		Status:      result.Status,
		Iterations:  result.Iterations,
		Baseline:    result.Baseline,
		Duration:    result.Duration,
		Checks:      checkRows(result.Results),
		NeedsReview: result.NeedsReview,
		Attempts:    result.Attempts,
		ByKind:      issues.CountByKind(result.Remaining),
		History:     result.History,
	}
	for _, issue := range sorted(result.Remaining) {
		s.Remaining = append(s.Remaining, IssueRow{Issue: issue, Age: result.Ages[issue.Key()]})
	}
	return s
}

// FromChecks summarizes a single check pass
func FromChecks(results map[string][]models.CheckResult, found []models.Issue) *Summary {
	s := &Summary{
		Baseline: len(found),
		Checks:   checkRows(results),
		ByKind:   issues.CountByKind(found),
	}
	for _, issue := range sorted(found) {
		s.Remaining = append(s.Remaining, IssueRow{Issue: issue})
	}
	return s
}

// sorted returns a copy of list in reporting order
func sorted(list []models.Issue) []models.Issue {
	out := append([]models.Issue(nil), list...)
	issues.Sort(out)
	return out
}

func checkRows(results map[string][]models.CheckResult) []CheckRow {
	var rows []CheckRow
	for _, result := range scheduler.Flatten(results) {
		note := result.SkipReason
		if result.Error != "" {
			note = result.Error
		}
		rows = append(rows, CheckRow{
			Strategy: result.Strategy,
			Name:     result.CheckName,
			Status:   result.Status,
			Duration: result.Duration,
			Issues:   len(result.Issues),
			Note:     note,
		})
	}
	return rows
}

// Print writes the summary to w as the console report, or encoded as yaml or json
func Print(w io.Writer, s *Summary, output string) error {
	if output == "" || output == "text" {
		return Render(w, s)
	}
	kind, err := format.ParseKind(output)
	if err != nil {
		return err
	}
	return format.Encode(w, s, kind)
}

// Write saves the summary as YAML, or JSON when path ends in .json
func Write(path string, s *Summary) error {
	return format.WriteFile(path, s, 0644)
}

// ExitCode maps a loop status to the process exit code
func ExitCode(status models.LoopStatus) int {
	switch status {
	case models.LoopConverged:
		return 0
	case models.LoopExhausted:
		return 2
	case models.LoopStalled:
		return 3
	default:
		return 1
	}
}
