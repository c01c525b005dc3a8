// SPDX-License-Identifier: Apache-2.0

package report_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/kusari-oss/mend/internal/convergence"
	"github.com/kusari-oss/mend/internal/core/format"
	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	staleIssue = models.Issue{Kind: models.KindTypeError, Severity: models.SeverityHigh, Message: "undefined: foo", FilePath: "main.go", LineNumber: 12, OriginCheck: "vet"}
	newIssue   = models.Issue{Kind: models.KindFormatting, Severity: models.SeverityLow, Message: "not formatted", FilePath: "util.go", OriginCheck: "gofmt"}
	reviewOnly = models.Issue{Kind: models.KindSecurity, Severity: models.SeverityCritical, Message: "hardcoded token", FilePath: "config.go", OriginCheck: "gosec"}
)

func sampleResult() *convergence.Result {
	return &convergence.Result{
		RunID:       "3f1c8a2e-0000-4000-8000-000000000000",
		Status:      models.LoopExhausted,
		Iterations:  3,
		Baseline:    5,
		Remaining:   []models.Issue{staleIssue, newIssue, reviewOnly},
		NeedsReview: []models.Issue{reviewOnly},
		Attempts: []models.FixAttempt{
			{Issue: newIssue, FixerName: "gofmt", Confidence: 0.95, Outcome: models.OutcomeRejectedByValidation, Tries: 3, Error: "content failed validation"},
		},
		Results: map[string][]models.CheckResult{
			"fast": {
				{CheckName: "gofmt", Strategy: "fast", Status: models.StatusFailed, Duration: 120 * time.Millisecond, Issues: []models.Issue{newIssue}},
				{CheckName: "vet", Strategy: "fast", Status: models.StatusFailed, Duration: 2 * time.Second, Issues: []models.Issue{staleIssue}},
			},
			"comprehensive": {
				{CheckName: "gosec", Strategy: "comprehensive", Status: models.StatusFailed, Issues: []models.Issue{reviewOnly}},
				{CheckName: "test", Strategy: "comprehensive", Status: models.StatusSkipped, SkipReason: "dependency build FAILED"},
			},
		},
		FirstSeen: map[string]int{
			staleIssue.Key(): 0,
			newIssue.Key():   2,
			reviewOnly.Key(): 0,
		},
		Ages: map[string]int{
			staleIssue.Key(): 3,
			newIssue.Key():   1,
			reviewOnly.Key(): 3,
		},
		History: []models.IterationState{
			{IterationNumber: 1, RemainingIssueCount: 4, PreviousIssueCount: models.UnknownCount, MaxIterations: 3, Resolved: 2, Introduced: 1, Unchanged: 3},
			{IterationNumber: 2, RemainingIssueCount: 3, PreviousIssueCount: 4, MaxIterations: 3, Resolved: 1, Unchanged: 3},
			{IterationNumber: 3, RemainingIssueCount: 3, PreviousIssueCount: 3, MaxIterations: 3, Unchanged: 3},
		},
	}
}

func TestFromResult(t *testing.T) {
	s := report.FromResult(sampleResult())

	assert.Equal(t, models.LoopExhausted, s.Status)
	require.Len(t, s.Checks, 4)
	// Strategies are ordered by name
	assert.Equal(t, "comprehensive", s.Checks[0].Strategy)
	assert.Equal(t, "dependency build FAILED", s.Checks[1].Note)
	assert.Equal(t, 1, s.Checks[2].Issues)

	// Remaining issues are ordered by file
	require.Len(t, s.Remaining, 3)
	assert.Equal(t, "config.go", s.Remaining[0].FilePath)
	assert.Equal(t, 3, s.Remaining[1].Age)
	assert.Equal(t, "util.go", s.Remaining[2].FilePath)
	assert.Equal(t, 1, s.Remaining[2].Age)
	require.Len(t, s.History, 3)
	assert.Equal(t, 2, s.History[0].Resolved)
	assert.Equal(t, 1, s.ByKind[models.KindSecurity])
}

func TestFromChecks(t *testing.T) {
	results := map[string][]models.CheckResult{
		"fast": {{CheckName: "gofmt", Strategy: "fast", Status: models.StatusFailed, Issues: []models.Issue{newIssue}}},
	}
	s := report.FromChecks(results, []models.Issue{newIssue})
	assert.Empty(t, s.Status)
	assert.Equal(t, 1, s.Baseline)
	require.Len(t, s.Remaining, 1)
	assert.Zero(t, s.Remaining[0].Age)
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, report.FromResult(sampleResult())))
	out := buf.String()

	for _, want := range []string{
		"mend run 3f1c8a2e-0000-4000-8000-000000000000",
		"EXHAUSTED",
		"Checks",
		"dependency build FAILED",
		"Remaining issues (3)",
		"main.go:12",
		"undefined: foo",
		"(age 3)",
		"Iterations",
		"RESOLVED",
		"Needs review (1)",
		"hardcoded token",
		"Fix attempts (1)",
		"REJECTED_BY_VALIDATION",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRender_Clean(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, report.FromChecks(nil, nil)))
	out := buf.String()
	assert.Contains(t, out, "no checks configured")
	assert.Contains(t, out, "Remaining issues (0)")
	assert.NotContains(t, out, "Fix attempts")
	assert.NotContains(t, out, "mend run")
	assert.NotContains(t, out, "Iterations")
}

func TestPrint(t *testing.T) {
	summary := report.FromResult(sampleResult())

	tests := []struct {
		name     string
		output   string
		contains string
		wantErr  bool
	}{
		{name: "console", output: "text", contains: "Remaining issues (3)"},
		{name: "default is console", output: "", contains: "Remaining issues (3)"},
		{name: "yaml", output: "yaml", contains: "status: EXHAUSTED"},
		{name: "json", output: "json", contains: `"status": "EXHAUSTED"`},
		{name: "unknown", output: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := report.Print(&buf, summary, tt.output)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, buf.String(), tt.contains)
		})
	}
}

func TestWrite(t *testing.T) {
	for _, name := range []string{"report.yaml", "report.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, report.Write(path, report.FromResult(sampleResult())))

			var decoded report.Summary
			require.NoError(t, format.ParseFile(path, &decoded))
			assert.Equal(t, models.LoopExhausted, decoded.Status)
			require.Len(t, decoded.Remaining, 3)
			assert.Equal(t, "undefined: foo", decoded.Remaining[0].Message)
			assert.Equal(t, 3, decoded.Remaining[0].Age)
			require.Len(t, decoded.Attempts, 1)
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		status   models.LoopStatus
		expected int
	}{
		{name: "converged", status: models.LoopConverged, expected: 0},
		{name: "exhausted", status: models.LoopExhausted, expected: 2},
		{name: "stalled", status: models.LoopStalled, expected: 3},
		{name: "unfinished", status: models.LoopRunning, expected: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, report.ExitCode(tt.status))
		})
	}
}

func TestBarProgress(t *testing.T) {
	var buf bytes.Buffer
	progress := report.NewProgressWriter(&buf, 2)

	wave := models.ExecutionWave{{Name: "gofmt"}, {Name: "vet"}}
	progress.WaveStarted("fast", 0, wave)
	progress.CheckFinished(models.CheckResult{CheckName: "gofmt", Status: models.StatusPassed})
	progress.CheckFinished(models.CheckResult{CheckName: "vet", Status: models.StatusPassed})
	// A re-run pass goes past the expected count
	progress.CheckFinished(models.CheckResult{CheckName: "vet", Status: models.StatusPassed})
	progress.StrategyFinished("fast", nil)
	progress.Finish()

	assert.Equal(t, 3, progress.Done())
	assert.NotEmpty(t, buf.String())
}

func TestNewProgress_Disabled(t *testing.T) {
	progress := report.NewProgress(false, 10)
	progress.CheckFinished(models.CheckResult{})
	progress.Finish()
	_, isBar := progress.(*report.BarProgress)
	assert.False(t, isBar)
}
