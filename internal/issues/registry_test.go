// SPDX-License-Identifier: Apache-2.0

package issues_test

import (
	"sync"
	"testing"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/issues"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issue(kind models.IssueKind, file string, line int, message string) models.Issue {
	return models.Issue{Kind: kind, FilePath: file, LineNumber: line, Message: message, Severity: models.SeverityMedium}
}

func TestCollect(t *testing.T) {
	results := []models.CheckResult{
		{
			CheckName: "gofmt",
			Issues: []models.Issue{
				{Kind: "formatting", FilePath: "./pkg/a.go", Message: " not formatted "},
				{Kind: models.KindFormatting, FilePath: "pkg/b.go", Message: "not formatted"},
			},
		},
		{CheckName: "vet", Status: models.StatusPassed},
		{
			CheckName: "golangci-lint",
			Issues: []models.Issue{
				// Same structural issue reported by a second tool
				{Kind: models.KindFormatting, FilePath: "pkg/a.go", Message: "not formatted", Severity: models.SeverityHigh},
				{Kind: "style", FilePath: "pkg/c.go", LineNumber: 3, Message: "naming"},
			},
		},
	}

	got := issues.NewRegistry().Collect(results)
	require.Len(t, got, 3)

	assert.Equal(t, models.Issue{
		Kind:        models.KindFormatting,
		Severity:    models.SeverityMedium,
		Message:     "not formatted",
		FilePath:    "pkg/a.go",
		OriginCheck: "gofmt",
	}, got[0])
	assert.Equal(t, "pkg/b.go", got[1].FilePath)
	assert.Equal(t, models.KindUnknown, got[2].Kind)
	assert.Equal(t, "golangci-lint", got[2].OriginCheck)
}

func TestDiff(t *testing.T) {
	a := issue(models.KindFormatting, "a.go", 0, "not formatted")
	b := issue(models.KindSecurity, "b.go", 10, "weak hash")
	c := issue(models.KindDeadCode, "c.go", 4, "unused")
	movedB := issue(models.KindSecurity, "b.go", 11, "weak hash")

	tests := []struct {
		name       string
		previous   []models.Issue
		current    []models.Issue
		resolved   []models.Issue
		introduced []models.Issue
		unchanged  []models.Issue
	}{
		{
			name:      "nothing changed",
			previous:  []models.Issue{a, b},
			current:   []models.Issue{a, b},
			unchanged: []models.Issue{a, b},
		},
		{
			name:      "one fixed",
			previous:  []models.Issue{a, b, c},
			current:   []models.Issue{b, c},
			resolved:  []models.Issue{a},
			unchanged: []models.Issue{b, c},
		},
		{
			name:       "moved line is a different issue",
			previous:   []models.Issue{b},
			current:    []models.Issue{movedB},
			resolved:   []models.Issue{b},
			introduced: []models.Issue{movedB},
		},
		{
			name:       "severity change keeps identity",
			previous:   []models.Issue{a},
			current:    []models.Issue{{Kind: a.Kind, FilePath: a.FilePath, Message: a.Message, Severity: models.SeverityCritical}},
			unchanged:  []models.Issue{{Kind: a.Kind, FilePath: a.FilePath, Message: a.Message, Severity: models.SeverityCritical}},
			introduced: nil,
		},
		{
			name:       "from empty",
			current:    []models.Issue{c},
			introduced: []models.Issue{c},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, introduced, unchanged := issues.Diff(tt.previous, tt.current)
			assert.Equal(t, tt.resolved, resolved)
			assert.Equal(t, tt.introduced, introduced)
			assert.Equal(t, tt.unchanged, unchanged)
		})
	}
}

func TestObserveAndAge(t *testing.T) {
	registry := issues.NewRegistry()
	a := issue(models.KindFormatting, "a.go", 0, "not formatted")
	b := issue(models.KindSecurity, "b.go", 10, "weak hash")

	registry.Observe(0, []models.Issue{a})
	registry.Observe(2, []models.Issue{a, b})

	first, ok := registry.FirstSeen(a)
	require.True(t, ok)
	assert.Equal(t, 0, first)
	assert.Equal(t, 3, registry.Age(a, 3))
	assert.Equal(t, 1, registry.Age(b, 3))

	_, ok = registry.FirstSeen(issue(models.KindUnknown, "", 0, "never"))
	assert.False(t, ok)
}

func TestObserveConcurrent(t *testing.T) {
	registry := issues.NewRegistry()
	a := issue(models.KindFormatting, "a.go", 0, "x")

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(iteration int) {
			defer wg.Done()
			registry.Observe(iteration, []models.Issue{a})
			registry.Age(a, iteration)
		}(i)
	}
	wg.Wait()

	first, ok := registry.FirstSeen(a)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, first, 1)
}

func TestHelpers(t *testing.T) {
	list := []models.Issue{
		issue(models.KindSecurity, "b.go", 2, "y"),
		issue(models.KindFormatting, "a.go", 0, "x"),
		issue(models.KindSecurity, "b.go", 1, "z"),
		issue(models.KindDocumentation, "", 0, "missing SECURITY.md"),
	}

	issues.Sort(list)
	assert.Equal(t, "", list[0].FilePath)
	assert.Equal(t, "a.go", list[1].FilePath)
	assert.Equal(t, 1, list[2].LineNumber)

	assert.Equal(t, 2, issues.CountByKind(list)[models.KindSecurity])
}
