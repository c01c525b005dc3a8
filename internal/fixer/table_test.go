// SPDX-License-Identifier: Apache-2.0

package fixer_test

import (
	"testing"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/fixer"
	"github.com/kusari-oss/mend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(caps []fixer.Capability) []string {
	var out []string
	for _, c := range caps {
		out = append(out, c.Name())
	}
	return out
}

func TestTable_Candidates(t *testing.T) {
	table, err := fixer.NewTableBuilder().
		Register(testutil.NewMockCapability("any")).
		Register(testutil.NewMockCapability("gofmt"), models.KindFormatting).
		Register(testutil.NewMockCapability("goimports"), models.KindFormatting, models.KindComplexity).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"gofmt", "goimports", "any"}, names(table.Candidates(models.KindFormatting)))
	assert.Equal(t, []string{"goimports", "any"}, names(table.Candidates(models.KindComplexity)))
	assert.Equal(t, []string{"any"}, names(table.Candidates(models.KindSecurity)))
	assert.Equal(t, []string{"any", "gofmt", "goimports"}, table.Names())
	assert.Equal(t, 3, table.Len())
}

func TestTable_DuplicateName(t *testing.T) {
	_, err := fixer.NewTableBuilder().
		Register(testutil.NewMockCapability("gofmt"), models.KindFormatting).
		Register(testutil.NewMockCapability("gofmt"), models.KindComplexity).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate fixer name: gofmt")
}

func TestHistory(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []models.FixOutcome
		stated   float64
		expected float64
	}{
		{
			name:     "no samples keeps stated score",
			stated:   0.8,
			expected: 0.8,
		},
		{
			name:     "below minimum samples keeps stated score",
			outcomes: []models.FixOutcome{models.OutcomeFailed, models.OutcomeFailed},
			stated:   0.8,
			expected: 0.8,
		},
		{
			name: "all successes raise confidence",
			outcomes: []models.FixOutcome{
				models.OutcomeSucceeded, models.OutcomeSucceeded, models.OutcomeSucceeded,
				models.OutcomeSucceeded, models.OutcomeSucceeded,
			},
			stated:   0.5,
			expected: 0.6*0.5 + 0.4*1,
		},
		{
			name: "mixed outcomes",
			outcomes: []models.FixOutcome{
				models.OutcomeSucceeded, models.OutcomeRejectedByValidation, models.OutcomeFailed,
				models.OutcomeSucceeded, models.OutcomeFailed,
			},
			stated:   1,
			expected: 0.6 + 0.4*0.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := fixer.NewHistory(3, 0.6)
			for _, outcome := range tt.outcomes {
				history.Record("f", outcome)
			}
			assert.InDelta(t, tt.expected, history.Blend("f", tt.stated), 1e-9)
		})
	}

	rate, samples := fixer.NewHistory(0, 2).SuccessRate("unknown")
	assert.Zero(t, rate)
	assert.Zero(t, samples)
}
