// SPDX-License-Identifier: Apache-2.0

package fixer

import (
	"sync"

	"github.com/kusari-oss/mend/internal/core/models"
)

// Defaults for the confidence blend
const (
	DefaultMinSamples   = 5
	DefaultStatedWeight = 0.6
)

// History tracks per-fixer outcomes so stated confidence can be blended with experience.
// It is safe for concurrent use.
type History struct {
	mu         sync.Mutex
	successes  map[string]int
	totals     map[string]int
	minSamples int
	weight     float64
}

// NewHistory creates a history. The blend applies once minSamples outcomes exist and
// gives statedWeight to the fixer's own score.
func NewHistory(minSamples int, statedWeight float64) *History {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	if statedWeight < 0 || statedWeight > 1 {
		statedWeight = DefaultStatedWeight
	}
	return &History{
		successes:  make(map[string]int),
		totals:     make(map[string]int),
		minSamples: minSamples,
		weight:     statedWeight,
	}
}

// Record stores one outcome
func (h *History) Record(fixer string, outcome models.FixOutcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.totals[fixer]++
	if outcome == models.OutcomeSucceeded {
		h.successes[fixer]++
	}
}

// SuccessRate returns the success rate and the number of samples
func (h *History) SuccessRate(fixer string) (float64, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := h.totals[fixer]
	if total == 0 {
		return 0, 0
	}
	return float64(h.successes[fixer]) / float64(total), total
}

// Blend returns the effective confidence for a stated score
func (h *History) Blend(fixer string, stated float64) float64 {
	rate, samples := h.SuccessRate(fixer)
	if samples < h.minSamples {
		return stated
	}
	return h.weight*stated + (1-h.weight)*rate
}
