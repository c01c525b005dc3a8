// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/scheduler"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Progress is a scheduler observer that can be closed when the run ends
type Progress interface {
	scheduler.Observer
	Finish()
}

// NewProgress returns a progress bar over expected checks on stderr when enabled and
// stderr is a terminal, and a no-op otherwise
func NewProgress(enabled bool, expected int) Progress {
	if !enabled || expected <= 0 || !term.IsTerminal(int(os.Stderr.Fd())) {
		return noProgress{}
	}
	return NewProgressWriter(os.Stderr, expected)
}

// NewProgressWriter returns a progress bar writing to w
func NewProgressWriter(w io.Writer, expected int) *BarProgress {
	bar := progressbar.NewOptions(expected,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(18),
		progressbar.OptionSetDescription("checks"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return &BarProgress{bar: bar, max: expected}
}

// BarProgress counts finished checks. Re-run passes extend the bar.
type BarProgress struct {
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	max  int
	done int
}

// WaveStarted shows the running wave
func (p *BarProgress) WaveStarted(strategy string, index int, wave models.ExecutionWave) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar.Describe(fmt.Sprintf("%s wave %d", strategy, index+1))
}

// CheckFinished advances the bar
func (p *BarProgress) CheckFinished(result models.CheckResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if p.done > p.max {
		p.max = p.done
		p.bar.ChangeMax(p.max)
	}
	_ = p.bar.Add(1)
}

// StrategyFinished is a no-op
func (p *BarProgress) StrategyFinished(string, []models.CheckResult) {}

// Done returns the number of finished checks
func (p *BarProgress) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Finish completes the bar
func (p *BarProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}

type noProgress struct {
	scheduler.NopObserver
}

func (noProgress) Finish() {}
