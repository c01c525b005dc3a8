// SPDX-License-Identifier: Apache-2.0

package scheduler

import "github.com/kusari-oss/mend/internal/core/models"

// Observer receives scheduling events. Methods may be called concurrently.
type Observer interface {
	WaveStarted(strategy string, index int, wave models.ExecutionWave)
	CheckFinished(result models.CheckResult)
	StrategyFinished(strategy string, results []models.CheckResult)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) WaveStarted(string, int, models.ExecutionWave) {}
func (NopObserver) CheckFinished(models.CheckResult) {}
func (NopObserver) StrategyFinished(string, []models.CheckResult) {}

// Observers fans events out to several observers in order
type Observers []Observer

func (o Observers) WaveStarted(strategy string, index int, wave models.ExecutionWave) {
	for _, observer := range o {
		observer.WaveStarted(strategy, index, wave)
	}
}

func (o Observers) CheckFinished(result models.CheckResult) {
	for _, observer := range o {
		observer.CheckFinished(result)
	}
}

func (o Observers) StrategyFinished(strategy string, results []models.CheckResult) {
	for _, observer := range o {
		observer.StrategyFinished(strategy, results)
	}
}
