/**
 * Copyright 2025-present Green Moment
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package savings holds the single implementation of the chore savings
// formula. Both the scheduled batch job and the operator tools go through
// this package; nothing else in the repository computes savings.
package savings

import (
	"fmt"
	"time"

	"greenmoment-go/internal/intensity"
	"greenmoment-go/internal/models"
	"greenmoment-go/internal/store"

	"go.uber.org/zap"
)

// Calculator turns one appliance usage event into grams CO2e saved,
// comparing the intensity actually experienced against the worst
// contiguous window of equal duration on the same day.
type Calculator struct {
	series     *intensity.Series
	appliances map[string]float64
	cfg        models.CarbonConfig
}

func NewCalculator(series *intensity.Series, appliances map[string]float64, cfg models.CarbonConfig) *Calculator {
	return &Calculator{series: series, appliances: appliances, cfg: cfg}
}

// Result is the full breakdown of one savings computation. Emissions and
// savings are grams CO2e; intensities are grams CO2e per kWh.
type Result struct {
	ActualIntensity    float64
	WorstCaseIntensity float64
	EnergyKWh          float64
	ActualEmitted      float64
	WorstCaseEmitted   float64
	SavedGrams         float64
}

// PowerDraw returns the rated draw for an appliance type. Unknown types
// degrade to the configured default rather than failing: chore logging is
// user-facing.
func (c *Calculator) PowerDraw(applianceType string) float64 {
	if kw, ok := c.appliances[applianceType]; ok {
		return kw
	}
	zap.L().Warn("Unknown appliance type, using default power draw",
		zap.String("appliance", applianceType),
		zap.Float64("default_kw", c.cfg.DefaultPowerDrawKW))
	return c.cfg.DefaultPowerDrawKW
}

// Compute is the authoritative path used by the batch aggregation. An
// intensity gap larger than the tolerance inside the chore interval or
// its day surfaces as store.ErrInsufficientData so the aggregator can
// defer the user-date; it is never masked as zero savings.
func (c *Calculator) Compute(chore models.Chore) (*Result, error) {
	if !chore.EndTime.After(chore.StartTime) {
		return nil, fmt.Errorf("%w: chore %s start=%s end=%s",
			store.ErrInvalidInterval, chore.Id,
			chore.StartTime.Format(time.RFC3339), chore.EndTime.Format(time.RFC3339))
	}

	if err := c.series.CheckCoverage(chore.StartTime, chore.EndTime); err != nil {
		return nil, fmt.Errorf("chore %s interval: %w", chore.Id, err)
	}

	actual, resolved := c.series.IntervalMean(chore.StartTime, chore.EndTime)
	if resolved == 0 {
		return nil, fmt.Errorf("chore %s interval: %w", chore.Id, store.ErrInsufficientData)
	}

	worst, ok := c.series.WorstWindow(chore.StartTime, chore.DurationMinutes())
	if !ok {
		return nil, fmt.Errorf("chore %s day %s: %w",
			chore.Id, chore.StartTime.Format("2006-01-02"), store.ErrInsufficientData)
	}

	return c.assemble(chore, actual, worst), nil
}

// Provisional is the degraded at-logging-time estimate shown to the user
// immediately. Gaps fall back to the configured constants (and are
// logged); the authoritative batch pass replaces these numbers later.
func (c *Calculator) Provisional(chore models.Chore) *Result {
	actual := c.series.IntervalMeanOrFallback(chore.StartTime, chore.EndTime, c.cfg.FallbackIntensity)
	worst := c.series.WorstWindowOrFallback(chore.StartTime, chore.DurationMinutes(), c.cfg.FallbackWorstCase)
	return c.assemble(chore, actual, worst)
}

func (c *Calculator) assemble(chore models.Chore, actual, worst float64) *Result {
	draw := chore.PowerDrawKW
	if draw <= 0 {
		draw = c.PowerDraw(chore.ApplianceType)
	}
	energyKWh := draw * chore.DurationHours()

	saved := (worst - actual) * energyKWh
	// A chore run during an above-average period contributes zero, never
	// negative savings.
	if saved < 0 {
		saved = 0
	}

	return &Result{
		ActualIntensity:    actual,
		WorstCaseIntensity: worst,
		EnergyKWh:          energyKWh,
		ActualEmitted:      actual * energyKWh,
		WorstCaseEmitted:   worst * energyKWh,
		SavedGrams:         saved,
	}
}
