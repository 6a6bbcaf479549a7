package savings

import (
	"errors"
	"testing"
	"time"

	"greenmoment-go/internal/intensity"
	"greenmoment-go/internal/models"
	"greenmoment-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCfg = models.CarbonConfig{
	CadenceMinutes:     10,
	GapTolerance:       time.Hour,
	FallbackIntensity:  500.0,
	FallbackWorstCase:  600.0,
	DefaultPowerDrawKW: 1.0,
}

var testAppliances = map[string]float64{
	"washing_machine": 0.5,
	"dryer":           3.0,
	"ev_charger":      50.0,
}

func ts(hour, min int) time.Time {
	return time.Date(2025, 8, 15, hour, min, 0, 0, time.UTC)
}

// daySeries builds a full day of 10-minute samples: `base` everywhere
// except [peakStart, peakEnd) hours, which get `peak`.
func daySeries(base, peak float64, peakStart, peakEnd int) *intensity.Series {
	var samples []models.IntensitySample
	for m := 0; m < 24*60; m += 10 {
		v := base
		if m >= peakStart*60 && m < peakEnd*60 {
			v = peak
		}
		samples = append(samples, models.IntensitySample{
			Timestamp: ts(0, 0).Add(time.Duration(m) * time.Minute),
			Intensity: v,
		})
	}
	return intensity.FromSamples(samples, intensity.Config{
		CadenceMinutes: testCfg.CadenceMinutes,
		GapTolerance:   testCfg.GapTolerance,
	})
}

func chore(appliance string, draw float64, start, end time.Time) models.Chore {
	return models.Chore{
		Id:            "chore-1",
		UserId:        "user-1",
		ApplianceType: appliance,
		StartTime:     start,
		EndTime:       end,
		PowerDrawKW:   draw,
	}
}

func TestComputeEndToEndScenario(t *testing.T) {
	// Actual interval at 300 g/kWh, worst window at 500 g/kWh, 2 kW for
	// one hour: savings must be exactly (500-300) * 2.0 * 1.0 = 400 g.
	series := daySeries(300, 500, 18, 20)
	calc := NewCalculator(series, testAppliances, testCfg)

	result, err := calc.Compute(chore("dryer", 2.0, ts(10, 0), ts(11, 0)))
	require.NoError(t, err)

	assert.InDelta(t, 300.0, result.ActualIntensity, 1e-9)
	assert.InDelta(t, 500.0, result.WorstCaseIntensity, 1e-9)
	assert.InDelta(t, 2.0, result.EnergyKWh, 1e-9)
	assert.InDelta(t, 400.0, result.SavedGrams, 1e-9)
	assert.InDelta(t, 600.0, result.ActualEmitted, 1e-9)
	assert.InDelta(t, 1000.0, result.WorstCaseEmitted, 1e-9)
}

func TestComputeClampsNegativeSavings(t *testing.T) {
	// Chore running inside the peak: actual equals the worst case, and a
	// flat remainder means actual can even exceed shorter worst windows.
	series := daySeries(300, 500, 10, 12)
	calc := NewCalculator(series, testAppliances, testCfg)

	result, err := calc.Compute(chore("dryer", 2.0, ts(10, 0), ts(12, 0)))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.SavedGrams, 0.0)
}

func TestComputeInvalidInterval(t *testing.T) {
	series := daySeries(300, 500, 18, 20)
	calc := NewCalculator(series, testAppliances, testCfg)

	_, err := calc.Compute(chore("dryer", 2.0, ts(11, 0), ts(11, 0)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInvalidInterval))

	_, err = calc.Compute(chore("dryer", 2.0, ts(11, 0), ts(10, 0)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInvalidInterval))
}

func TestComputeInsufficientData(t *testing.T) {
	// Empty series: the typed error must surface, distinguishable from
	// zero savings, so the aggregator defers instead of recording 0.
	series := intensity.FromSamples(nil, intensity.Config{
		CadenceMinutes: testCfg.CadenceMinutes,
		GapTolerance:   testCfg.GapTolerance,
	})
	calc := NewCalculator(series, testAppliances, testCfg)

	_, err := calc.Compute(chore("dryer", 2.0, ts(10, 0), ts(12, 0)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInsufficientData))
}

func TestProvisionalFallsBackOnEmptySeries(t *testing.T) {
	series := intensity.FromSamples(nil, intensity.Config{
		CadenceMinutes: testCfg.CadenceMinutes,
		GapTolerance:   testCfg.GapTolerance,
	})
	calc := NewCalculator(series, testAppliances, testCfg)

	result := calc.Provisional(chore("dryer", 2.0, ts(10, 0), ts(11, 0)))
	assert.InDelta(t, 500.0, result.ActualIntensity, 1e-9)
	assert.InDelta(t, 600.0, result.WorstCaseIntensity, 1e-9)
	// (600-500) * 2 kW * 1 h
	assert.InDelta(t, 200.0, result.SavedGrams, 1e-9)
}

func TestPowerDrawLookup(t *testing.T) {
	series := daySeries(300, 500, 18, 20)
	calc := NewCalculator(series, testAppliances, testCfg)

	assert.Equal(t, 50.0, calc.PowerDraw("ev_charger"))
	// Unknown appliance types degrade to the default, not an error.
	assert.Equal(t, 1.0, calc.PowerDraw("bitcoin_miner"))
}

func TestComputeUsesTableWhenChoreHasNoDraw(t *testing.T) {
	series := daySeries(300, 500, 18, 20)
	calc := NewCalculator(series, testAppliances, testCfg)

	result, err := calc.Compute(chore("washing_machine", 0, ts(10, 0), ts(12, 0)))
	require.NoError(t, err)
	// 0.5 kW for two hours.
	assert.InDelta(t, 1.0, result.EnergyKWh, 1e-9)
}
