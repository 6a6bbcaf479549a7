package intensity

import (
	"testing"
	"time"

	"greenmoment-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatSeries(start time.Time, values ...float64) *Series {
	samples := make([]models.IntensitySample, len(values))
	for i, v := range values {
		samples[i] = models.IntensitySample{
			Timestamp: start.Add(time.Duration(i) * 10 * time.Minute),
			Intensity: v,
		}
	}
	return FromSamples(samples, testCfg)
}

func TestIntervalMeanAlignedInterval(t *testing.T) {
	series := flatSeries(ts(10, 0), 300, 300, 400, 400, 500, 500)

	mean, resolved := series.IntervalMean(ts(10, 0), ts(11, 0))
	assert.Equal(t, 6, resolved)
	assert.InDelta(t, 400.0, mean, 1e-9)
}

func TestIntervalMeanRoundsStartDown(t *testing.T) {
	series := flatSeries(ts(10, 0), 100, 200, 300)

	// 10:07 rounds down to 10:00; steps at 10:00 and 10:10 fall before
	// the 10:17 end.
	mean, resolved := series.IntervalMean(ts(10, 7), ts(10, 17))
	assert.Equal(t, 2, resolved)
	assert.InDelta(t, 150.0, mean, 1e-9)
}

func TestIntervalMeanUsesNearestWithinTolerance(t *testing.T) {
	// Only one sample at 10:20, but every step of the hour resolves to it.
	series := FromSamples([]models.IntensitySample{
		{Timestamp: ts(10, 20), Intensity: 640},
	}, testCfg)

	mean, resolved := series.IntervalMean(ts(10, 0), ts(11, 0))
	assert.Equal(t, 6, resolved)
	assert.InDelta(t, 640.0, mean, 1e-9)
}

func TestIntervalMeanTotalGap(t *testing.T) {
	series := flatSeries(ts(2, 0), 300, 300)

	_, resolved := series.IntervalMean(ts(10, 0), ts(11, 0))
	assert.Equal(t, 0, resolved)
}

func TestIntervalMeanOrFallback(t *testing.T) {
	series := FromSamples(nil, testCfg)

	got := series.IntervalMeanOrFallback(ts(10, 0), ts(11, 0), 500.0)
	assert.Equal(t, 500.0, got)
}

func TestWorstWindowTwoSampleSpike(t *testing.T) {
	// The documented scenario: 10-minute samples 100,100,100,500,500,100
	// with a 20 minute duration must find the two 500 samples.
	series := flatSeries(ts(0, 0), 100, 100, 100, 500, 500, 100)

	worst, ok := series.WorstWindow(ts(0, 0), 20)
	require.True(t, ok)
	assert.InDelta(t, 500.0, worst, 1e-9)
}

func TestWorstWindowRoundsDurationUp(t *testing.T) {
	series := flatSeries(ts(0, 0), 100, 400, 500, 100)

	// 25 minutes needs 3 slots: best window is 400,500,100 vs 100,400,500.
	worst, ok := series.WorstWindow(ts(0, 0), 25)
	require.True(t, ok)
	assert.InDelta(t, (100.0+400.0+500.0)/3.0, worst, 1e-9)
}

func TestWorstWindowSameDayOnly(t *testing.T) {
	// A spike on the next day must not leak into today's search.
	samples := []models.IntensitySample{
		{Timestamp: ts(23, 40), Intensity: 100},
		{Timestamp: ts(23, 50), Intensity: 100},
		{Timestamp: ts(23, 50).Add(10 * time.Minute), Intensity: 900}, // 00:00 next day
	}
	series := FromSamples(samples, testCfg)

	worst, ok := series.WorstWindow(ts(12, 0), 20)
	require.True(t, ok)
	assert.InDelta(t, 100.0, worst, 1e-9)
}

func TestWorstWindowShortDay(t *testing.T) {
	series := flatSeries(ts(0, 0), 100)

	_, ok := series.WorstWindow(ts(0, 0), 30)
	assert.False(t, ok)

	got := series.WorstWindowOrFallback(ts(0, 0), 30, 600.0)
	assert.Equal(t, 600.0, got)
}

func TestWorstWindowEmptyDay(t *testing.T) {
	series := FromSamples(nil, testCfg)
	_, ok := series.WorstWindow(ts(0, 0), 20)
	assert.False(t, ok)
}
