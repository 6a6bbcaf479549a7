package intensity

import (
	"time"

	"go.uber.org/zap"
)

// IntervalMean estimates the mean carbon intensity experienced during
// [start, end), which need not align to the sampling grid. The start is
// rounded down to the nearest cadence boundary and the estimator steps
// forward by one cadence at a time, taking the exact sample when present
// and otherwise the nearest sample within the gap tolerance. The second
// return value is the number of resolved steps; zero means a total gap
// and no estimate.
func (s *Series) IntervalMean(start, end time.Time) (float64, int) {
	cadence := s.cfg.Cadence()
	sum := 0.0
	resolved := 0

	for t := start.Truncate(cadence); t.Before(end); t = t.Add(cadence) {
		if v, ok := s.at(t); ok {
			sum += v
			resolved++
			continue
		}
		if v, ok := s.Nearest(t, s.cfg.GapTolerance); ok {
			sum += v
			resolved++
		}
	}

	if resolved == 0 {
		return 0, 0
	}
	return sum / float64(resolved), resolved
}

// IntervalMeanOrFallback is the degraded variant used for the provisional
// at-logging-time estimate. A total gap yields the supplied fallback and
// is logged; it is never a silent zero. The authoritative batch path uses
// CheckCoverage + IntervalMean instead and surfaces the gap as an error.
func (s *Series) IntervalMeanOrFallback(start, end time.Time, fallback float64) float64 {
	mean, resolved := s.IntervalMean(start, end)
	if resolved == 0 {
		zap.L().Warn("No intensity samples resolved for interval, using fallback",
			zap.Time("start", start),
			zap.Time("end", end),
			zap.Float64("fallback_g_per_kwh", fallback))
		return fallback
	}
	return mean
}

// at returns the sample value at exactly t.
func (s *Series) at(t time.Time) (float64, bool) {
	v, ok := s.Nearest(t, 0)
	return v, ok
}
