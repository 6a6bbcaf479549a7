package intensity

import (
	"time"
)

// WorstWindow finds the contiguous run of samples within the calendar day
// of date (in date's location) whose mean intensity is maximal, for a
// window of ceil(durationMinutes / cadence) samples. It is the
// counterfactual "worst time the user could have run this appliance".
//
// The scan is a single sliding-sum pass. Ties resolve to the earliest
// window. The second return value is false when the day has fewer samples
// than the window needs, in which case callers fall back to the
// configured worst-case constant.
func (s *Series) WorstWindow(date time.Time, durationMinutes int) (float64, bool) {
	if durationMinutes <= 0 {
		return 0, false
	}
	slots := (durationMinutes + s.cfg.CadenceMinutes - 1) / s.cfg.CadenceMinutes
	if slots < 1 {
		slots = 1
	}

	day := s.day(date, date.Location())
	if len(day) < slots {
		return 0, false
	}

	windowSum := 0.0
	for i := 0; i < slots; i++ {
		windowSum += day[i].Intensity
	}
	worst := windowSum

	for i := slots; i < len(day); i++ {
		windowSum += day[i].Intensity - day[i-slots].Intensity
		if windowSum > worst {
			worst = windowSum
		}
	}

	return worst / float64(slots), true
}

// WorstWindowOrFallback wraps WorstWindow with the configured worst-case
// constant for days with insufficient samples.
func (s *Series) WorstWindowOrFallback(date time.Time, durationMinutes int, fallback float64) float64 {
	if worst, ok := s.WorstWindow(date, durationMinutes); ok {
		return worst
	}
	return fallback
}
