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

package intensity

import (
	"fmt"
	"sort"
	"time"

	"greenmoment-go/internal/models"
	"greenmoment-go/internal/store"
)

// Config holds the sampling parameters of a series.
type Config struct {
	CadenceMinutes int
	GapTolerance   time.Duration
}

// Cadence returns the nominal sample spacing.
func (c Config) Cadence() time.Duration {
	return time.Duration(c.CadenceMinutes) * time.Minute
}

// Series is an ordered, de-duplicated carbon intensity time series in
// grams CO2e per kWh, unique per timestamp, sorted ascending.
type Series struct {
	samples []models.IntensitySample
	cfg     Config
}

// BuildSeries derives an intensity series from raw per-fuel generation
// records. Per timestamp:
//
//	intensity = Σ(generation_mw[fuel] * factor[fuel]) / Σ(generation_mw[fuel])
//
// summed over fuel types present in factors. Fuels without a factor entry
// (Storage, pumped hydro net flow) are excluded from both numerator and
// denominator since they are not primary generation. Slots with no
// attributable generation produce no sample rather than a zero.
//
// Duplicate (timestamp, fuel) records keep the one with the highest
// ingestion sequence: the later fetch for a slot wins, regardless of value.
func BuildSeries(records []models.GenerationRecord, factors map[string]float64, cfg Config) *Series {
	type slotKey struct {
		ts   int64
		fuel string
	}

	latest := make(map[slotKey]models.GenerationRecord)
	for _, rec := range records {
		key := slotKey{rec.Timestamp.Unix(), rec.Fuel}
		if prev, ok := latest[key]; !ok || rec.IngestSeq > prev.IngestSeq {
			latest[key] = rec
		}
	}

	type slotSums struct {
		weighted float64
		total    float64
	}
	sums := make(map[int64]slotSums)
	times := make(map[int64]time.Time)

	for key, rec := range latest {
		factor, attributable := factors[rec.Fuel]
		if !attributable {
			continue
		}
		s := sums[key.ts]
		s.weighted += rec.MW * factor
		s.total += rec.MW
		sums[key.ts] = s
		times[key.ts] = rec.Timestamp
	}

	samples := make([]models.IntensitySample, 0, len(sums))
	for ts, s := range sums {
		if s.total <= 0 {
			continue
		}
		samples = append(samples, models.IntensitySample{
			Timestamp: times[ts],
			Intensity: s.weighted / s.total,
		})
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	return &Series{samples: samples, cfg: cfg}
}

// FromSamples builds a series directly from already-derived samples.
// Duplicate timestamps keep the later element, matching BuildSeries.
func FromSamples(samples []models.IntensitySample, cfg Config) *Series {
	byTime := make(map[int64]models.IntensitySample, len(samples))
	for _, s := range samples {
		byTime[s.Timestamp.Unix()] = s
	}
	deduped := make([]models.IntensitySample, 0, len(byTime))
	for _, s := range byTime {
		deduped = append(deduped, s)
	}
	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].Timestamp.Before(deduped[j].Timestamp)
	})
	return &Series{samples: deduped, cfg: cfg}
}

// Len returns the number of samples in the series.
func (s *Series) Len() int {
	return len(s.samples)
}

// Config returns the series sampling parameters.
func (s *Series) Config() Config {
	return s.cfg
}

// SamplesInRange returns the samples with start <= timestamp < end, in
// ascending order. The empty slice is returned when none exist.
func (s *Series) SamplesInRange(start, end time.Time) []models.IntensitySample {
	lo := sort.Search(len(s.samples), func(i int) bool {
		return !s.samples[i].Timestamp.Before(start)
	})
	hi := sort.Search(len(s.samples), func(i int) bool {
		return !s.samples[i].Timestamp.Before(end)
	})
	out := make([]models.IntensitySample, hi-lo)
	copy(out, s.samples[lo:hi])
	return out
}

// CheckCoverage verifies that the series has no gap larger than the
// configured tolerance inside [start, end), counting the lead-in from
// start to the first sample and the tail from the last sample to end.
// A violation is reported as store.ErrInsufficientData so callers can
// defer the computation instead of degrading silently.
func (s *Series) CheckCoverage(start, end time.Time) error {
	if !end.After(start) {
		return nil
	}
	in := s.SamplesInRange(start, end)
	if len(in) == 0 {
		if end.Sub(start) > s.cfg.GapTolerance {
			return fmt.Errorf("%w: no samples between %s and %s",
				store.ErrInsufficientData, start.Format(time.RFC3339), end.Format(time.RFC3339))
		}
		// A short range can legitimately fall between two samples; accept
		// it if a neighbor sits within tolerance of the midpoint.
		mid := start.Add(end.Sub(start) / 2)
		if _, ok := s.Nearest(mid, s.cfg.GapTolerance); !ok {
			return fmt.Errorf("%w: no samples near %s",
				store.ErrInsufficientData, mid.Format(time.RFC3339))
		}
		return nil
	}

	prev := start
	for _, sample := range in {
		if sample.Timestamp.Sub(prev) > s.cfg.GapTolerance {
			return fmt.Errorf("%w: gap of %s before %s",
				store.ErrInsufficientData, sample.Timestamp.Sub(prev), sample.Timestamp.Format(time.RFC3339))
		}
		prev = sample.Timestamp
	}
	if end.Sub(prev) > s.cfg.GapTolerance {
		return fmt.Errorf("%w: gap of %s after %s",
			store.ErrInsufficientData, end.Sub(prev), prev.Format(time.RFC3339))
	}
	return nil
}

// Nearest returns the sample value closest in time to t, provided it lies
// within the given tolerance.
func (s *Series) Nearest(t time.Time, tolerance time.Duration) (float64, bool) {
	if len(s.samples) == 0 {
		return 0, false
	}
	idx := sort.Search(len(s.samples), func(i int) bool {
		return !s.samples[i].Timestamp.Before(t)
	})

	best := -1
	var bestDiff time.Duration
	for _, i := range []int{idx - 1, idx} {
		if i < 0 || i >= len(s.samples) {
			continue
		}
		diff := absDuration(s.samples[i].Timestamp.Sub(t))
		if best == -1 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best == -1 || bestDiff > tolerance {
		return 0, false
	}
	return s.samples[best].Intensity, true
}

// day returns the samples whose local calendar date (in loc) equals date.
func (s *Series) day(date time.Time, loc *time.Location) []models.IntensitySample {
	y, m, d := date.In(loc).Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return s.SamplesInRange(dayStart, dayStart.AddDate(0, 0, 1))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
