package intensity

import (
	"context"
	"fmt"
	"time"

	"greenmoment-go/internal/store"
)

// Loader builds series on demand from the raw generation records of the
// sample store.
type Loader struct {
	samples store.SampleStore
	factors map[string]float64
	cfg     Config
}

func NewLoader(samples store.SampleStore, factors map[string]float64, cfg Config) *Loader {
	return &Loader{samples: samples, factors: factors, cfg: cfg}
}

// LoadDay builds the series covering one calendar day, with one gap
// tolerance of margin on each side so interval estimates near midnight
// can still resolve their nearest samples.
func (l *Loader) LoadDay(ctx context.Context, date time.Time) (*Series, error) {
	y, m, d := date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	start := dayStart.Add(-l.cfg.GapTolerance)
	end := dayStart.AddDate(0, 0, 1).Add(l.cfg.GapTolerance)

	records, err := l.samples.GetGenerationRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load generation records for %s: %w", dayStart.Format("2006-01-02"), err)
	}
	return BuildSeries(records, l.factors, l.cfg), nil
}
