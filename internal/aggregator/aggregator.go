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

// Package aggregator turns recalculated per-chore savings into the daily
// ledger, the month-scoped cumulative sums, the denormalized user caches
// and the monthly league promotions. All writes for one (user, month) go
// through a single transactional month rebuild, so a recompute replaces
// what was there before instead of adding to it.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"greenmoment-go/internal/intensity"
	"greenmoment-go/internal/league"
	"greenmoment-go/internal/models"
	"greenmoment-go/internal/savings"
	"greenmoment-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// gramPrecision is the decimal scale daily totals are stored at.
const gramPrecision = 3

// Service drives the daily batch aggregation.
type Service struct {
	store      store.CarbonStore
	loader     *intensity.Loader
	appliances map[string]float64
	cfg        models.CarbonConfig
	ladder     *league.Ladder

	// now is swappable in tests; everything that decides "is this the
	// current month" goes through it.
	now func() time.Time

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func NewService(carbonStore store.CarbonStore, loader *intensity.Loader, appliances map[string]float64, cfg models.CarbonConfig, ladder *league.Ladder) *Service {
	return &Service{
		store:      carbonStore,
		loader:     loader,
		appliances: appliances,
		cfg:        cfg,
		ladder:     ladder,
		now:        time.Now,
		userLocks:  make(map[string]*sync.Mutex),
	}
}

// lockUser serializes all ledger writes for one user. Different users
// proceed concurrently.
func (s *Service) lockUser(userId string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userId]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userId] = lock
	}
	return lock
}

// RunStats summarizes one scheduled run.
type RunStats struct {
	UsersProcessed int
	Deferred       int
	Promotions     int
	Errors         int
}

// RunDaily is the scheduled evening pass for one calendar date. It
// retries outstanding deferrals first, then computes every active user's
// ledger for the date, and on the first of a month finalizes the month
// that just ended.
func (s *Service) RunDaily(ctx context.Context, date time.Time) (*RunStats, error) {
	stats := &RunStats{}

	if err := s.RetryDeferred(ctx); err != nil {
		zap.L().Warn("Deferred retry pass failed", zap.Error(err))
	}

	users, err := s.store.GetActiveUsers(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list active users: %w", err)
	}

	rollover := date.Day() == 1
	prevYear, prevMonth := previousMonth(date)

	for _, user := range users {
		if rollover {
			outcome, err := s.FinalizeMonth(ctx, user, prevYear, prevMonth)
			if err != nil {
				stats.Errors++
				zap.L().Error("Month finalization failed",
					zap.String("user", user.Username),
					zap.Int("year", prevYear), zap.Int("month", prevMonth),
					zap.Error(err))
			} else if outcome.Promoted {
				stats.Promotions++
			}
		}

		if err := s.ComputeUserDate(ctx, user.Id, date); err != nil {
			if errors.Is(err, store.ErrInsufficientData) {
				stats.Deferred++
				continue
			}
			stats.Errors++
			zap.L().Error("Daily aggregation failed",
				zap.String("user", user.Username),
				zap.String("date", date.Format("2006-01-02")),
				zap.Error(err))
			continue
		}
		stats.UsersProcessed++
	}

	zap.L().Info("Daily aggregation run complete",
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("processed", stats.UsersProcessed),
		zap.Int("deferred", stats.Deferred),
		zap.Int("promotions", stats.Promotions),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

// ComputeUserDate recalculates every chore of one (user, date), writes the
// daily row and cascades the cumulative sums through the rest of the
// month. Running it twice for the same inputs leaves the ledger unchanged.
//
// An intensity gap inside any chore of the date defers the whole
// (user, date) and returns a store.ErrInsufficientData wrap; no partial
// day is ever written.
func (s *Service) ComputeUserDate(ctx context.Context, userId string, date time.Time) error {
	lock := s.lockUser(userId)
	lock.Lock()
	defer lock.Unlock()

	chores, err := s.store.GetChoresForUserDate(ctx, userId, date)
	if err != nil {
		return fmt.Errorf("failed to load chores: %w", err)
	}

	daily := decimal.Zero
	results := make(map[string]*savings.Result, len(chores))
	if len(chores) > 0 {
		series, err := s.loader.LoadDay(ctx, date)
		if err != nil {
			return err
		}
		calc := savings.NewCalculator(series, s.appliances, s.cfg)

		for _, chore := range chores {
			result, err := calc.Compute(chore)
			if err != nil {
				if errors.Is(err, store.ErrInsufficientData) {
					if dErr := s.store.RecordDeferral(ctx, userId, date, err.Error()); dErr != nil {
						zap.L().Error("Failed to record deferral", zap.Error(dErr))
					}
					return err
				}
				if errors.Is(err, store.ErrInvalidInterval) {
					// Logging already rejects these; a stored one is
					// corrupt and excluded from the ledger.
					zap.L().Error("Skipping chore with invalid interval",
						zap.String("chore", chore.Id), zap.Error(err))
					continue
				}
				return err
			}
			results[chore.Id] = result
			daily = daily.Add(decimal.NewFromFloat(result.SavedGrams).Round(gramPrecision))
		}
	}

	if err := s.writeDayAndCascade(ctx, userId, date, daily); err != nil {
		return err
	}

	// The ledger committed; only now do the per-chore rows flip to
	// recalculated. A failed ledger write leaves the chores unmarked so a
	// rerun recomputes them.
	for _, chore := range chores {
		result, ok := results[chore.Id]
		if !ok {
			continue
		}
		err := s.store.MarkChoreRecalculated(ctx, store.ChoreResultParams{
			ChoreId:          chore.Id,
			ActualEmitted:    result.ActualEmitted,
			WorstCaseEmitted: result.WorstCaseEmitted,
			ActualSaved:      result.SavedGrams,
		})
		if err != nil {
			return fmt.Errorf("failed to mark chore %s recalculated: %w", chore.Id, err)
		}
	}

	if err := s.store.ClearDeferral(ctx, userId, date); err != nil {
		zap.L().Warn("Failed to clear deferral",
			zap.String("user", userId),
			zap.String("date", date.Format("2006-01-02")),
			zap.Error(err))
	}
	return nil
}

// writeDayAndCascade replaces the daily row for date and rebuilds the
// cumulative column for the whole month, first day forward, in one
// transaction. The month cache is refreshed only when date falls in the
// wall-clock current month.
func (s *Service) writeDayAndCascade(ctx context.Context, userId string, date time.Time, daily decimal.Decimal) error {
	year, month := date.Year(), int(date.Month())

	existing, err := s.store.GetMonthProgress(ctx, userId, year, month)
	if err != nil {
		return fmt.Errorf("failed to load month progress: %w", err)
	}

	// Nothing on the ledger and nothing to add: leave no empty rows behind.
	if len(existing) == 0 && daily.IsZero() {
		return nil
	}

	dayKey := date.Format("2006-01-02")
	entries := make([]store.MonthEntry, 0, len(existing)+1)
	replaced := false
	for _, row := range existing {
		if row.Date.Format("2006-01-02") == dayKey {
			entries = append(entries, store.MonthEntry{Date: row.Date, Daily: daily})
			replaced = true
			continue
		}
		entries = append(entries, store.MonthEntry{Date: row.Date, Daily: row.Daily})
	}
	if !replaced {
		entries = append(entries, store.MonthEntry{Date: date, Daily: daily})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })

	// Cumulative sums restart from zero on the first of every month.
	running := decimal.Zero
	for i := range entries {
		running = running.Add(entries[i].Daily)
		entries[i].Cumulative = running
	}

	var monthCache *decimal.Decimal
	if nowY, nowM := s.now().Year(), int(s.now().Month()); nowY == year && nowM == month {
		total := running
		monthCache = &total
	}

	if err := s.store.WriteMonthProgress(ctx, userId, entries, monthCache); err != nil {
		return fmt.Errorf("failed to write month progress: %w", err)
	}
	return nil
}

// RecomputeUserMonth replays every chore date of a month from the raw
// chores, in order. Operator tool entry point for backfills after late
// intensity data or emission factor corrections.
func (s *Service) RecomputeUserMonth(ctx context.Context, userId string, year, month int) error {
	chores, err := s.store.GetChoresForUserMonth(ctx, userId, year, month)
	if err != nil {
		return fmt.Errorf("failed to load chores for %d-%02d: %w", year, month, err)
	}

	seen := make(map[string]bool)
	dates := make([]time.Time, 0)
	for _, chore := range chores {
		// Chores come back from storage in UTC. The ledger keys days by the
		// local calendar, so derive the day from the local clock.
		start := chore.StartTime.In(time.Local)
		key := start.Format("2006-01-02")
		if seen[key] {
			continue
		}
		seen[key] = true
		y, m, d := start.Date()
		dates = append(dates, time.Date(y, m, d, 0, 0, 0, 0, time.Local))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for _, date := range dates {
		if err := s.ComputeUserDate(ctx, userId, date); err != nil {
			return err
		}
	}
	return nil
}

// FinalizeOutcome reports what a month finalization decided.
type FinalizeOutcome struct {
	Total     decimal.Decimal
	OldLeague string
	NewLeague string
	Promoted  bool
}

// FinalizeMonth closes a (user, month): snapshot the month total, decide
// the league promotion, add the total to the lifetime counter. Safe to
// rerun; only the delta against the previous snapshot goes onto the
// lifetime total.
func (s *Service) FinalizeMonth(ctx context.Context, user models.User, year, month int) (*FinalizeOutcome, error) {
	lock := s.lockUser(user.Id)
	lock.Lock()
	defer lock.Unlock()

	total, err := s.store.SumDailyForMonth(ctx, user.Id, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to sum month %d-%02d: %w", year, month, err)
	}

	previous, err := s.store.GetMonthlySummary(ctx, user.Id, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly summary: %w", err)
	}

	// Promotion is always judged from the league the month started in, so
	// a rerun against an already-promoted user reaches the same verdict.
	leagueAtStart := user.CurrentLeague
	if previous != nil {
		leagueAtStart = previous.LeagueAtStart
	}
	newLeague, promoted := s.ladder.Evaluate(leagueAtStart, total)

	err = s.store.UpsertMonthlySummary(ctx, store.FinalizeMonthParams{
		UserId:        user.Id,
		Year:          year,
		Month:         month,
		TotalSaved:    total,
		LeagueAtStart: leagueAtStart,
		LeagueAtEnd:   newLeague,
		Upgraded:      promoted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write monthly summary: %w", err)
	}

	// The live league only moves when the promotion has not been applied
	// yet. Re-finalizing an old month must not drag a user who has since
	// climbed further back down.
	if promoted && user.CurrentLeague == leagueAtStart {
		if err := s.store.UpdateUserLeague(ctx, user.Id, newLeague); err != nil {
			return nil, fmt.Errorf("failed to update league: %w", err)
		}
		zap.L().Info("League promotion",
			zap.String("user", user.Username),
			zap.String("from", leagueAtStart),
			zap.String("to", newLeague),
			zap.String("month_total_g", total.String()))
	}

	delta := total
	if previous != nil {
		delta = total.Sub(previous.TotalSaved)
	}
	if !delta.IsZero() {
		if err := s.store.AddToLifetimeTotal(ctx, user.Id, delta); err != nil {
			return nil, fmt.Errorf("failed to update lifetime total: %w", err)
		}
	}

	return &FinalizeOutcome{
		Total:     total,
		OldLeague: leagueAtStart,
		NewLeague: newLeague,
		Promoted:  promoted,
	}, nil
}

// Repair compares a user's denormalized current-month cache against the
// daily rows and rewrites the cache when they disagree. Returns whether
// drift was found.
func (s *Service) Repair(ctx context.Context, user models.User) (bool, error) {
	lock := s.lockUser(user.Id)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	expected, err := s.store.SumDailyForMonth(ctx, user.Id, now.Year(), int(now.Month()))
	if err != nil {
		return false, fmt.Errorf("failed to sum current month: %w", err)
	}

	if user.CurrentMonthSaved.Equal(expected) {
		return false, nil
	}

	zap.L().Warn("Repairing drifted month cache",
		zap.String("user", user.Username),
		zap.String("cached_g", user.CurrentMonthSaved.String()),
		zap.String("expected_g", expected.String()),
		zap.Error(store.ErrLedgerDrift))

	if err := s.store.OverwriteMonthCache(ctx, user.Id, expected); err != nil {
		return true, fmt.Errorf("failed to overwrite month cache: %w", err)
	}
	return true, nil
}

// RetryDeferred replays every outstanding deferred (user, date). Dates
// still missing data stay deferred for the next run.
func (s *Service) RetryDeferred(ctx context.Context) error {
	deferrals, err := s.store.ListDeferrals(ctx)
	if err != nil {
		return fmt.Errorf("failed to list deferrals: %w", err)
	}

	for _, d := range deferrals {
		err := s.ComputeUserDate(ctx, d.UserId, d.Date)
		if err != nil {
			if errors.Is(err, store.ErrInsufficientData) {
				zap.L().Info("Deferral still unresolved",
					zap.String("user", d.UserId),
					zap.String("date", d.Date.Format("2006-01-02")))
				continue
			}
			return err
		}
		zap.L().Info("Deferral resolved",
			zap.String("user", d.UserId),
			zap.String("date", d.Date.Format("2006-01-02")))
	}
	return nil
}

func previousMonth(date time.Time) (int, int) {
	prev := date.AddDate(0, 0, -1)
	return prev.Year(), int(prev.Month())
}
