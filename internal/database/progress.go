package database

import (
	"context"
	"fmt"
	"time"

	"greenmoment-go/internal/models"
	"greenmoment-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetMonthProgress returns the user's daily ledger rows for a calendar
// month in date order.
func (s *Service) GetMonthProgress(ctx context.Context, userId string, year, month int) ([]models.DailyProgress, error) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	rows, err := s.db.QueryContext(ctx, queryGetMonthProgress, userId, dateKey(first), dateKey(last))
	if err != nil {
		return nil, fmt.Errorf("failed to query month progress: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}()

	var entries []models.DailyProgress
	for rows.Next() {
		var p models.DailyProgress
		var dateStr, dailyStr, cumulativeStr string
		if err := rows.Scan(&p.UserId, &dateStr, &dailyStr, &cumulativeStr, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}
		if p.Date, err = parseDateKey(dateStr); err != nil {
			return nil, fmt.Errorf("failed to parse progress date '%s': %w", dateStr, err)
		}
		if p.Daily, err = decimal.NewFromString(dailyStr); err != nil {
			return nil, fmt.Errorf("failed to parse daily_saved_g '%s': %w", dailyStr, err)
		}
		if p.Cumulative, err = decimal.NewFromString(cumulativeStr); err != nil {
			return nil, fmt.Errorf("failed to parse cumulative_saved_g '%s': %w", cumulativeStr, err)
		}
		entries = append(entries, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress rows: %w", err)
	}
	return entries, nil
}

// SumDailyForMonth recomputes the month total from the daily rows. The
// summation happens in decimal space, not SQL floats, so it can be
// compared exactly against the denormalized caches.
func (s *Service) SumDailyForMonth(ctx context.Context, userId string, year, month int) (decimal.Decimal, error) {
	entries, err := s.GetMonthProgress(ctx, userId, year, month)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Daily)
	}
	return total, nil
}

// WriteMonthProgress upserts the given ledger rows and optionally the
// user's current-month cache as one transaction. A failure partway
// through a cascading recompute must never leave some dates updated and
// others not.
func (s *Service) WriteMonthProgress(ctx context.Context, userId string, entries []store.MonthEntry, monthCache *decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, queryUpsertProgress,
			userId, dateKey(entry.Date), entry.Daily.String(), entry.Cumulative.String())
		if err != nil {
			return fmt.Errorf("failed to upsert progress for %s: %w", dateKey(entry.Date), err)
		}
	}

	if monthCache != nil {
		if _, err := tx.ExecContext(ctx, querySetMonthCache, monthCache.String(), userId); err != nil {
			return fmt.Errorf("failed to refresh month cache: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit month progress: %w", err)
	}

	zap.L().Debug("Month progress written",
		zap.String("user_id", userId),
		zap.Int("dates", len(entries)),
		zap.Bool("cache_refreshed", monthCache != nil))
	return nil
}
