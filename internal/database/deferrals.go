package database

import (
	"context"
	"fmt"
	"time"

	"greenmoment-go/internal/models"

	"go.uber.org/zap"
)

// RecordDeferral marks a (user, date) whose aggregation hit an intensity
// gap, so the next scheduled run retries it instead of writing a zero.
func (s *Service) RecordDeferral(ctx context.Context, userId string, date time.Time, reason string) error {
	if _, err := s.db.ExecContext(ctx, queryUpsertDeferral, userId, dateKey(date), reason); err != nil {
		return fmt.Errorf("failed to record deferral: %w", err)
	}
	zap.L().Warn("Aggregation deferred",
		zap.String("user_id", userId),
		zap.String("date", dateKey(date)),
		zap.String("reason", reason))
	return nil
}

func (s *Service) ListDeferrals(ctx context.Context) ([]models.Deferral, error) {
	rows, err := s.db.QueryContext(ctx, queryListDeferrals)
	if err != nil {
		return nil, fmt.Errorf("failed to list deferrals: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}()

	var deferrals []models.Deferral
	for rows.Next() {
		var d models.Deferral
		var dateStr string
		if err := rows.Scan(&d.UserId, &dateStr, &d.Reason, &d.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deferral: %w", err)
		}
		if d.Date, err = parseDateKey(dateStr); err != nil {
			return nil, fmt.Errorf("failed to parse deferral date '%s': %w", dateStr, err)
		}
		deferrals = append(deferrals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deferral rows: %w", err)
	}
	return deferrals, nil
}

func (s *Service) ClearDeferral(ctx context.Context, userId string, date time.Time) error {
	if _, err := s.db.ExecContext(ctx, queryClearDeferral, userId, dateKey(date)); err != nil {
		return fmt.Errorf("failed to clear deferral: %w", err)
	}
	return nil
}
