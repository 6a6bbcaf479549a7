package database

import (
	"context"
	"database/sql"
	"fmt"

	"greenmoment-go/internal/models"
	"greenmoment-go/internal/store"

	"github.com/shopspring/decimal"
)

// UpsertMonthlySummary creates or replaces the finalized record of a month.
func (s *Service) UpsertMonthlySummary(ctx context.Context, params store.FinalizeMonthParams) error {
	_, err := s.db.ExecContext(ctx, queryUpsertSummary,
		params.UserId, params.Month, params.Year, params.TotalSaved.String(),
		params.LeagueAtStart, params.LeagueAtEnd, params.Upgraded)
	if err != nil {
		return fmt.Errorf("failed to upsert monthly summary: %w", err)
	}
	return nil
}

// GetMonthlySummary returns the finalized record for a month, or nil if
// the month has not been finalized yet.
func (s *Service) GetMonthlySummary(ctx context.Context, userId string, year, month int) (*models.MonthlySummary, error) {
	var summary models.MonthlySummary
	var totalStr string
	err := s.db.QueryRowContext(ctx, queryGetSummary, userId, year, month).Scan(
		&summary.UserId, &summary.Month, &summary.Year, &totalStr,
		&summary.LeagueAtStart, &summary.LeagueAtEnd, &summary.Upgraded, &summary.FinalizedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly summary: %w", err)
	}

	if summary.TotalSaved, err = decimal.NewFromString(totalStr); err != nil {
		return nil, fmt.Errorf("failed to parse total_saved_g '%s': %w", totalStr, err)
	}
	return &summary, nil
}
