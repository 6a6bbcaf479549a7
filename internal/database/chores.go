package database

import (
	"context"
	"fmt"
	"time"

	"greenmoment-go/internal/models"
	"greenmoment-go/internal/store"

	"go.uber.org/zap"
)

// InsertChore records a validated usage event with its provisional numbers.
func (s *Service) InsertChore(ctx context.Context, params store.LogChoreParams) (*models.Chore, error) {
	if !params.EndTime.After(params.StartTime) {
		return nil, fmt.Errorf("%w: start=%s end=%s",
			store.ErrInvalidInterval, params.StartTime.Format(time.RFC3339), params.EndTime.Format(time.RFC3339))
	}

	_, err := s.db.ExecContext(ctx, queryInsertChore,
		params.Id, params.UserId, params.ApplianceType,
		params.StartTime.UTC(), params.EndTime.UTC(), params.PowerDrawKW,
		params.EstimatedSaved, params.AverageIntensity)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chore: %w", err)
	}

	zap.L().Info("Chore logged",
		zap.String("chore_id", params.Id),
		zap.String("user_id", params.UserId),
		zap.String("appliance", params.ApplianceType),
		zap.Float64("estimated_saved_g", params.EstimatedSaved))

	return s.getChore(ctx, params.Id)
}

// GetChoresForUserDate returns the user's chores whose start time falls on
// the given calendar date (in the date's location).
func (s *Service) GetChoresForUserDate(ctx context.Context, userId string, date time.Time) ([]models.Chore, error) {
	y, m, d := date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	return s.choresInWindow(ctx, userId, dayStart, dayStart.AddDate(0, 0, 1))
}

// GetChoresForUserMonth returns the user's chores for a calendar month.
func (s *Service) GetChoresForUserMonth(ctx context.Context, userId string, year, month int) ([]models.Chore, error) {
	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	return s.choresInWindow(ctx, userId, monthStart, monthStart.AddDate(0, 1, 0))
}

// MarkChoreRecalculated writes the authoritative monthly numbers onto a
// chore and flags it as recalculated.
func (s *Service) MarkChoreRecalculated(ctx context.Context, params store.ChoreResultParams) error {
	result, err := s.db.ExecContext(ctx, queryMarkChoreRecalculated,
		params.ActualEmitted, params.WorstCaseEmitted, params.ActualSaved, params.ChoreId)
	if err != nil {
		return fmt.Errorf("failed to mark chore recalculated: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("chore %s not found", params.ChoreId)
	}
	return nil
}

func (s *Service) choresInWindow(ctx context.Context, userId string, start, end time.Time) ([]models.Chore, error) {
	rows, err := s.db.QueryContext(ctx, queryGetChoresInWindow, userId, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query chores: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}()

	var chores []models.Chore
	for rows.Next() {
		var c models.Chore
		err := rows.Scan(&c.Id, &c.UserId, &c.ApplianceType, &c.StartTime, &c.EndTime,
			&c.PowerDrawKW, &c.EstimatedSaved, &c.AverageIntensity,
			&c.ActualEmitted, &c.WorstCaseEmitted, &c.ActualSaved, &c.Recalculated, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chore: %w", err)
		}
		chores = append(chores, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chore rows: %w", err)
	}
	return chores, nil
}

func (s *Service) getChore(ctx context.Context, id string) (*models.Chore, error) {
	var c models.Chore
	err := s.db.QueryRowContext(ctx, queryGetChore, id).Scan(
		&c.Id, &c.UserId, &c.ApplianceType, &c.StartTime, &c.EndTime,
		&c.PowerDrawKW, &c.EstimatedSaved, &c.AverageIntensity,
		&c.ActualEmitted, &c.WorstCaseEmitted, &c.ActualSaved, &c.Recalculated, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load chore %s: %w", id, err)
	}
	return &c, nil
}
