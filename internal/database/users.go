package database

import (
	"context"
	"database/sql"
	"fmt"

	"greenmoment-go/internal/models"
	"greenmoment-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetActiveUsers returns all active users ordered by creation time.
func (s *Service) GetActiveUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, queryGetActiveUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

func (s *Service) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, queryGetUserByUsername, username)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser inserts a user if the username is not already taken.
func (s *Service) CreateUser(ctx context.Context, username, email string) (string, error) {
	id := uuid.New().String()
	result, err := s.db.ExecContext(ctx, queryInsertUser, id, username, email)
	if err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return "", err
	}
	if affected == 0 {
		existing, err := s.GetUserByUsername(ctx, username)
		if err != nil {
			return "", err
		}
		return existing.Id, nil
	}
	return id, nil
}

func (s *Service) UpdateUserLeague(ctx context.Context, userId, league string) error {
	if _, err := s.db.ExecContext(ctx, queryUpdateUserLeague, league, userId); err != nil {
		return fmt.Errorf("failed to update league for user %s: %w", userId, err)
	}
	return nil
}

// AddToLifetimeTotal adds delta grams to the user's lifetime counter. The
// read-modify-write runs in a transaction so concurrent finalizations for
// different months cannot lose an update.
func (s *Service) AddToLifetimeTotal(ctx context.Context, userId string, delta decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentStr string
	if err := tx.QueryRowContext(ctx, queryGetLifetimeTotal, userId).Scan(&currentStr); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
		}
		return fmt.Errorf("failed to read lifetime total: %w", err)
	}
	current, err := decimal.NewFromString(currentStr)
	if err != nil {
		return fmt.Errorf("failed to parse lifetime total '%s': %w", currentStr, err)
	}

	if _, err := tx.ExecContext(ctx, querySetLifetimeTotal, current.Add(delta).String(), userId); err != nil {
		return fmt.Errorf("failed to write lifetime total: %w", err)
	}
	return tx.Commit()
}

// OverwriteMonthCache replaces the denormalized current-month total.
func (s *Service) OverwriteMonthCache(ctx context.Context, userId string, total decimal.Decimal) error {
	if _, err := s.db.ExecContext(ctx, querySetMonthCache, total.String(), userId); err != nil {
		return fmt.Errorf("failed to overwrite month cache: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var totalStr, monthStr string
	err := row.Scan(&user.Id, &user.Username, &user.Email, &user.CurrentLeague,
		&totalStr, &monthStr, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if user.TotalSaved, err = decimal.NewFromString(totalStr); err != nil {
		return nil, fmt.Errorf("failed to parse total_saved_g '%s': %w", totalStr, err)
	}
	if user.CurrentMonthSaved, err = decimal.NewFromString(monthStr); err != nil {
		return nil, fmt.Errorf("failed to parse current_month_saved_g '%s': %w", monthStr, err)
	}
	return &user, nil
}
