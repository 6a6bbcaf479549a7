package common

import (
	"context"
	"fmt"

	"greenmoment-go/internal/database"
	"greenmoment-go/internal/models"

	"go.uber.org/zap"
)

// SelectUsers resolves the set of users a tool operates on: all active
// users, or a single one when usernameFilter is set.
func SelectUsers(ctx context.Context, dbService *database.Service, usernameFilter string, logger *zap.Logger) ([]models.User, error) {
	if usernameFilter != "" {
		user, err := dbService.GetUserByUsername(ctx, usernameFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user %q: %w", usernameFilter, err)
		}
		logger.Info("Operating on single user",
			zap.String("username", user.Username),
			zap.String("user_id", user.Id))
		return []models.User{*user}, nil
	}

	users, err := dbService.GetActiveUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	logger.Info("Operating on all active users", zap.Int("count", len(users)))
	return users, nil
}
