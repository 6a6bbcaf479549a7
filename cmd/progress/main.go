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

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"greenmoment-go/internal/common"
	"greenmoment-go/internal/config"
	"greenmoment-go/internal/database"
	"greenmoment-go/internal/models"

	"go.uber.org/zap"
)

type progressStats struct {
	totalUsers    int
	usersWithRows int
	totalRows     int
}

func printUserHeader(user models.User, rowCount int) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Username, user.Email)
	fmt.Printf("│  League: %s\n", user.CurrentLeague)
	fmt.Printf("│  Lifetime: %s g, current month cache: %s g\n",
		user.TotalSaved.StringFixed(1), user.CurrentMonthSaved.StringFixed(1))
	fmt.Printf("│  Days on ledger: %d\n", rowCount)
	common.PrintBoxSeparator(78)
}

func printRows(rows []models.DailyProgress) {
	for i, row := range rows {
		symbol := common.BoxPrefix(i == len(rows)-1)
		fmt.Printf("%s %s: %12s g daily %14s g cumulative\n",
			symbol,
			row.Date.Format("2006-01-02"),
			row.Daily.StringFixed(1),
			row.Cumulative.StringFixed(1))
	}
}

func processUser(ctx context.Context, user models.User, dbService *database.Service, year, month int, logger *zap.Logger) (int, error) {
	rows, err := dbService.GetMonthProgress(ctx, user.Id, year, month)
	if err != nil {
		return 0, fmt.Errorf("failed to get month progress: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	printUserHeader(user, len(rows))
	printRows(rows)

	summary, err := dbService.GetMonthlySummary(ctx, user.Id, year, month)
	if err != nil {
		logger.Warn("Failed to read monthly summary",
			zap.String("user", user.Username), zap.Error(err))
	} else if summary != nil {
		fmt.Printf("│  Finalized: %s g, %s to %s\n",
			summary.TotalSaved.StringFixed(1), summary.LeagueAtStart, summary.LeagueAtEnd)
	}

	return len(rows), nil
}

func main() {
	userFlag := flag.String("user", "", "Username to report on (default: all active users)")
	yearFlag := flag.Int("year", 0, "Year to report (default: current)")
	monthFlag := flag.Int("month", 0, "Month to report (default: current)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()

	dbService, err := common.InitializeDatabase(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	now := time.Now()
	year, month := *yearFlag, *monthFlag
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}

	users, err := common.SelectUsers(ctx, dbService, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to select users", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("CARBON LEDGER REPORT %d-%02d", year, month), common.DefaultWidth)

	stats := progressStats{}
	for _, user := range users {
		stats.totalUsers++
		rowCount, err := processUser(ctx, user, dbService, year, month, logger)
		if err != nil {
			logger.Error("Failed to process user",
				zap.String("user", user.Username), zap.Error(err))
			continue
		}
		if rowCount > 0 {
			stats.usersWithRows++
			stats.totalRows += rowCount
		}
	}

	common.PrintFooter(fmt.Sprintf("SUMMARY: %d users with ledger rows (%d days across %d users queried)",
		stats.usersWithRows, stats.totalRows, stats.totalUsers), common.DefaultWidth)
}
