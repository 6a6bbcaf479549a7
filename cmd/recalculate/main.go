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

// Recalculates a month of savings from the raw chores and intensity
// series, replacing whatever the ledger holds. Used after late intensity
// data arrives or emission factors change.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"greenmoment-go/internal/aggregator"
	"greenmoment-go/internal/common"
	"greenmoment-go/internal/config"
	"greenmoment-go/internal/intensity"
	"greenmoment-go/internal/league"

	"go.uber.org/zap"
)

func main() {
	userFlag := flag.String("user", "", "Username to recalculate (default: all active users)")
	yearFlag := flag.Int("year", 0, "Year to recalculate (default: current)")
	monthFlag := flag.Int("month", 0, "Month to recalculate (default: current)")
	finalize := flag.Bool("finalize", false, "Also rewrite the monthly summary and league state")
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

	appliances, err := common.LoadApplianceTable(cfg.Carbon.AppliancesFile)
	if err != nil {
		logger.Fatal("Failed to load appliance table", zap.Error(err))
	}
	factors, err := common.LoadEmissionFactors(cfg.Carbon.EmissionFactorsFile)
	if err != nil {
		logger.Fatal("Failed to load emission factors", zap.Error(err))
	}
	rungs, err := common.LoadLeagueTable(cfg.Carbon.LeagueThresholdsFile)
	if err != nil {
		logger.Fatal("Failed to load league table", zap.Error(err))
	}
	ladder, err := league.NewLadder(rungs)
	if err != nil {
		logger.Fatal("Invalid league table", zap.Error(err))
	}

	now := time.Now()
	year, month := *yearFlag, *monthFlag
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		logger.Fatal("Invalid month", zap.Int("month", month))
	}

	loader := intensity.NewLoader(dbService, factors, intensity.Config{
		CadenceMinutes: cfg.Carbon.CadenceMinutes,
		GapTolerance:   cfg.Carbon.GapTolerance,
	})
	service := aggregator.NewService(dbService, loader, appliances, cfg.Carbon, ladder)

	users, err := common.SelectUsers(ctx, dbService, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to select users", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("RECALCULATION %d-%02d", year, month), common.DefaultWidth)

	failed := 0
	for _, user := range users {
		if err := service.RecomputeUserMonth(ctx, user.Id, year, month); err != nil {
			failed++
			logger.Error("Recalculation failed",
				zap.String("user", user.Username), zap.Error(err))
			fmt.Printf("  ✗ %s: %v\n", user.Username, err)
			continue
		}

		total, err := dbService.SumDailyForMonth(ctx, user.Id, year, month)
		if err != nil {
			logger.Error("Failed to read back month total",
				zap.String("user", user.Username), zap.Error(err))
			continue
		}
		fmt.Printf("  ✓ %-20s %12s g\n", user.Username, total.StringFixed(1))

		if *finalize {
			outcome, err := service.FinalizeMonth(ctx, user, year, month)
			if err != nil {
				logger.Error("Finalization failed",
					zap.String("user", user.Username), zap.Error(err))
				continue
			}
			if outcome.Promoted {
				fmt.Printf("    promoted %s → %s\n", outcome.OldLeague, outcome.NewLeague)
			}
		}
	}

	common.PrintFooter(fmt.Sprintf("SUMMARY: %d users recalculated, %d failed", len(users)-failed, failed), common.DefaultWidth)
}
