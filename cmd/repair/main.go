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

// Audits every user's denormalized month cache against the daily ledger
// rows and rewrites caches that drifted.
package main

import (
	"context"
	"flag"
	"fmt"

	"greenmoment-go/internal/aggregator"
	"greenmoment-go/internal/common"
	"greenmoment-go/internal/config"
	"greenmoment-go/internal/intensity"
	"greenmoment-go/internal/league"

	"go.uber.org/zap"
)

func main() {
	userFlag := flag.String("user", "", "Username to audit (default: all active users)")
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

	loader := intensity.NewLoader(dbService, factors, intensity.Config{
		CadenceMinutes: cfg.Carbon.CadenceMinutes,
		GapTolerance:   cfg.Carbon.GapTolerance,
	})
	service := aggregator.NewService(dbService, loader, nil, cfg.Carbon, ladder)

	users, err := common.SelectUsers(ctx, dbService, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to select users", zap.Error(err))
	}

	common.PrintHeader("LEDGER CACHE AUDIT", common.DefaultWidth)

	repaired, failed := 0, 0
	for _, user := range users {
		drifted, err := service.Repair(ctx, user)
		if err != nil {
			failed++
			fmt.Printf("  ✗ %s: %v\n", user.Username, err)
			continue
		}
		if drifted {
			repaired++
			fmt.Printf("  ✓ %-20s cache repaired (was %s g)\n",
				user.Username, user.CurrentMonthSaved.StringFixed(1))
		} else {
			fmt.Printf("    %-20s clean\n", user.Username)
		}
	}

	common.PrintFooter(fmt.Sprintf("SUMMARY: %d users audited, %d repaired, %d failed",
		len(users), repaired, failed), common.DefaultWidth)

	logger.Info("Cache audit completed",
		zap.Int("audited", len(users)),
		zap.Int("repaired", repaired),
		zap.Int("failed", failed))
}
