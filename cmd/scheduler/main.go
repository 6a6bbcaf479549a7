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
	"os"
	"os/signal"
	"syscall"
	"time"

	"greenmoment-go/internal/aggregator"
	"greenmoment-go/internal/common"
	"greenmoment-go/internal/config"
	"greenmoment-go/internal/intensity"
	"greenmoment-go/internal/league"

	"go.uber.org/zap"
)

func main() {
	runOnce := flag.Bool("once", false, "Run a single aggregation pass immediately and exit")
	dateFlag := flag.String("date", "", "Date to aggregate in YYYY-MM-DD (default: today)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting savings scheduler")

	dbService, err := common.InitializeDatabase(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	appliances, err := common.LoadApplianceTable(cfg.Carbon.AppliancesFile)
	if err != nil {
		zap.L().Fatal("Failed to load appliance table", zap.Error(err))
	}
	factors, err := common.LoadEmissionFactors(cfg.Carbon.EmissionFactorsFile)
	if err != nil {
		zap.L().Fatal("Failed to load emission factors", zap.Error(err))
	}
	rungs, err := common.LoadLeagueTable(cfg.Carbon.LeagueThresholdsFile)
	if err != nil {
		zap.L().Fatal("Failed to load league table", zap.Error(err))
	}
	ladder, err := league.NewLadder(rungs)
	if err != nil {
		zap.L().Fatal("Invalid league table", zap.Error(err))
	}

	loader := intensity.NewLoader(dbService, factors, intensity.Config{
		CadenceMinutes: cfg.Carbon.CadenceMinutes,
		GapTolerance:   cfg.Carbon.GapTolerance,
	})
	service := aggregator.NewService(dbService, loader, appliances, cfg.Carbon, ladder)

	if *runOnce {
		date := time.Now()
		if *dateFlag != "" {
			date, err = time.ParseInLocation("2006-01-02", *dateFlag, time.Local)
			if err != nil {
				zap.L().Fatal("Invalid --date", zap.String("raw", *dateFlag), zap.Error(err))
			}
		}
		stats, err := service.RunDaily(ctx, date)
		if err != nil {
			zap.L().Fatal("Aggregation pass failed", zap.Error(err))
		}
		fmt.Printf("Processed %d users (%d deferred, %d promotions, %d errors)\n",
			stats.UsersProcessed, stats.Deferred, stats.Promotions, stats.Errors)
		return
	}

	runLoop(ctx, service, cfg.Scheduler.RunAt, cfg.Scheduler.CheckInterval)
}

// runLoop fires one aggregation pass per day at the configured wall-clock
// time, checking the clock on a coarse ticker.
func runLoop(ctx context.Context, service *aggregator.Service, runAt string, checkInterval time.Duration) {
	zap.L().Info("Scheduler loop started",
		zap.String("run_at", runAt),
		zap.Duration("check_interval", checkInterval))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	var lastRunDay string
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			today := now.Format("2006-01-02")
			if now.Format("15:04") < runAt || lastRunDay == today {
				continue
			}
			lastRunDay = today

			stats, err := service.RunDaily(ctx, now)
			if err != nil {
				zap.L().Error("Scheduled aggregation failed", zap.Error(err))
				continue
			}
			zap.L().Info("Scheduled aggregation finished",
				zap.Int("processed", stats.UsersProcessed),
				zap.Int("deferred", stats.Deferred),
				zap.Int("promotions", stats.Promotions))
		case sig := <-sigChan:
			zap.L().Info("Received shutdown signal", zap.String("signal", sig.String()))
			return
		case <-ctx.Done():
			return
		}
	}
}
