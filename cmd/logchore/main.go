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

// Records an appliance usage event for a user and prints the provisional
// savings estimate, the same path the mobile backend calls.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"greenmoment-go/internal/chores"
	"greenmoment-go/internal/common"
	"greenmoment-go/internal/config"
	"greenmoment-go/internal/intensity"

	"go.uber.org/zap"
)

func main() {
	usernameFlag := flag.String("username", "", "Username logging the chore (required)")
	applianceFlag := flag.String("appliance", "", "Appliance type, e.g. dryer (required)")
	startFlag := flag.String("start", "", "Start time, RFC 3339 or \"2006-01-02 15:04\" local (required)")
	endFlag := flag.String("end", "", "End time, same formats (required)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	start, err := parseWhen(*startFlag)
	if err != nil {
		logger.Fatal("Invalid --start", zap.Error(err))
	}
	end, err := parseWhen(*endFlag)
	if err != nil {
		logger.Fatal("Invalid --end", zap.Error(err))
	}

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

	loader := intensity.NewLoader(dbService, factors, intensity.Config{
		CadenceMinutes: cfg.Carbon.CadenceMinutes,
		GapTolerance:   cfg.Carbon.GapTolerance,
	})
	service := chores.NewService(dbService, loader, appliances, cfg.Carbon)

	chore, estimate, err := service.LogChore(ctx, chores.LogRequest{
		Username:      *usernameFlag,
		ApplianceType: *applianceFlag,
		StartTime:     start,
		EndTime:       end,
	})
	if err != nil {
		logger.Fatal("Failed to log chore", zap.Error(err))
	}

	fmt.Printf("Chore logged: %s\n", chore.Id)
	fmt.Printf("  %s, %s to %s (%.1f kW)\n",
		chore.ApplianceType,
		chore.StartTime.Format("2006-01-02 15:04"),
		chore.EndTime.Format("15:04"),
		chore.PowerDrawKW)
	fmt.Printf("  estimated savings: %.1f g CO2e (grid at %.0f g/kWh, worst window %.0f g/kWh)\n",
		estimate.SavedGrams, estimate.ActualIntensity, estimate.WorstCaseIntensity)
}

func parseWhen(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("time is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", raw, time.Local)
}
