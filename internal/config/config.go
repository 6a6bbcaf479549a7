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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"greenmoment-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	gapTolerance, err := getEnvDuration("CARBON_GAP_TOLERANCE", 60*time.Minute)
	if err != nil {
		return nil, err
	}

	checkInterval, err := getEnvDuration("SCHEDULER_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pollInterval, err := getEnvDuration("INGEST_POLL_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := getEnvDuration("INGEST_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "greenmoment.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Carbon: models.CarbonConfig{
			CadenceMinutes:       getEnvInt("CARBON_CADENCE_MINUTES", 10),
			GapTolerance:         gapTolerance,
			FallbackIntensity:    getEnvFloat("CARBON_FALLBACK_INTENSITY", 500.0),
			FallbackWorstCase:    getEnvFloat("CARBON_FALLBACK_WORST_CASE", 600.0),
			DefaultPowerDrawKW:   getEnvFloat("CARBON_DEFAULT_POWER_KW", 1.0),
			AppliancesFile:       getEnvString("APPLIANCES_FILE", "config/appliances.yaml"),
			EmissionFactorsFile:  getEnvString("EMISSION_FACTORS_FILE", "config/fuels.yaml"),
			LeagueThresholdsFile: getEnvString("LEAGUE_THRESHOLDS_FILE", "config/leagues.yaml"),
		},
		Scheduler: models.SchedulerConfig{
			RunAt:         getEnvString("SCHEDULER_RUN_AT", "17:50"),
			CheckInterval: checkInterval,
		},
		Ingest: models.IngestConfig{
			GenerationURL:  getEnvString("INGEST_GENERATION_URL", "https://www.taipower.com.tw/d006/loadGraph/loadGraph/data/genary.json"),
			WeatherURL:     getEnvString("INGEST_WEATHER_URL", ""),
			PollInterval:   pollInterval,
			RequestTimeout: requestTimeout,
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
