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

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"greenmoment-go/internal/models"
	"greenmoment-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time checks: *Service must satisfy the engine's store contracts.
var (
	_ store.CarbonStore = (*Service)(nil)
	_ store.SampleStore = (*Service)(nil)
)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT,
		current_league TEXT NOT NULL DEFAULT 'bronze',
		total_saved_g TEXT NOT NULL DEFAULT '0',
		current_month_saved_g TEXT NOT NULL DEFAULT '0',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chores (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		appliance_type TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		power_draw_kw REAL NOT NULL,
		estimated_saved_g REAL NOT NULL DEFAULT 0,
		average_intensity REAL NOT NULL DEFAULT 0,
		actual_emitted_g REAL NOT NULL DEFAULT 0,
		worst_case_emitted_g REAL NOT NULL DEFAULT 0,
		actual_saved_g REAL NOT NULL DEFAULT 0,
		recalculated BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	-- Per-day carbon ledger (source of truth for all monthly numbers)
	CREATE TABLE IF NOT EXISTS daily_carbon_progress (
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		daily_saved_g TEXT NOT NULL,
		cumulative_saved_g TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, date)
	);

	CREATE TABLE IF NOT EXISTS monthly_summaries (
		user_id TEXT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		total_saved_g TEXT NOT NULL,
		league_at_start TEXT NOT NULL,
		league_at_end TEXT NOT NULL,
		upgraded BOOLEAN NOT NULL DEFAULT 0,
		finalized_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, year, month)
	);

	-- Raw per-fuel generation observations; ingest_seq preserves fetch
	-- order so duplicate slots resolve to the later fetch.
	CREATE TABLE IF NOT EXISTS generation_records (
		ingest_seq INTEGER PRIMARY KEY AUTOINCREMENT,
		observed_at TIMESTAMP NOT NULL,
		fuel_type TEXT NOT NULL,
		generation_mw REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS weather_observations (
		observed_at TIMESTAMP NOT NULL,
		station TEXT NOT NULL,
		metric TEXT NOT NULL,
		value REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS calculation_deferrals (
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		reason TEXT NOT NULL,
		recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_chores_user_start ON chores(user_id, start_time);
	CREATE INDEX IF NOT EXISTS idx_progress_user_date ON daily_carbon_progress(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_generation_observed ON generation_records(observed_at);
	CREATE INDEX IF NOT EXISTS idx_weather_observed ON weather_observations(observed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dateKey formats a calendar date the way the ledger stores it.
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// parseDateKey reads a stored date back as local midnight so that a key
// written from a local calendar day round-trips to the same day's window.
func parseDateKey(key string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", key, time.Local)
}
