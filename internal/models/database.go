package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a user in the system. TotalSaved and CurrentMonthSaved
// are denormalized caches in grams CO2e; the daily progress rows are the
// source of truth and the caches are re-derivable at any time.
type User struct {
	Id                string          `db:"id"`
	Username          string          `db:"username"`
	Email             string          `db:"email"`
	CurrentLeague     string          `db:"current_league"`
	TotalSaved        decimal.Decimal `db:"total_saved_g"`
	CurrentMonthSaved decimal.Decimal `db:"current_month_saved_g"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// Chore represents one logged appliance usage event. Immutable once
// created, except for the recalculation fields which the authoritative
// monthly pass fills in.
type Chore struct {
	Id            string    `db:"id"`
	UserId        string    `db:"user_id"`
	ApplianceType string    `db:"appliance_type"`
	StartTime     time.Time `db:"start_time"`
	EndTime       time.Time `db:"end_time"`
	PowerDrawKW   float64   `db:"power_draw_kw"`

	// Provisional numbers shown to the user at logging time.
	EstimatedSaved   float64 `db:"estimated_saved_g"`
	AverageIntensity float64 `db:"average_intensity"`

	// Authoritative recalculation results.
	ActualEmitted    float64   `db:"actual_emitted_g"`
	WorstCaseEmitted float64   `db:"worst_case_emitted_g"`
	ActualSaved      float64   `db:"actual_saved_g"`
	Recalculated     bool      `db:"recalculated"`
	CreatedAt        time.Time `db:"created_at"`
}

// DurationMinutes returns the chore duration in whole minutes, rounded up.
func (c Chore) DurationMinutes() int {
	d := c.EndTime.Sub(c.StartTime)
	return int((d + time.Minute - 1) / time.Minute)
}

// DurationHours returns the chore duration in fractional hours.
func (c Chore) DurationHours() float64 {
	return c.EndTime.Sub(c.StartTime).Hours()
}

// DailyProgress is one row of the per-user carbon ledger. Cumulative is
// the running sum of Daily within the row's month only: it resets to
// Daily on the first entry of a month.
type DailyProgress struct {
	UserId     string          `db:"user_id"`
	Date       time.Time       `db:"date"`
	Daily      decimal.Decimal `db:"daily_saved_g"`
	Cumulative decimal.Decimal `db:"cumulative_saved_g"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

// MonthlySummary records a finalized month for a user.
type MonthlySummary struct {
	UserId        string          `db:"user_id"`
	Month         int             `db:"month"`
	Year          int             `db:"year"`
	TotalSaved    decimal.Decimal `db:"total_saved_g"`
	LeagueAtStart string          `db:"league_at_start"`
	LeagueAtEnd   string          `db:"league_at_end"`
	Upgraded      bool            `db:"upgraded"`
	FinalizedAt   time.Time       `db:"finalized_at"`
}

// Deferral marks a (user, date) whose aggregation was skipped because the
// intensity series had a gap. The next scheduled run retries it instead of
// recording a false zero.
type Deferral struct {
	UserId     string    `db:"user_id"`
	Date       time.Time `db:"date"`
	Reason     string    `db:"reason"`
	RecordedAt time.Time `db:"recorded_at"`
}
