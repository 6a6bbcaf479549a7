package store

import (
	"context"
	"errors"
	"time"

	"greenmoment-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across the engine and its backends.
var (
	// ErrInvalidInterval rejects a usage event whose end does not follow
	// its start.
	ErrInvalidInterval = errors.New("usage interval end must be after start")

	// ErrInsufficientData signals a gap in the intensity series larger
	// than the configured tolerance inside a required range. Callers must
	// defer and retry rather than record a zero.
	ErrInsufficientData = errors.New("insufficient intensity data for range")

	// ErrLedgerDrift signals that a user's denormalized month cache
	// disagrees with the sum of the daily rows.
	ErrLedgerDrift = errors.New("cached month total drifted from daily rows")

	// ErrUserNotFound is returned for lookups of unknown users.
	ErrUserNotFound = errors.New("user not found")
)

// LogChoreParams contains the parameters for recording a usage event.
type LogChoreParams struct {
	Id               string
	UserId           string
	ApplianceType    string
	StartTime        time.Time
	EndTime          time.Time
	PowerDrawKW      float64
	EstimatedSaved   float64
	AverageIntensity float64
}

// ChoreResultParams carries the authoritative recalculation numbers
// written back onto a chore row.
type ChoreResultParams struct {
	ChoreId          string
	ActualEmitted    float64
	WorstCaseEmitted float64
	ActualSaved      float64
}

// MonthEntry is one (date, daily, cumulative) row of a rebuilt month.
type MonthEntry struct {
	Date       time.Time
	Daily      decimal.Decimal
	Cumulative decimal.Decimal
}

// FinalizeMonthParams contains the parameters for writing a monthly summary.
type FinalizeMonthParams struct {
	UserId        string
	Month         int
	Year          int
	TotalSaved    decimal.Decimal
	LeagueAtStart string
	LeagueAtEnd   string
	Upgraded      bool
}

// SampleStore is the persistence contract of the ingestion side: raw
// per-fuel generation records plus weather covariates.
type SampleStore interface {
	InsertGenerationRecords(ctx context.Context, observedAt time.Time, generationMW map[string]float64) error
	GetGenerationRange(ctx context.Context, start, end time.Time) ([]models.GenerationRecord, error)
	InsertWeatherObservations(ctx context.Context, observations []models.WeatherObservation) error
}

// CarbonStore is the persistence contract of the savings engine.
type CarbonStore interface {
	GetActiveUsers(ctx context.Context) ([]models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	InsertChore(ctx context.Context, params LogChoreParams) (*models.Chore, error)
	GetChoresForUserDate(ctx context.Context, userId string, date time.Time) ([]models.Chore, error)
	GetChoresForUserMonth(ctx context.Context, userId string, year, month int) ([]models.Chore, error)
	MarkChoreRecalculated(ctx context.Context, params ChoreResultParams) error

	GetMonthProgress(ctx context.Context, userId string, year, month int) ([]models.DailyProgress, error)
	SumDailyForMonth(ctx context.Context, userId string, year, month int) (decimal.Decimal, error)

	// WriteMonthProgress replaces the given rows and, when monthCache is
	// non-nil, refreshes the user's current-month cache, all in a single
	// transaction: every date updated, or none.
	WriteMonthProgress(ctx context.Context, userId string, entries []MonthEntry, monthCache *decimal.Decimal) error

	UpsertMonthlySummary(ctx context.Context, params FinalizeMonthParams) error
	GetMonthlySummary(ctx context.Context, userId string, year, month int) (*models.MonthlySummary, error)
	UpdateUserLeague(ctx context.Context, userId, league string) error
	AddToLifetimeTotal(ctx context.Context, userId string, delta decimal.Decimal) error
	OverwriteMonthCache(ctx context.Context, userId string, total decimal.Decimal) error

	RecordDeferral(ctx context.Context, userId string, date time.Time, reason string) error
	ListDeferrals(ctx context.Context) ([]models.Deferral, error)
	ClearDeferral(ctx context.Context, userId string, date time.Time) error
}
