package models

import "time"

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig
	Carbon    CarbonConfig
	Scheduler SchedulerConfig
	Ingest    IngestConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// CarbonConfig holds the knobs of the savings engine. Intensities are in
// grams CO2e per kWh throughout; anything upstream that still speaks
// kilograms is converted at the ingestion edge.
type CarbonConfig struct {
	CadenceMinutes       int
	GapTolerance         time.Duration
	FallbackIntensity    float64 // provisional-estimate fallback when no data resolves
	FallbackWorstCase    float64 // worst-window fallback for empty days
	DefaultPowerDrawKW   float64 // unknown appliance types degrade to this draw
	AppliancesFile       string
	EmissionFactorsFile  string
	LeagueThresholdsFile string
}

// SchedulerConfig holds daily batch job settings
type SchedulerConfig struct {
	RunAt         string // local wall-clock time, "HH:MM"
	CheckInterval time.Duration
}

// IngestConfig holds grid data polling settings
type IngestConfig struct {
	GenerationURL  string
	WeatherURL     string
	PollInterval   time.Duration
	RequestTimeout time.Duration
}
