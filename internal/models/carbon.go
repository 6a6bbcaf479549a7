package models

import "time"

// GenerationRecord is one raw per-fuel generation observation as fetched
// from the grid operator, aligned to the 10-minute grid. IngestSeq is the
// monotonically increasing ingestion order assigned by the store; when two
// records land on the same (timestamp, fuel) slot the higher sequence wins.
type GenerationRecord struct {
	Timestamp time.Time `db:"observed_at"`
	Fuel      string    `db:"fuel_type"`
	MW        float64   `db:"generation_mw"`
	IngestSeq int64     `db:"ingest_seq"`
}

// IntensitySample is one point of the derived carbon intensity series,
// in grams CO2e per kWh.
type IntensitySample struct {
	Timestamp time.Time
	Intensity float64
}

// WeatherObservation is an opaque covariate stored alongside generation
// data. The savings engine does not consume it.
type WeatherObservation struct {
	Timestamp time.Time `db:"observed_at"`
	Station   string    `db:"station"`
	Metric    string    `db:"metric"`
	Value     float64   `db:"value"`
}
