package database

import (
	"context"
	"fmt"
	"time"

	"greenmoment-go/internal/models"

	"go.uber.org/zap"
)

// InsertGenerationRecords stores one fetched snapshot of per-fuel
// generation. Rows are append-only; the autoincrement ingest_seq captures
// fetch order so the series build can resolve duplicate slots in favor of
// the later fetch. Overlapping ingestion runs are therefore an expected
// input condition, not a failure.
func (s *Service) InsertGenerationRecords(ctx context.Context, observedAt time.Time, generationMW map[string]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for fuel, mw := range generationMW {
		if _, err := tx.ExecContext(ctx, queryInsertGeneration, observedAt.UTC(), fuel, mw); err != nil {
			return fmt.Errorf("failed to insert generation record for %s: %w", fuel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit generation snapshot: %w", err)
	}

	zap.L().Debug("Generation snapshot stored",
		zap.Time("observed_at", observedAt),
		zap.Int("fuels", len(generationMW)))
	return nil
}

// GetGenerationRange returns raw generation records with
// start <= observed_at < end, ordered by time then ingestion sequence.
func (s *Service) GetGenerationRange(ctx context.Context, start, end time.Time) ([]models.GenerationRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryGetGenerationRange, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query generation records: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}()

	var records []models.GenerationRecord
	for rows.Next() {
		var rec models.GenerationRecord
		if err := rows.Scan(&rec.Timestamp, &rec.Fuel, &rec.MW, &rec.IngestSeq); err != nil {
			return nil, fmt.Errorf("failed to scan generation record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generation rows: %w", err)
	}
	return records, nil
}

// InsertWeatherObservations stores weather covariates alongside the
// generation data. The savings engine never reads them.
func (s *Service) InsertWeatherObservations(ctx context.Context, observations []models.WeatherObservation) error {
	if len(observations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, obs := range observations {
		if _, err := tx.ExecContext(ctx, queryInsertWeather, obs.Timestamp.UTC(), obs.Station, obs.Metric, obs.Value); err != nil {
			return fmt.Errorf("failed to insert weather observation: %w", err)
		}
	}
	return tx.Commit()
}
