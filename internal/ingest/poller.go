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

package ingest

import (
	"context"
	"fmt"
	"time"

	"greenmoment-go/internal/models"
	"greenmoment-go/internal/store"

	"go.uber.org/zap"
)

// Poller drives the periodic grid polling loop and persists what the
// client fetches.
type Poller struct {
	client   *Client
	samples  store.SampleStore
	interval time.Duration
	lastSlot time.Time
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewPoller(client *Client, samples store.SampleStore, cfg models.IngestConfig) *Poller {
	return &Poller{
		client:   client,
		samples:  samples,
		interval: cfg.PollInterval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the polling process. The first fetch runs immediately so a
// restart does not wait a full interval to resume coverage.
func (p *Poller) Start(ctx context.Context) error {
	zap.L().Info("Starting grid data poller")

	snapshot, err := p.client.FetchGeneration(ctx)
	if err != nil {
		return fmt.Errorf("initial generation fetch failed: %w", err)
	}
	if err := p.persist(ctx, snapshot); err != nil {
		return err
	}

	go p.pollLoop(ctx)

	zap.L().Info("Grid data poller started successfully",
		zap.Duration("polling_interval", p.interval))
	return nil
}

// Stop gracefully stops the poller.
func (p *Poller) Stop() {
	zap.L().Info("Stopping grid data poller")
	close(p.stopChan)
	<-p.doneChan
	zap.L().Info("Grid data poller stopped")
}

func (p *Poller) pollLoop(ctx context.Context) {
	defer close(p.doneChan)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.pollOnce(ctx)
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	snapshot, err := p.client.FetchGeneration(ctx)
	if err != nil {
		zap.L().Error("Generation poll failed", zap.Error(err))
		return
	}

	// The upstream holds each grid slot for ten minutes; refetching the
	// same slot would only bump ingestion sequences for identical data.
	if snapshot.ObservedAt.Equal(p.lastSlot) {
		zap.L().Debug("Grid slot unchanged since last poll",
			zap.Time("slot", snapshot.ObservedAt))
		return
	}

	if err := p.persist(ctx, snapshot); err != nil {
		zap.L().Error("Failed to persist snapshot", zap.Error(err))
		return
	}

	observations, err := p.client.FetchWeather(ctx)
	if err != nil {
		zap.L().Warn("Weather poll failed", zap.Error(err))
	} else if len(observations) > 0 {
		if err := p.samples.InsertWeatherObservations(ctx, observations); err != nil {
			zap.L().Warn("Failed to persist weather observations", zap.Error(err))
		}
	}
}

func (p *Poller) persist(ctx context.Context, snapshot *Snapshot) error {
	if err := p.samples.InsertGenerationRecords(ctx, snapshot.ObservedAt, snapshot.GenerationMW); err != nil {
		return fmt.Errorf("failed to persist generation records: %w", err)
	}
	p.lastSlot = snapshot.ObservedAt
	return nil
}
