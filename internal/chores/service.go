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

// Package chores is the user-facing logging path. It records appliance
// usage events with a provisional savings estimate; the nightly batch
// replaces the estimate with the authoritative number.
package chores

import (
	"context"
	"fmt"
	"time"

	"greenmoment-go/internal/intensity"
	"greenmoment-go/internal/models"
	"greenmoment-go/internal/savings"
	"greenmoment-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxChoreDuration bounds a single usage event. Anything longer is a
// client clock bug, not an appliance run.
const maxChoreDuration = 24 * time.Hour

type Service struct {
	store      store.CarbonStore
	loader     *intensity.Loader
	appliances map[string]float64
	cfg        models.CarbonConfig
}

func NewService(carbonStore store.CarbonStore, loader *intensity.Loader, appliances map[string]float64, cfg models.CarbonConfig) *Service {
	return &Service{store: carbonStore, loader: loader, appliances: appliances, cfg: cfg}
}

// LogRequest describes one appliance usage event to record.
type LogRequest struct {
	Username      string
	ApplianceType string
	StartTime     time.Time
	EndTime       time.Time
}

// LogChore validates and records a usage event, returning the stored
// chore together with the provisional estimate shown to the user. The
// estimate never fails on data gaps; it degrades to the configured
// fallback intensities instead.
func (s *Service) LogChore(ctx context.Context, req LogRequest) (*models.Chore, *savings.Result, error) {
	if err := validate(req); err != nil {
		return nil, nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, nil, err
	}

	series, err := s.loader.LoadDay(ctx, req.StartTime)
	if err != nil {
		return nil, nil, err
	}
	calc := savings.NewCalculator(series, s.appliances, s.cfg)

	draft := models.Chore{
		Id:            uuid.New().String(),
		UserId:        user.Id,
		ApplianceType: req.ApplianceType,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		PowerDrawKW:   calc.PowerDraw(req.ApplianceType),
	}
	estimate := calc.Provisional(draft)

	chore, err := s.store.InsertChore(ctx, store.LogChoreParams{
		Id:               draft.Id,
		UserId:           draft.UserId,
		ApplianceType:    draft.ApplianceType,
		StartTime:        draft.StartTime,
		EndTime:          draft.EndTime,
		PowerDrawKW:      draft.PowerDrawKW,
		EstimatedSaved:   estimate.SavedGrams,
		AverageIntensity: estimate.ActualIntensity,
	})
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("Chore logged",
		zap.String("user", req.Username),
		zap.String("appliance", req.ApplianceType),
		zap.Float64("estimated_saved_g", estimate.SavedGrams))
	return chore, estimate, nil
}

func validate(req LogRequest) error {
	if req.Username == "" {
		return fmt.Errorf("username is required")
	}
	if req.ApplianceType == "" {
		return fmt.Errorf("appliance type is required")
	}
	if !req.EndTime.After(req.StartTime) {
		return fmt.Errorf("%w: start=%s end=%s", store.ErrInvalidInterval,
			req.StartTime.Format(time.RFC3339), req.EndTime.Format(time.RFC3339))
	}
	if req.EndTime.Sub(req.StartTime) > maxChoreDuration {
		return fmt.Errorf("%w: duration %s exceeds %s", store.ErrInvalidInterval,
			req.EndTime.Sub(req.StartTime), maxChoreDuration)
	}
	return nil
}
