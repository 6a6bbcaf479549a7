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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"greenmoment-go/internal/common"
	"greenmoment-go/internal/config"
	"greenmoment-go/internal/ingest"

	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "Fetch one snapshot and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting grid data ingester")

	dbService, err := common.InitializeDatabase(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	client, err := ingest.NewClient(cfg.Ingest)
	if err != nil {
		zap.L().Fatal("Failed to create ingest client", zap.Error(err))
	}

	if *once {
		snapshot, err := client.FetchGeneration(ctx)
		if err != nil {
			zap.L().Fatal("Fetch failed", zap.Error(err))
		}
		if err := dbService.InsertGenerationRecords(ctx, snapshot.ObservedAt, snapshot.GenerationMW); err != nil {
			zap.L().Fatal("Persist failed", zap.Error(err))
		}
		zap.L().Info("Snapshot stored",
			zap.Time("observed_at", snapshot.ObservedAt),
			zap.Int("fuels", len(snapshot.GenerationMW)))
		return
	}

	poller := ingest.NewPoller(client, dbService, cfg.Ingest)
	if err := poller.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start poller", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	zap.L().Info("Received shutdown signal", zap.String("signal", sig.String()))

	poller.Stop()
}
