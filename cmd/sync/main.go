package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emarutian/recipesync/internal/app"
	"github.com/emarutian/recipesync/internal/auth"
	"github.com/emarutian/recipesync/internal/config"
	"github.com/emarutian/recipesync/internal/logging"
	"github.com/emarutian/recipesync/internal/models"
	"github.com/joho/godotenv"
)

func main() {
	envFile := flag.String("env", ".env", "path to an optional .env file")
	batchSize := flag.Int("batch", 0, "override SYNC_BATCH_SIZE for this run")
	contentDir := flag.String("content-dir", "", "override CONTENT_DIR for this run")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Warn("failed to load env file", "path", *envFile, "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *batchSize > 0 {
		cfg.Sync.BatchSize = *batchSize
	}
	if *contentDir != "" {
		cfg.Store.ContentDir = *contentDir
	}

	logger, err := logging.NewWithWriter(cfg.Logging, os.Stderr)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	authConfig, err := auth.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load auth config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg, authConfig, nil, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	report, err := application.Orchestrator.Run(ctx, models.Trigger{Kind: models.TriggerInternal})
	application.Close()
	if err != nil {
		logger.Error("sync run aborted", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(1)
	}
}
