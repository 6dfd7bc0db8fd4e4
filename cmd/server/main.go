package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/emarutian/recipesync/internal/api"
	"github.com/emarutian/recipesync/internal/app"
	"github.com/emarutian/recipesync/internal/auth"
	"github.com/emarutian/recipesync/internal/config"
	"github.com/emarutian/recipesync/internal/logging"
	"github.com/emarutian/recipesync/internal/metrics"
	"github.com/emarutian/recipesync/internal/scheduler"
	"github.com/emarutian/recipesync/internal/server"
	"github.com/joho/godotenv"
)

func main() {
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash for ADMIN_PASSWORD_HASH and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to hash password:", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting recipesync")

	authConfig, err := auth.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load auth config", "error", err)
		os.Exit(1)
	}
	logger.Info("auth configured",
		"admin_enabled", authConfig.AdminEnabled(),
		"cron_secret_set", authConfig.CronSecret != "")

	collector, err := metrics.NewHTTPCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.Build(ctx, cfg, authConfig, collector.Registry(), logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	mux := http.NewServeMux()
	api.SetupRoutes(mux, application.Orchestrator, application.Recipes, authConfig, application, logger)
	if application.InferenceLogs != nil {
		api.RegisterInferenceLogRoutes(mux, application.InferenceLogs, authConfig, logger)
	}
	mux.Handle("/metrics", collector.Handler())

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	var syncScheduler *scheduler.SyncScheduler
	if cfg.Sync.Interval > 0 {
		syncScheduler = scheduler.NewSyncScheduler(application.Orchestrator, cfg.Sync.Interval, logger)
		go syncScheduler.Start(ctx)
	} else {
		logger.Info("in-process scheduler disabled, waiting for external triggers")
	}

	logger.Info("recipesync started", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	if syncScheduler != nil {
		syncScheduler.Stop()
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	cancel()
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
}
