// Package app wires configuration into a ready-to-run orchestrator and its
// collaborators. Both the HTTP server and the one-shot CLI build through it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/emarutian/recipesync/internal/auth"
	"github.com/emarutian/recipesync/internal/cache"
	"github.com/emarutian/recipesync/internal/cloudsql"
	"github.com/emarutian/recipesync/internal/config"
	"github.com/emarutian/recipesync/internal/database"
	"github.com/emarutian/recipesync/internal/filestore"
	"github.com/emarutian/recipesync/internal/inference"
	"github.com/emarutian/recipesync/internal/ingestion"
	"github.com/emarutian/recipesync/internal/lease"
	"github.com/emarutian/recipesync/internal/metrics"
	"github.com/emarutian/recipesync/internal/synthesis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// App holds the wired components of one process.
type App struct {
	Orchestrator *ingestion.Orchestrator
	Recipes      ingestion.RecipeRepository
	Auth         auth.Config
	Sync         *metrics.SyncCollector

	// InferenceLogs is set only for the Postgres backend.
	InferenceLogs *database.InferenceLogRepository

	db              *sql.DB
	redis           *redis.Client
	inferenceLogger *inference.Logger
	logger          *slog.Logger
}

// Build connects the configured backends and assembles the orchestrator.
// reg receives the sync metrics; pass nil to use a private registry.
func Build(ctx context.Context, cfg config.Config, authConfig auth.Config, reg prometheus.Registerer, logger *slog.Logger) (*App, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	a := &App{Auth: authConfig, logger: logger}

	var sink inference.Sink
	switch cfg.Store.Backend {
	case BackendFile, "":
		store, err := filestore.New(cfg.Store.ContentDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open content directory: %w", err)
		}
		logger.Info("using file content store", "root", store.Root())
		a.Recipes = store
	case BackendPostgres:
		db, err := connectDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.Recipes = database.NewContentRepository(db)
		a.InferenceLogs = database.NewInferenceLogRepository(db)
		sink = a.InferenceLogs
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		logger.Info("redis connected")
	} else if cfg.Sync.LeaseEnabled {
		a.Close()
		return nil, errors.New("SYNC_LEASE_ENABLED requires REDIS_URL")
	}

	syncCollector, err := metrics.NewSyncCollector(reg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init sync metrics: %w", err)
	}
	a.Sync = syncCollector

	httpClient := &http.Client{Timeout: cfg.Sync.FetchTimeout}
	source := buildSource(cfg, a.redis, httpClient, logger)

	a.inferenceLogger = inference.NewLogger(sink, logger)
	synthesizer := buildSynthesizer(cfg.AI, a.inferenceLogger, syncCollector, logger)

	opts := []ingestion.Option{ingestion.WithRecorder(syncCollector)}
	if cfg.Sync.LeaseEnabled {
		opts = append(opts, ingestion.WithRunLock(lease.NewRedisLease(a.redis, lease.DefaultKey, cfg.Sync.LeaseTTL)))
		logger.Info("sync run lease enabled", "ttl", cfg.Sync.LeaseTTL)
	}

	a.Orchestrator = ingestion.NewOrchestrator(
		source,
		a.Recipes,
		synthesizer,
		auth.NewTriggerAuthorizer(authConfig),
		logger,
		ingestion.OrchestratorConfig{
			FetchLimit:   cfg.Sync.FetchLimit,
			BatchSize:    cfg.Sync.BatchSize,
			FetchTimeout: cfg.Sync.FetchTimeout,
			VideoTimeout: cfg.Sync.VideoTimeout,
		},
		opts...,
	)
	return a, nil
}

// HealthCheck pings the backends in use.
func (a *App) HealthCheck(ctx context.Context) error {
	if a.db != nil {
		if err := database.HealthCheck(ctx, a.db); err != nil {
			return err
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
	}
	return nil
}

// Close flushes pending inference logs and releases connections.
func (a *App) Close() {
	if a.inferenceLogger != nil {
		a.inferenceLogger.Wait()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
}

func connectDatabase(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	dbURL, err := cloudsql.BuildDatabaseURL(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to build database URL: %w", err)
	}
	logger.Info("database configuration", "config", cloudsql.ConnectionInfo(cfg.Database))

	db, err := database.Connect(ctx, database.ConfigForURL(dbURL))
	if err != nil {
		return nil, err
	}
	logger.Info("database connected", "url", cloudsql.Redact(dbURL))

	if err := database.RunMigrations(ctx, db, cfg.Store.MigrationsDir, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func buildSource(cfg config.Config, client *redis.Client, httpClient *http.Client, logger *slog.Logger) ingestion.VideoSource {
	source := ingestion.NewVideoSource(cfg.YouTube, httpClient, logger)
	if cfg.YouTube.CacheTTL <= 0 {
		return source
	}

	var videoCache ingestion.VideoCache
	if client != nil {
		videoCache = cache.NewRedisCache(client)
	} else {
		videoCache = cache.NewMemoryCache()
	}
	return ingestion.NewCachedSource(source, videoCache, cfg.YouTube.CacheTTL, logger)
}

func buildSynthesizer(cfg config.AIConfig, inferenceLogger *inference.Logger, usage synthesis.UsageRecorder, logger *slog.Logger) ingestion.Synthesizer {
	if cfg.APIKey == "" {
		logger.Warn("AI_API_KEY not set, sync runs will fail until it is configured")
		return synthesis.Unconfigured{}
	}
	timeout := cfg.Timeout + 5*time.Second
	return synthesis.NewClient(cfg, &http.Client{Timeout: timeout}, logger,
		synthesis.WithInferenceLogger(inferenceLogger),
		synthesis.WithUsageRecorder(usage),
	)
}
