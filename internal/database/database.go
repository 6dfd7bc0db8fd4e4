package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Config holds connection pool settings.
type Config struct {
	URL             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration

	// PingTimeout bounds each startup ping. The Cloud SQL socket can take a
	// few seconds to appear after a cold start, so Connect pings up to
	// PingAttempts times, RetryDelay apart.
	PingTimeout  time.Duration
	PingAttempts int
	RetryDelay   time.Duration
}

// ConfigForURL returns pool settings sized for one sync service pointed at url.
func ConfigForURL(url string) Config {
	return Config{
		URL:             url,
		MaxOpen:         10,
		MaxIdle:         5,
		ConnMaxLifetime: 5 * time.Minute,
		PingTimeout:     10 * time.Second,
		PingAttempts:    3,
		RetryDelay:      2 * time.Second,
	}
}

// Connect opens the pool and waits for the database to answer a ping.
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := waitForPing(ctx, db, cfg); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func waitForPing(ctx context.Context, db *sql.DB, cfg Config) error {
	attempts := max(cfg.PingAttempts, 1)

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("failed to ping database: %w", ctx.Err())
			case <-time.After(cfg.RetryDelay):
			}
		}

		pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to ping database after %d attempts: %w", attempts, err)
}

// HealthCheck runs a trivial query with a short timeout.
func HealthCheck(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("unexpected health check result: %d", result)
	}
	return nil
}
