package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/emarutian/recipesync/internal/ingestion"
	"github.com/emarutian/recipesync/internal/models"
)

// Runner executes one orchestration run.
type Runner interface {
	Run(ctx context.Context, trigger models.Trigger) (*models.RunReport, error)
}

// SyncScheduler triggers sync runs on a fixed interval from inside the
// server process.
type SyncScheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *SyncScheduler {
	return &SyncScheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduler loop. It blocks until Stop is called or ctx
// is cancelled.
func (s *SyncScheduler) Start(ctx context.Context) {
	s.logger.Info("Starting sync scheduler", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run once immediately on start
	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.stopChan:
			s.logger.Info("Sync scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Sync scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler. Safe to call more than once.
func (s *SyncScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *SyncScheduler) runOnce(ctx context.Context) {
	report, err := s.runner.Run(ctx, models.Trigger{Kind: models.TriggerInternal})
	switch {
	case errors.Is(err, ingestion.ErrRunInProgress):
		s.logger.Info("Skipping scheduled sync, another run holds the lease")
	case err != nil:
		s.logger.Error("Scheduled sync failed", "error", err)
	default:
		s.logger.Info("Scheduled sync complete",
			"run_id", report.RunID,
			"message", report.Message,
			"created", report.CreatedCount(),
			"errors", len(report.Errors),
			"remaining", report.RemainingCount,
		)
	}
}
