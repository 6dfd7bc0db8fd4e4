package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emarutian/recipesync/internal/lease"
	"github.com/emarutian/recipesync/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrUnauthorized is returned when the trigger fails authorization.
	ErrUnauthorized = errors.New("unauthorized trigger")

	// ErrConfiguration is returned when the run cannot succeed for any video,
	// such as a missing synthesis credential.
	ErrConfiguration = errors.New("configuration error")

	// ErrInventoryUnavailable is returned when existing content cannot be listed.
	ErrInventoryUnavailable = errors.New("content inventory unavailable")

	// ErrRunInProgress is returned when the run lease is held by another run.
	ErrRunInProgress = errors.New("sync run already in progress")
)

// Report messages and per-video error prefixes.
const (
	MessageNoVideos    = "No videos found from YouTube API"
	MessageAllExisting = "All videos already have recipes"

	synthesisErrorPrefix   = "Failed to generate recipe for: "
	persistenceErrorPrefix = "Error processing: "
)

// Synthesizer turns one video into a recipe draft.
type Synthesizer interface {
	// Synthesize returns a validated draft, or an error when the model call
	// fails or its output is unusable.
	Synthesize(ctx context.Context, video models.VideoRecord) (*models.RecipeDraft, error)

	// Ready reports a configuration problem that would fail every call.
	Ready() error
}

// TriggerAuthorizer decides whether a trigger may start a run.
type TriggerAuthorizer interface {
	Authorize(trigger models.Trigger) error
}

// RunLock guards against overlapping runs. Acquire returns an error wrapping
// lease.ErrNotAcquired when another run holds the lock.
type RunLock interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// Recorder receives run and stage outcomes, typically for metrics.
type Recorder interface {
	RunFinished(trigger models.TriggerKind, outcome string, report *models.RunReport, duration time.Duration)
	VideoFailed(stage string)
}

// OrchestratorConfig bounds the work of one run.
type OrchestratorConfig struct {
	FetchLimit   int
	BatchSize    int
	FetchTimeout time.Duration
	VideoTimeout time.Duration
}

// DefaultOrchestratorConfig returns the standard run bounds.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		FetchLimit:   50,
		BatchSize:    5,
		FetchTimeout: 30 * time.Second,
		VideoTimeout: 60 * time.Second,
	}
}

// Orchestrator runs the video-to-recipe sync: authorize, read inventory,
// fetch, diff, bound, then synthesize and persist each video in turn.
type Orchestrator struct {
	source      VideoSource
	store       ContentStore
	synthesizer Synthesizer
	authorizer  TriggerAuthorizer
	lock        RunLock
	recorder    Recorder
	logger      *slog.Logger
	config      OrchestratorConfig
	now         func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRunLock enables cross-run mutual exclusion.
func WithRunLock(lock RunLock) Option {
	return func(o *Orchestrator) { o.lock = lock }
}

// WithRecorder attaches a run outcome recorder.
func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) { o.recorder = recorder }
}

// WithClock overrides the time source used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator wires an orchestrator. Non-positive config values fall
// back to the defaults.
func NewOrchestrator(
	source VideoSource,
	store ContentStore,
	synthesizer Synthesizer,
	authorizer TriggerAuthorizer,
	logger *slog.Logger,
	config OrchestratorConfig,
	opts ...Option,
) *Orchestrator {
	defaults := DefaultOrchestratorConfig()
	if config.FetchLimit <= 0 {
		config.FetchLimit = defaults.FetchLimit
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaults.FetchTimeout
	}
	if config.VideoTimeout <= 0 {
		config.VideoTimeout = defaults.VideoTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		source:      source,
		store:       store,
		synthesizer: synthesizer,
		authorizer:  authorizer,
		recorder:    noopRecorder{},
		logger:      logger,
		config:      config,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one orchestration run. A returned report means the stage
// sequence completed, even if individual videos failed. Errors are returned
// only for rejected triggers, configuration problems, a held lease and an
// unreadable inventory.
func (o *Orchestrator) Run(ctx context.Context, trigger models.Trigger) (*models.RunReport, error) {
	start := time.Now()

	if err := o.authorizer.Authorize(trigger); err != nil {
		o.logger.Warn("sync trigger rejected", "trigger", trigger.Kind, "reason", err)
		o.recorder.RunFinished(trigger.Kind, "unauthorized", nil, time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	runID := uuid.NewString()
	logger := o.logger.With("run_id", runID, "trigger", string(trigger.Kind))

	if err := o.synthesizer.Ready(); err != nil {
		logger.Error("synthesizer not configured, aborting run", "error", err)
		o.recorder.RunFinished(trigger.Kind, "misconfigured", nil, time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if o.lock != nil {
		release, err := o.lock.Acquire(ctx)
		if err != nil {
			if errors.Is(err, lease.ErrNotAcquired) {
				logger.Info("another sync run holds the lease, skipping", "reason", err)
				o.recorder.RunFinished(trigger.Kind, "in_progress", nil, time.Since(start))
				return nil, ErrRunInProgress
			}
			o.recorder.RunFinished(trigger.Kind, "failed", nil, time.Since(start))
			return nil, fmt.Errorf("acquire run lease: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release run lease", "error", err)
			}
		}()
	}

	inventory, err := o.store.List(ctx)
	if err != nil {
		logger.Error("failed to read content inventory", "error", err)
		o.recorder.RunFinished(trigger.Kind, "inventory_error", nil, time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrInventoryUnavailable, err)
	}
	state := NewRunState(inventory)
	logger.Info("sync run started", "inventory", len(inventory), "source", o.source.Name())

	report := &models.RunReport{
		RunID:         runID,
		CreatedTitles: []string{},
		Errors:        []string{},
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.config.FetchTimeout)
	videos := o.source.FetchRecentVideos(fetchCtx, o.config.FetchLimit)
	cancel()

	if len(videos) == 0 {
		report.Message = MessageNoVideos
		logger.Info("no videos available from source")
		o.recorder.RunFinished(trigger.Kind, "success", report, time.Since(start))
		return report, nil
	}

	newVideos := state.NewVideos(videos)
	if len(newVideos) == 0 {
		report.Message = MessageAllExisting
		logger.Info("all fetched videos already have recipes", "fetched", len(videos))
		o.recorder.RunFinished(trigger.Kind, "success", report, time.Since(start))
		return report, nil
	}

	batch := newVideos[:min(o.config.BatchSize, len(newVideos))]
	report.ProcessedCount = len(batch)
	report.RemainingCount = len(newVideos) - len(batch)

	logger.Info("processing new videos",
		"fetched", len(videos),
		"new", len(newVideos),
		"batch", len(batch),
		"remaining", report.RemainingCount)

	for _, video := range batch {
		if ctx.Err() != nil {
			logger.Warn("run cancelled before video was attempted", "video_id", video.ExternalID, "title", video.Title)
			report.Errors = append(report.Errors, persistenceErrorPrefix+video.Title)
			o.recorder.VideoFailed("cancelled")
			continue
		}
		o.processVideo(ctx, logger, state, video, report)
	}

	report.Message = fmt.Sprintf("Processed %d videos", len(batch))
	logger.Info("sync run finished",
		"created", len(report.CreatedTitles),
		"errors", len(report.Errors),
		"remaining", report.RemainingCount,
		"duration_ms", time.Since(start).Milliseconds())

	o.recorder.RunFinished(trigger.Kind, "success", report, time.Since(start))
	return report, nil
}

// processVideo synthesizes and persists one video. Failures are recorded on
// report and never escape.
func (o *Orchestrator) processVideo(ctx context.Context, logger *slog.Logger, state *RunState, video models.VideoRecord, report *models.RunReport) {
	videoCtx, cancel := context.WithTimeout(ctx, o.config.VideoTimeout)
	defer cancel()

	logger = logger.With("video_id", video.ExternalID, "title", video.Title)

	draft, err := o.synthesizer.Synthesize(videoCtx, video)
	if err != nil || draft == nil {
		logger.Warn("recipe synthesis failed", "stage", "synthesis", "error", err)
		report.Errors = append(report.Errors, synthesisErrorPrefix+video.Title)
		o.recorder.VideoFailed("synthesis")
		return
	}

	slug := state.AllocateSlug(video.Title)
	record := models.ContentRecord{
		Slug:         slug,
		ExternalID:   video.ExternalID,
		Title:        video.Title,
		ThumbnailURL: video.ThumbnailURL,
		SourceURL:    video.CanonicalURL,
		RecipeDraft:  *draft,
		IsPublished:  false,
		Rating:       0,
		RatingCount:  0,
		CreatedAt:    o.now().UTC(),
	}

	err = o.store.Create(videoCtx, record)
	if errors.Is(err, models.ErrSlugExists) {
		// Occupied outside the inventory; retry once under the next free slug.
		state.Reserve(slug)
		slug = state.AllocateSlug(video.Title)
		record.Slug = slug
		logger.Info("slug occupied outside inventory, retrying", "slug", slug)
		err = o.store.Create(videoCtx, record)
	}
	if err != nil {
		if errors.Is(err, models.ErrSlugExists) {
			state.Reserve(slug)
		}
		logger.Warn("failed to persist recipe", "stage", "persistence", "slug", slug, "error", err)
		report.Errors = append(report.Errors, persistenceErrorPrefix+video.Title)
		o.recorder.VideoFailed("persistence")
		return
	}

	state.Commit(video.ExternalID, slug)
	report.CreatedTitles = append(report.CreatedTitles, video.Title)
	logger.Info("recipe created", "slug", slug)
}

type noopRecorder struct{}

func (noopRecorder) RunFinished(models.TriggerKind, string, *models.RunReport, time.Duration) {}

func (noopRecorder) VideoFailed(string) {}
