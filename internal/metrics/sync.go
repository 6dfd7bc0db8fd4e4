package metrics

import (
	"time"

	"github.com/emarutian/recipesync/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

// SyncCollector records orchestration run outcomes and synthesis usage.
type SyncCollector struct {
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	recipesCreated prometheus.Counter
	videoFailures  *prometheus.CounterVec
	remaining      prometheus.Gauge
	tokensTotal    *prometheus.CounterVec
}

// NewSyncCollector registers the sync metrics with reg.
func NewSyncCollector(reg prometheus.Registerer) (*SyncCollector, error) {
	c := &SyncCollector{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Orchestration runs by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Wall time of orchestration runs.",
			Buckets:   []float64{0.1, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"trigger"}),
		recipesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "recipes_created_total",
			Help:      "Recipe records created by orchestration runs.",
		}),
		videoFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "video_failures_total",
			Help:      "Per-video failures by stage.",
		}, []string{"stage"}),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "remaining_videos",
			Help:      "New videos deferred past the per-run cap by the last completed run.",
		}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "synthesis",
			Name:      "tokens_total",
			Help:      "Model tokens consumed by recipe synthesis.",
		}, []string{"model", "kind"}),
	}

	for _, collector := range []prometheus.Collector{
		c.runsTotal, c.runDuration, c.recipesCreated, c.videoFailures, c.remaining, c.tokensTotal,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RunFinished records one run. report is nil for aborted runs.
func (c *SyncCollector) RunFinished(trigger models.TriggerKind, outcome string, report *models.RunReport, duration time.Duration) {
	c.runsTotal.WithLabelValues(string(trigger), outcome).Inc()
	c.runDuration.WithLabelValues(string(trigger)).Observe(duration.Seconds())
	if report != nil {
		c.recipesCreated.Add(float64(report.CreatedCount()))
		c.remaining.Set(float64(report.RemainingCount))
	}
}

// VideoFailed records a per-video failure at stage.
func (c *SyncCollector) VideoFailed(stage string) {
	c.videoFailures.WithLabelValues(stage).Inc()
}

// ObserveTokens records token usage of one synthesis call.
func (c *SyncCollector) ObserveTokens(model string, promptTokens, completionTokens int) {
	c.tokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	c.tokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
}
