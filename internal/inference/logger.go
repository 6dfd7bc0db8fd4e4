package inference

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/emarutian/recipesync/internal/models"
)

// Sink persists inference log entries.
type Sink interface {
	Create(ctx context.Context, log models.InferenceLog) error
}

// Logger records AI model calls. Entries go to the sink when one is set and
// to the structured log otherwise.
type Logger struct {
	sink   Sink
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewLogger creates a new inference logger. sink may be nil.
func NewLogger(sink Sink, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		sink:   sink,
		logger: logger,
	}
}

// Call describes one model invocation.
type Call struct {
	Provider     string
	Model        string
	Operation    string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
	Err          error
	Metadata     map[string]any
}

// LogCall records an inference call. Persistence happens asynchronously;
// Wait blocks until pending writes finish.
func (l *Logger) LogCall(ctx context.Context, call Call) {
	entry := l.entry(call)

	if l.sink == nil {
		l.logger.Info("inference call",
			"provider", entry.Provider,
			"model", entry.Model,
			"operation", entry.Operation,
			"tokens", entry.TokensUsed,
			"latency_ms", entry.LatencyMs,
			"status", entry.Status)
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.sink.Create(context.WithoutCancel(ctx), entry); err != nil {
			l.logger.Error("failed to log inference call", "error", err)
		}
	}()
}

// Wait blocks until all pending sink writes have completed.
func (l *Logger) Wait() {
	l.wg.Wait()
}

func (l *Logger) entry(call Call) models.InferenceLog {
	var metadataJSON string
	if call.Metadata != nil {
		if jsonBytes, err := json.Marshal(call.Metadata); err == nil {
			metadataJSON = string(jsonBytes)
		}
	}

	entry := models.InferenceLog{
		Provider:     call.Provider,
		Model:        call.Model,
		Operation:    call.Operation,
		TokensUsed:   call.InputTokens + call.OutputTokens,
		InputTokens:  call.InputTokens,
		OutputTokens: call.OutputTokens,
		LatencyMs:    int(call.Latency.Milliseconds()),
		Status:       "success",
		Metadata:     metadataJSON,
		CreatedAt:    time.Now().UTC(),
	}
	if call.Err != nil {
		entry.Status = "error"
		entry.ErrorMessage = call.Err.Error()
	}
	return entry
}
