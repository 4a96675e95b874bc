// Package sync drains the offline submission queue against the remote
// crisis store.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bissquit/crisiskit/internal/domain"
	"github.com/bissquit/crisiskit/internal/queue"
)

// ErrSyncInProgress is returned when a drain is already running. The caller
// is expected to rely on the next online transition or poll interval; there
// is no follow-up queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// SubmitFunc delivers one submission to the remote store. Any error is
// treated as a retryable delivery failure.
type SubmitFunc func(ctx context.Context, payload domain.SubmissionPayload) (domain.StoredResponse, error)

// Result summarizes one drain cycle. Only the latest result is retained for
// display; callers needing history must persist it themselves.
type Result struct {
	SuccessCount   int `json:"success_count"`
	FailedCount    int `json:"failed_count"`
	TotalAttempted int `json:"total_attempted"`
}

// Config contains engine configuration.
type Config struct {
	MaxRetries int
}

// DefaultConfig returns default engine configuration.
func DefaultConfig() Config {
	return Config{MaxRetries: 3}
}

// Engine drains the queue sequentially, one item at a time. Remote backends
// in this domain are not assumed to tolerate concurrent writes from the same
// client, and sequential order preserves submission chronology.
type Engine struct {
	config   Config
	store    queue.Store
	submit   SubmitFunc
	inFlight atomic.Bool
}

// NewEngine creates a sync engine over the given store and submit function.
func NewEngine(config Config, store queue.Store, submit SubmitFunc) *Engine {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	return &Engine{
		config: config,
		store:  store,
		submit: submit,
	}
}

// MaxRetries returns the configured retry cap.
func (e *Engine) MaxRetries() int {
	return e.config.MaxRetries
}

// InProgress reports whether a drain is currently running.
func (e *Engine) InProgress() bool {
	return e.inFlight.Load()
}

// SyncAll drains a snapshot of the queue. Items enqueued during the drain are
// left for the next trigger, which bounds the cycle's duration. At most one
// drain runs at a time; a concurrent call returns ErrSyncInProgress.
//
// Per-item delivery failures are recorded and tallied, never propagated. Only
// a malfunction of the queue store itself returns an error.
func (e *Engine) SyncAll(ctx context.Context) (Result, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrSyncInProgress
	}
	defer e.inFlight.Store(false)

	snapshot, err := e.store.ListAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list queue: %w", err)
	}

	result := Result{TotalAttempted: len(snapshot)}
	if len(snapshot) == 0 {
		return result, nil
	}

	slog.Info("draining offline queue", "items", len(snapshot))
	recordDrainStarted(len(snapshot))

	for _, item := range snapshot {
		if item.RetryCount >= e.config.MaxRetries {
			slog.Warn("retry cap reached, skipping item",
				"sequence_id", item.SequenceID,
				"retry_count", item.RetryCount,
			)
			result.FailedCount++
			recordItemResult("skipped")
			continue
		}

		start := time.Now()
		_, submitErr := e.submit(ctx, item.Payload)
		duration := time.Since(start)

		if submitErr != nil {
			slog.Warn("delivery failed",
				"sequence_id", item.SequenceID,
				"attempt", item.RetryCount+1,
				"max_retries", e.config.MaxRetries,
				"error", submitErr,
			)
			if err := e.store.RecordFailure(ctx, item.SequenceID, submitErr.Error()); err != nil {
				return result, fmt.Errorf("record failure for %d: %w", item.SequenceID, err)
			}
			result.FailedCount++
			recordItemResult("failed")
			recordSubmitDuration(duration)
			continue
		}

		if err := e.store.Remove(ctx, item.SequenceID); err != nil {
			return result, fmt.Errorf("remove %d: %w", item.SequenceID, err)
		}
		result.SuccessCount++
		recordItemResult("success")
		recordSubmitDuration(duration)

		slog.Debug("item delivered",
			"sequence_id", item.SequenceID,
			"duration", duration,
		)
	}

	slog.Info("drain complete",
		"success", result.SuccessCount,
		"failed", result.FailedCount,
		"total", result.TotalAttempted,
	)
	return result, nil
}
