// Package queue defines the durable offline submission queue.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/crisiskit/internal/domain"
)

// ErrPersistence indicates that local storage failed to accept or serve a
// write. Callers must surface it to the end user: a submission that was never
// durably queued cannot be retried silently.
var ErrPersistence = errors.New("queue persistence failure")

// QueuedSubmission is one pending submission with its retry metadata.
// SequenceID is assigned by the store, monotonically, and never reused.
type QueuedSubmission struct {
	SequenceID    int64                    `json:"sequence_id"`
	Payload       domain.SubmissionPayload `json:"payload"`
	QueuedAt      time.Time                `json:"queued_at"`
	RetryCount    int                      `json:"retry_count"`
	LastAttemptAt *time.Time               `json:"last_attempt_at,omitempty"`
	LastError     string                   `json:"last_error,omitempty"`
}

// Store is the durable FIFO queue of pending submissions. Implementations
// must survive process restarts and provide atomic single-record operations;
// the enqueue path and the drain loop both serialize through this interface.
type Store interface {
	// Enqueue appends a new item with a zero retry count and returns its
	// sequence ID.
	Enqueue(ctx context.Context, payload domain.SubmissionPayload) (int64, error)

	// Count returns the number of pending items.
	Count(ctx context.Context) (int, error)

	// ListAll returns all pending items ordered by enqueue time, oldest
	// first. The result is a snapshot, not a live cursor.
	ListAll(ctx context.Context) ([]QueuedSubmission, error)

	// Remove deletes an item. Removing an absent ID is a no-op.
	Remove(ctx context.Context, sequenceID int64) error

	// RecordFailure increments the retry count and stores the last attempt
	// time and error. A no-op if the item is absent.
	RecordFailure(ctx context.Context, sequenceID int64, cause string) error

	// ListFailed returns items whose retry count has reached maxRetries.
	ListFailed(ctx context.Context, maxRetries int) ([]QueuedSubmission, error)

	// HasRetryable reports whether any item is still below maxRetries.
	HasRetryable(ctx context.Context, maxRetries int) (bool, error)

	// ResetRetries zeroes the retry counter of an item, making it eligible
	// for automatic draining again. Administrative action only.
	ResetRetries(ctx context.Context, sequenceID int64) error

	// Clear empties the store. Used only for explicit user-initiated reset.
	Clear(ctx context.Context) error
}

// ExportJSON dumps the full queue as indented JSON for inspection.
func ExportJSON(ctx context.Context, store Store) ([]byte, error) {
	items, err := store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal queue: %w", err)
	}
	return data, nil
}
