// Package memory provides an in-memory queue store for tests and ephemeral
// deployments where durability across restarts is not required.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bissquit/crisiskit/internal/domain"
	"github.com/bissquit/crisiskit/internal/queue"
)

// Store keeps pending submissions in process memory.
type Store struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]queue.QueuedSubmission
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		nextID: 1,
		items:  make(map[int64]queue.QueuedSubmission),
	}
}

// Enqueue appends a new pending submission and returns its sequence ID.
func (s *Store) Enqueue(_ context.Context, payload domain.SubmissionPayload) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.items[id] = queue.QueuedSubmission{
		SequenceID: id,
		Payload:    payload,
		QueuedAt:   time.Now().UTC(),
	}
	return id, nil
}

// Count returns the number of pending submissions.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

// ListAll returns all pending submissions, oldest first.
func (s *Store) ListAll(_ context.Context) ([]queue.QueuedSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(func(queue.QueuedSubmission) bool { return true }), nil
}

// Remove deletes a submission. Removing an absent ID is a no-op.
func (s *Store) Remove(_ context.Context, sequenceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sequenceID)
	return nil
}

// RecordFailure increments the retry counter and stores the failure cause.
func (s *Store) RecordFailure(_ context.Context, sequenceID int64, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[sequenceID]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	item.RetryCount++
	item.LastAttemptAt = &now
	item.LastError = cause
	s.items[sequenceID] = item
	return nil
}

// ListFailed returns submissions whose retry count has reached maxRetries.
func (s *Store) ListFailed(_ context.Context, maxRetries int) ([]queue.QueuedSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(func(item queue.QueuedSubmission) bool {
		return item.RetryCount >= maxRetries
	}), nil
}

// HasRetryable reports whether any submission is still below maxRetries.
func (s *Store) HasRetryable(_ context.Context, maxRetries int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.RetryCount < maxRetries {
			return true, nil
		}
	}
	return false, nil
}

// ResetRetries zeroes the retry counter of a submission.
func (s *Store) ResetRetries(_ context.Context, sequenceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[sequenceID]
	if !ok {
		return nil
	}
	item.RetryCount = 0
	item.LastError = ""
	s.items[sequenceID] = item
	return nil
}

// Clear empties the queue.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int64]queue.QueuedSubmission)
	return nil
}

func (s *Store) snapshot(keep func(queue.QueuedSubmission) bool) []queue.QueuedSubmission {
	items := make([]queue.QueuedSubmission, 0, len(s.items))
	for _, item := range s.items {
		if keep(item) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].QueuedAt.Equal(items[j].QueuedAt) {
			return items[i].SequenceID < items[j].SequenceID
		}
		return items[i].QueuedAt.Before(items[j].QueuedAt)
	})
	return items
}

var _ queue.Store = (*Store)(nil)
