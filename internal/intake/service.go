// Package intake implements the submission entry point: direct delivery when
// online with fallback to the durable offline queue.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bissquit/crisiskit/internal/domain"
	"github.com/bissquit/crisiskit/internal/netmon"
	"github.com/bissquit/crisiskit/internal/queue"
	"github.com/bissquit/crisiskit/internal/status"
)

// Outcome is the three-valued result of a submit action, so callers can
// render distinct confirmation states.
type Outcome string

const (
	// OutcomeSubmitted means the remote store confirmed the submission.
	OutcomeSubmitted Outcome = "submitted"
	// OutcomeQueuedOffline means the device was known offline and the
	// submission was queued without a delivery attempt.
	OutcomeQueuedOffline Outcome = "queued_offline"
	// OutcomeQueuedFallback means a direct delivery attempt failed and the
	// submission was queued for background sync.
	OutcomeQueuedFallback Outcome = "queued_fallback"
)

// Receipt is what the submitter gets back. Stored is set only for direct
// deliveries; queued outcomes promise local durability, not remote storage.
type Receipt struct {
	Outcome          Outcome                `json:"status"`
	SequenceID       int64                  `json:"sequence_id,omitempty"`
	Stored           *domain.StoredResponse `json:"stored,omitempty"`
	DuplicateWarning string                 `json:"duplicate_warning,omitempty"`
}

// Remote is the subset of the crisis store API the intake path needs.
type Remote interface {
	SubmitResponse(ctx context.Context, payload domain.SubmissionPayload) (domain.StoredResponse, error)
	ListResponses(ctx context.Context, incidentID string) ([]domain.StoredResponse, error)
}

// Classifier assigns an urgency level to a submission. Implementations may
// be heuristic or AI-backed; the intake path treats them as opaque.
type Classifier interface {
	Classify(ctx context.Context, needs, location string) domain.Classification
}

// Service is the submission entry point.
type Service struct {
	store      queue.Store
	remote     Remote
	monitor    *netmon.Monitor
	projector  *status.Projector
	classifier Classifier
}

// NewService creates the intake service. classifier may be nil to skip
// urgency classification.
func NewService(store queue.Store, remote Remote, monitor *netmon.Monitor, projector *status.Projector, classifier Classifier) *Service {
	return &Service{
		store:      store,
		remote:     remote,
		monitor:    monitor,
		projector:  projector,
		classifier: classifier,
	}
}

// Submit attempts direct delivery when online and falls back to the offline
// queue. The caller always gets a confirmed outcome: the only hard failure
// is an enqueue that could not be persisted, which must be surfaced to the
// user because the data would otherwise be lost.
func (s *Service) Submit(ctx context.Context, payload domain.SubmissionPayload) (Receipt, error) {
	if payload.ClientRef == "" {
		// Lets the backend deduplicate at-least-once deliveries.
		payload.ClientRef = uuid.NewString()
	}

	if s.classifier != nil && payload.Classification == nil {
		classification := s.classifier.Classify(ctx, payload.Needs, payload.Location)
		payload.Classification = &classification
	}

	if !s.monitor.Online() {
		sequenceID, err := s.enqueue(ctx, payload)
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{Outcome: OutcomeQueuedOffline, SequenceID: sequenceID}, nil
	}

	// Advisory only: a duplicate never blocks the submission, and the check
	// is skipped entirely when the lookup fails.
	warning := s.duplicateWarning(ctx, payload)

	stored, err := s.remote.SubmitResponse(ctx, payload)
	if err == nil {
		return Receipt{Outcome: OutcomeSubmitted, Stored: &stored, DuplicateWarning: warning}, nil
	}

	slog.Warn("direct delivery failed, queueing submission",
		"incident_id", payload.IncidentID,
		"error", err,
	)

	sequenceID, qerr := s.enqueue(ctx, payload)
	if qerr != nil {
		return Receipt{}, qerr
	}
	return Receipt{Outcome: OutcomeQueuedFallback, SequenceID: sequenceID, DuplicateWarning: warning}, nil
}

func (s *Service) enqueue(ctx context.Context, payload domain.SubmissionPayload) (int64, error) {
	sequenceID, err := s.store.Enqueue(ctx, payload)
	if err != nil {
		return 0, fmt.Errorf("queue submission: %w", err)
	}
	slog.Info("submission queued",
		"sequence_id", sequenceID,
		"incident_id", payload.IncidentID,
	)
	if s.projector != nil {
		s.projector.RefreshCount(ctx)
	}
	return sequenceID, nil
}

func (s *Service) duplicateWarning(ctx context.Context, payload domain.SubmissionPayload) string {
	if payload.Contact == "" {
		return ""
	}

	existing, err := s.remote.ListResponses(ctx, payload.IncidentID)
	if err != nil {
		slog.Debug("duplicate check skipped",
			"incident_id", payload.IncidentID,
			"error", err,
		)
		return ""
	}

	_, warning := CheckDuplicate(existing, payload.Contact, time.Now())
	return warning
}
