// Package sqlite provides the SQLite implementation of the offline queue store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/bissquit/crisiskit/internal/domain"
	"github.com/bissquit/crisiskit/internal/queue"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists pending submissions in a local SQLite database.
type Store struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the queue database at path and applies embedded migrations.
// A single connection is used: the enqueue path and the drain loop serialize
// through it, which gives atomic single-record operations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func applyMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Enqueue appends a new pending submission and returns its sequence ID.
func (s *Store) Enqueue(ctx context.Context, payload domain.SubmissionPayload) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("%w: marshal payload: %w", queue.ErrPersistence, err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_submissions (payload, queued_at) VALUES (?, ?)`,
		string(body),
		toMillis(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert submission: %w", queue.ErrPersistence, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: read sequence id: %w", queue.ErrPersistence, err)
	}
	return id, nil
}

// Count returns the number of pending submissions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_submissions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}

const selectColumns = `sequence_id, payload, queued_at, retry_count, last_attempt_at, last_error`

// ListAll returns all pending submissions, oldest first.
func (s *Store) ListAll(ctx context.Context) ([]queue.QueuedSubmission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM pending_submissions ORDER BY queued_at ASC, sequence_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// Remove deletes a submission. Removing an absent ID is a no-op.
func (s *Store) Remove(ctx context.Context, sequenceID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_submissions WHERE sequence_id = ?`, sequenceID)
	if err != nil {
		return fmt.Errorf("remove submission: %w", err)
	}
	return nil
}

// RecordFailure increments the retry counter and stores the failure cause.
// A no-op if the item was removed concurrently.
func (s *Store) RecordFailure(ctx context.Context, sequenceID int64, cause string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_submissions
		    SET retry_count = retry_count + 1, last_attempt_at = ?, last_error = ?
		  WHERE sequence_id = ?`,
		toMillis(time.Now()), cause, sequenceID)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// ListFailed returns submissions whose retry count has reached maxRetries.
func (s *Store) ListFailed(ctx context.Context, maxRetries int) ([]queue.QueuedSubmission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM pending_submissions
		  WHERE retry_count >= ? ORDER BY queued_at ASC, sequence_id ASC`,
		maxRetries)
	if err != nil {
		return nil, fmt.Errorf("list failed submissions: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// HasRetryable reports whether any submission is still below maxRetries.
func (s *Store) HasRetryable(ctx context.Context, maxRetries int) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM pending_submissions WHERE retry_count < ? LIMIT 1`,
		maxRetries).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check retryable submissions: %w", err)
	}
	return true, nil
}

// ResetRetries zeroes the retry counter of a submission.
func (s *Store) ResetRetries(ctx context.Context, sequenceID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_submissions SET retry_count = 0, last_error = '' WHERE sequence_id = ?`,
		sequenceID)
	if err != nil {
		return fmt.Errorf("reset retries: %w", err)
	}
	return nil
}

// Clear empties the queue.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_submissions`)
	if err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

func scanSubmissions(rows *sql.Rows) ([]queue.QueuedSubmission, error) {
	items := make([]queue.QueuedSubmission, 0)
	for rows.Next() {
		var (
			item          queue.QueuedSubmission
			body          string
			queuedAt      int64
			lastAttemptAt sql.NullInt64
		)
		if err := rows.Scan(
			&item.SequenceID,
			&body,
			&queuedAt,
			&item.RetryCount,
			&lastAttemptAt,
			&item.LastError,
		); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &item.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for %d: %w", item.SequenceID, err)
		}
		item.QueuedAt = fromMillis(queuedAt)
		if lastAttemptAt.Valid {
			at := fromMillis(lastAttemptAt.Int64)
			item.LastAttemptAt = &at
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return items, nil
}

var _ queue.Store = (*Store)(nil)
