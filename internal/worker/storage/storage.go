package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wiselista/photo-jobs-be/internal/worker/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// GetJob retrieves a job by its ID.
func (s *Storage) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT id, user_id, status
		FROM jobs
		WHERE id = $1
	`

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ListPhotos returns a job's photos in sequence order.
func (s *Storage) ListPhotos(ctx context.Context, jobID string) ([]domain.Photo, error) {
	query := `
		SELECT id, job_id, room_type, sequence, original_key, edited_key
		FROM photos
		WHERE job_id = $1
		ORDER BY sequence ASC
	`

	var photos []domain.Photo
	if err := s.db.SelectContext(ctx, &photos, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	return photos, nil
}

// SetPhotoEdited records an edited object key for a photo. The IS NULL guard
// keeps a redelivered trigger from overwriting an earlier result.
func (s *Storage) SetPhotoEdited(ctx context.Context, photoID, editedKey string) error {
	query := `
		UPDATE photos
		SET edited_key = $2
		WHERE id = $1 AND edited_key IS NULL
	`

	if _, err := s.db.ExecContext(ctx, query, photoID, editedKey); err != nil {
		return fmt.Errorf("failed to set edited key: %w", err)
	}

	return nil
}

// MarkReady moves a processing job to ready and stamps completed_at.
// Returns false when the job was not in processing, which happens when a
// duplicate trigger arrives after completion or the reaper got there first.
func (s *Storage) MarkReady(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = $3
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusReady, domain.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to mark job ready: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// MarkFailed moves a processing job to failed with a reason. completed_at is
// only ever stamped by MarkReady.
func (s *Storage) MarkFailed(ctx context.Context, jobID, reason string) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $2,
		    failure_reason = $3,
		    updated_at = NOW()
		WHERE id = $1 AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusFailed, reason, domain.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to mark job failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// ReapStaleProcessing fails processing jobs whose last update is older than
// the timeout. Covers lost triggers and workers that died mid-edit.
func (s *Storage) ReapStaleProcessing(ctx context.Context, timeout time.Duration) (int64, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    failure_reason = 'processing timed out',
		    updated_at = NOW()
		WHERE status = $2 AND updated_at < $3
	`

	cutoff := time.Now().UTC().Add(-timeout)

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, domain.JobStatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale jobs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		s.logger.Warn("Failed stale processing jobs",
			slog.Int64("count", rows),
			slog.Duration("timeout", timeout),
		)
	}

	return rows, nil
}
