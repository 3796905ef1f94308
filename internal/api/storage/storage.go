package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wiselista/photo-jobs-be/internal/api/domain"
	"github.com/wiselista/photo-jobs-be/internal/api/model"
	"github.com/wiselista/photo-jobs-be/shared/postgresql"
)

const pqUniqueViolation = "23505"

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJobForOwner fetches a job only if it belongs to userID. Missing and
// not-owned are indistinguishable to the caller.
func (s *Storage) GetJobForOwner(ctx context.Context, jobID, userID string) (*model.Job, error) {
	var job model.Job
	query := `
		SELECT id, user_id, status, failure_reason, checkout_session_id,
		       created_at, updated_at, completed_at
		FROM jobs
		WHERE id = $1 AND user_id = $2
	`

	err := s.db.GetContext(ctx, &job, query, jobID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// GetJob fetches a job regardless of owner, for webhook correlation.
func (s *Storage) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	query := `
		SELECT id, user_id, status, failure_reason, checkout_session_id,
		       created_at, updated_at, completed_at
		FROM jobs
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	UserID   string
	Status   string
	PageSize int
	Cursor   *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns the owner's jobs newest first, fetching one row beyond
// PageSize so the caller can detect more results.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `
		SELECT id, user_id, status, failure_reason, checkout_session_id,
		       created_at, updated_at, completed_at
		FROM jobs
		WHERE user_id = $1
	`
	args := []interface{}{filter.UserID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []model.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// TransitionStatus atomically moves a job from one status to another.
// Returns false when the job was not in the expected status, which is how
// concurrent submitters lose the race. An edge the lifecycle does not allow
// is an error before any SQL runs.
func (s *Storage) TransitionStatus(ctx context.Context, jobID, from, to string) (bool, error) {
	if !domain.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidState, from, to)
	}

	query := `
		UPDATE jobs
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := s.db.ExecContext(ctx, query, to, jobID, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition job status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// MarkProcessingPaid moves a paid job from payment_pending to processing,
// recording the checkout session that paid for it.
func (s *Storage) MarkProcessingPaid(ctx context.Context, jobID, checkoutSessionID string) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $1, checkout_session_id = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusProcessing, checkoutSessionID, jobID, domain.JobStatusPaymentPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark job processing: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// MarkFailed moves a processing job to failed with a reason.
func (s *Storage) MarkFailed(ctx context.Context, jobID, reason string) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusFailed, reason, jobID, domain.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to mark job failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// InsertPhoto inserts a photo row. A duplicate sequence within the job maps
// to domain.ErrSequenceTaken.
func (s *Storage) InsertPhoto(ctx context.Context, photo *model.Photo) error {
	query := `
		INSERT INTO photos (id, job_id, room_type, sequence, original_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		photo.ID,
		photo.JobID,
		photo.RoomType,
		photo.Sequence,
		photo.OriginalKey,
		photo.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return domain.ErrSequenceTaken
		}
		return fmt.Errorf("failed to insert photo: %w", err)
	}

	return nil
}

// ListPhotos returns a job's photos in display order.
func (s *Storage) ListPhotos(ctx context.Context, jobID string) ([]model.Photo, error) {
	query := `
		SELECT id, job_id, room_type, sequence, original_key, edited_key, created_at
		FROM photos
		WHERE job_id = $1
		ORDER BY sequence ASC
	`

	var photos []model.Photo
	err := s.db.SelectContext(ctx, &photos, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	return photos, nil
}

// CountPhotos returns how many photos a job owns.
func (s *Storage) CountPhotos(ctx context.Context, jobID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM photos WHERE job_id = $1`, jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to count photos: %w", err)
	}

	return count, nil
}

// InsertPayment records a successful checkout event. The unique index on
// provider_event_id makes webhook redelivery a no-op; the bool reports
// whether this call actually inserted the row.
func (s *Storage) InsertPayment(ctx context.Context, payment *model.Payment) (bool, error) {
	query := `
		INSERT INTO payments (id, job_id, provider_event_id, payment_intent_id,
		                      amount_cents, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider_event_id) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		payment.ID,
		payment.JobID,
		payment.ProviderEventID,
		payment.PaymentIntentID,
		payment.AmountCents,
		payment.Currency,
		payment.Status,
		payment.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert payment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}
