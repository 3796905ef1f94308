package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wiselista/photo-jobs-be/internal/worker/domain"
)

// processTrigger edits every photo of a processing job and moves the job to
// a terminal status. Safe under redelivery: already-edited photos are
// skipped and the final transition is status-guarded.
func (w *Worker) processTrigger(ctx context.Context, trigger *domain.EditTrigger) error {
	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	job, err := w.storage.GetJob(jobCtx, trigger.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			// Nothing to retry against; drop the trigger.
			w.logger.Warn("Trigger for unknown job",
				slog.String("job_id", trigger.JobID),
			)
			return nil
		}
		return domain.NewRetryableError(fmt.Errorf("failed to get job: %w", err))
	}

	if job.Status != domain.JobStatusProcessing {
		// Duplicate or stale trigger; the job already reached a terminal
		// status or has not been paid for yet.
		w.logger.Info("Skipping trigger for non-processing job",
			slog.String("job_id", job.ID),
			slog.String("status", job.Status),
		)
		return nil
	}

	photos, err := w.storage.ListPhotos(jobCtx, job.ID)
	if err != nil {
		return domain.NewRetryableError(fmt.Errorf("failed to list photos: %w", err))
	}

	if len(photos) == 0 {
		w.logger.Warn("Processing job has no photos",
			slog.String("job_id", job.ID),
		)
		if _, err := w.storage.MarkFailed(jobCtx, job.ID, "no photos to edit"); err != nil {
			return domain.NewRetryableError(fmt.Errorf("failed to mark job failed: %w", err))
		}
		return nil
	}

	edited := 0
	for _, photo := range photos {
		if photo.EditedKey != nil {
			continue
		}

		editedKey, err := w.editor.EditPhoto(jobCtx, photo.OriginalKey, photo.RoomType)
		if err != nil {
			// A timeout or canceled context is transient; redeliver and pick
			// up where we left off. Any other editor error fails the job.
			if jobCtx.Err() != nil {
				return domain.NewRetryableError(fmt.Errorf("editing interrupted: %w", err))
			}

			w.logger.Error("Photo editing failed",
				slog.String("job_id", job.ID),
				slog.String("photo_id", photo.ID),
				slog.String("error", err.Error()),
			)
			if _, markErr := w.storage.MarkFailed(jobCtx, job.ID, "photo editing failed"); markErr != nil {
				return domain.NewRetryableError(fmt.Errorf("failed to mark job failed: %w", markErr))
			}
			return nil
		}

		if err := w.storage.SetPhotoEdited(jobCtx, photo.ID, editedKey); err != nil {
			return domain.NewRetryableError(fmt.Errorf("failed to record edited photo: %w", err))
		}
		edited++
	}

	transitioned, err := w.storage.MarkReady(jobCtx, job.ID)
	if err != nil {
		return domain.NewRetryableError(fmt.Errorf("failed to mark job ready: %w", err))
	}

	if !transitioned {
		// The reaper failed the job while we were editing, or a concurrent
		// delivery finished first.
		w.logger.Warn("Job left processing before completion",
			slog.String("job_id", job.ID),
		)
		return nil
	}

	w.logger.Info("Job completed",
		slog.String("job_id", job.ID),
		slog.Int("photos_edited", edited),
		slog.Int("photos_total", len(photos)),
		slog.String("trigger", trigger.Trigger),
	)

	return nil
}
