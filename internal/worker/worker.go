package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wiselista/photo-jobs-be/internal/worker/domain"
	"github.com/wiselista/photo-jobs-be/internal/worker/editor"
	"github.com/wiselista/photo-jobs-be/shared/rabbitmq"
)

// JobStore is the persistence surface the worker needs.
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListPhotos(ctx context.Context, jobID string) ([]domain.Photo, error)
	SetPhotoEdited(ctx context.Context, photoID, editedKey string) error
	MarkReady(ctx context.Context, jobID string) (bool, error)
	MarkFailed(ctx context.Context, jobID, reason string) (bool, error)
	ReapStaleProcessing(ctx context.Context, timeout time.Duration) (int64, error)
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Storage           JobStore
	RabbitClient      *rabbitmq.Client
	Editor            editor.Editor
	Concurrency       int
	PrefetchCount     int
	JobTimeout        time.Duration
	ProcessingTimeout time.Duration
	ReapInterval      time.Duration
}

// Worker consumes edit triggers and runs photo editing jobs to completion.
type Worker struct {
	logger            *slog.Logger
	storage           JobStore
	rabbitClient      *rabbitmq.Client
	editor            editor.Editor
	workerID          string
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	processingTimeout time.Duration
	reapInterval      time.Duration
	jobsChan          chan *domain.EditTrigger
	wg                sync.WaitGroup
	stopChan          chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:            cfg.Logger,
		storage:           cfg.Storage,
		rabbitClient:      cfg.RabbitClient,
		editor:            cfg.Editor,
		workerID:          fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		concurrency:       cfg.Concurrency,
		prefetchCount:     cfg.PrefetchCount,
		jobTimeout:        cfg.JobTimeout,
		processingTimeout: cfg.ProcessingTimeout,
		reapInterval:      cfg.ReapInterval,
		jobsChan:          make(chan *domain.EditTrigger),
		stopChan:          make(chan struct{}),
	}
}

// Start consumes triggers until the context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startReaper(ctx)

	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// startReaper periodically fails processing jobs that have gone stale.
func (w *Worker) startReaper(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.reapInterval)
		defer ticker.Stop()

		w.logger.Info("Reaper started",
			slog.Duration("interval", w.reapInterval),
			slog.Duration("processing_timeout", w.processingTimeout),
		)

		for {
			select {
			case <-w.stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.storage.ReapStaleProcessing(ctx, w.processingTimeout); err != nil {
					w.logger.Error("Reaper sweep failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}()
}
