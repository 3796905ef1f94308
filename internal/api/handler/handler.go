package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wiselista/photo-jobs-be/internal/api/identity"
	"github.com/wiselista/photo-jobs-be/internal/api/model"
	"github.com/wiselista/photo-jobs-be/internal/api/payments"
	"github.com/wiselista/photo-jobs-be/internal/api/storage"
)

// JobStore is the persistence surface the handlers need.
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJobForOwner(ctx context.Context, jobID, userID string) (*model.Job, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error)
	TransitionStatus(ctx context.Context, jobID, from, to string) (bool, error)
	MarkProcessingPaid(ctx context.Context, jobID, checkoutSessionID string) (bool, error)
	MarkFailed(ctx context.Context, jobID, reason string) (bool, error)
	InsertPhoto(ctx context.Context, photo *model.Photo) error
	ListPhotos(ctx context.Context, jobID string) ([]model.Photo, error)
	CountPhotos(ctx context.Context, jobID string) (int, error)
	InsertPayment(ctx context.Context, payment *model.Payment) (bool, error)
}

// ObjectStore stores and signs photo objects.
type ObjectStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// CheckoutProvider creates checkout sessions and decodes signed webhooks.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, jobID string) (*payments.CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
	ParseWebhook(payload []byte, sigHeader string) (*payments.CheckoutCompleted, error)
}

// TriggerPublisher enqueues edit triggers for the worker.
type TriggerPublisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger          *slog.Logger
	Storage         JobStore
	Objects         ObjectStore
	Payments        CheckoutProvider
	Publisher       TriggerPublisher
	PaymentsEnabled bool
	URLExpiry       time.Duration
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger          *slog.Logger
	storage         JobStore
	objects         ObjectStore
	payments        CheckoutProvider
	publisher       TriggerPublisher
	paymentsEnabled bool
	urlExpiry       time.Duration
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	urlExpiry := deps.URLExpiry
	if urlExpiry <= 0 {
		urlExpiry = time.Hour
	}

	return &JobHandler{
		logger:          deps.Logger,
		storage:         deps.Storage,
		objects:         deps.Objects,
		payments:        deps.Payments,
		publisher:       deps.Publisher,
		paymentsEnabled: deps.PaymentsEnabled,
		urlExpiry:       urlExpiry,
	}
}

// currentUser returns the authenticated user placed in the context by the
// auth middleware.
func currentUser(c *gin.Context) (*identity.User, bool) {
	v, ok := c.Get(identity.ContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*identity.User)
	return user, ok
}

// editTriggerMessage is the durable queue message telling the worker to edit
// a job's photos.
type editTriggerMessage struct {
	JobID          string `json:"job_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Trigger        string `json:"trigger"`
}

// publishEditTrigger enqueues an edit trigger for the worker.
func (h *JobHandler) publishEditTrigger(ctx context.Context, jobID, trigger string) error {
	body, err := json.Marshal(editTriggerMessage{
		JobID:          jobID,
		IdempotencyKey: uuid.New().String(),
		Trigger:        trigger,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal edit trigger: %w", err)
	}

	if err := h.publisher.Publish(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish edit trigger: %w", err)
	}

	h.logger.Info("Edit trigger published",
		slog.String("job_id", jobID),
		slog.String("trigger", trigger),
	)

	return nil
}
