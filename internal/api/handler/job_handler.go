package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wiselista/photo-jobs-be/internal/api/domain"
	"github.com/wiselista/photo-jobs-be/internal/api/dto"
	"github.com/wiselista/photo-jobs-be/internal/api/model"
	"github.com/wiselista/photo-jobs-be/internal/api/storage"
)

// CreateJob handles POST /api/v1/jobs
// Creates a new draft job owned by the caller.
func (h *JobHandler) CreateJob(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	now := time.Now().UTC()
	job := model.Job{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Status:    domain.JobStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.storage.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("user_id", user.ID),
	)

	c.JSON(http.StatusOK, jobToDTO(&job))
}

// ListJobs handles GET /api/v1/jobs
// Lists the caller's jobs newest first with cursor pagination.
func (h *JobHandler) ListJobs(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	if req.Status != "" && !domain.IsValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
		return
	}

	filter := storage.JobFilter{
		UserID:   user.ID,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = jobToDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
// Returns the job with its photos in display order, each with presigned
// original/edited URLs when available.
func (h *JobHandler) GetJob(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	ctx := c.Request.Context()

	job, err := h.storage.GetJobForOwner(ctx, jobID, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	photos, err := h.storage.ListPhotos(ctx, jobID)
	if err != nil {
		h.logger.Error("Failed to list photos", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list photos"})
		return
	}

	resp := dto.JobDetailResponse{
		JobDTO: jobToDTO(job),
		Photos: make([]dto.PhotoDTO, len(photos)),
	}
	if job.FailureReason != nil {
		resp.FailureReason = *job.FailureReason
	}

	for i := range photos {
		resp.Photos[i] = h.photoToDTO(c, &photos[i])
	}

	c.JSON(http.StatusOK, resp)
}

// SubmitJob handles POST /api/v1/jobs/:job_id/submit
// Moves a draft job with at least one photo into the editing pipeline. With
// payments enabled the job awaits checkout and the response carries the
// checkout URL; otherwise it goes straight to processing.
func (h *JobHandler) SubmitJob(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	ctx := c.Request.Context()

	job, err := h.storage.GetJobForOwner(ctx, jobID, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	if job.Status != domain.JobStatusDraft {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job already submitted"})
		return
	}

	count, err := h.storage.CountPhotos(ctx, jobID)
	if err != nil {
		h.logger.Error("Failed to count photos", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count photos"})
		return
	}
	if count == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Add at least one photo"})
		return
	}

	if h.paymentsEnabled {
		h.submitPaid(c, jobID)
		return
	}
	h.submitDirect(c, jobID)
}

// submitPaid creates a checkout session and parks the job in payment_pending
// until the payment webhook arrives.
func (h *JobHandler) submitPaid(c *gin.Context, jobID string) {
	ctx := c.Request.Context()

	session, err := h.payments.CreateCheckoutSession(ctx, jobID)
	if err != nil {
		h.logger.Error("Failed to create checkout session",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
		return
	}

	moved, err := h.storage.TransitionStatus(ctx, jobID, domain.JobStatusDraft, domain.JobStatusPaymentPending)
	if err != nil {
		h.logger.Error("Failed to transition job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit job"})
		return
	}
	if !moved {
		// A concurrent submit won the compare-and-set. Expire the session so
		// the orphaned checkout cannot be paid against a job that is already
		// on another path.
		if expireErr := h.payments.ExpireCheckoutSession(ctx, session.ID); expireErr != nil {
			h.logger.Error("Failed to expire orphaned checkout session",
				slog.String("job_id", jobID),
				slog.String("session_id", session.ID),
				slog.String("error", expireErr.Error()),
			)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job already submitted"})
		return
	}

	h.logger.Info("Job awaiting payment",
		slog.String("job_id", jobID),
		slog.String("session_id", session.ID),
	)

	c.JSON(http.StatusOK, dto.SubmitJobResponse{URL: session.URL})
}

// submitDirect moves the job straight to processing and enqueues editing.
func (h *JobHandler) submitDirect(c *gin.Context, jobID string) {
	ctx := c.Request.Context()

	moved, err := h.storage.TransitionStatus(ctx, jobID, domain.JobStatusDraft, domain.JobStatusProcessing)
	if err != nil {
		h.logger.Error("Failed to transition job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit job"})
		return
	}
	if !moved {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job already submitted"})
		return
	}

	if err := h.publishEditTrigger(ctx, jobID, "submit"); err != nil {
		h.logger.Error("Failed to enqueue editing",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		// The job must not hang in processing with nothing queued.
		if _, failErr := h.storage.MarkFailed(ctx, jobID, "failed to enqueue editing"); failErr != nil {
			h.logger.Error("Failed to mark job failed", slog.String("error", failErr.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit job"})
		return
	}

	c.JSON(http.StatusOK, dto.SubmitJobResponse{OK: true, Message: "Job submitted for editing"})
}

func jobToDTO(job *model.Job) dto.JobDTO {
	d := dto.JobDTO{
		ID:        job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		d.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return d
}

// photoToDTO converts a photo row, attaching presigned URLs. A presign
// failure leaves the URL empty rather than failing the request.
func (h *JobHandler) photoToDTO(c *gin.Context, photo *model.Photo) dto.PhotoDTO {
	ctx := c.Request.Context()

	d := dto.PhotoDTO{
		ID:          photo.ID,
		RoomType:    photo.RoomType,
		Sequence:    photo.Sequence,
		OriginalKey: photo.OriginalKey,
		CreatedAt:   photo.CreatedAt.Format(time.RFC3339),
	}

	if url, err := h.objects.PresignGet(ctx, photo.OriginalKey, h.urlExpiry); err == nil {
		d.OriginalURL = url
	} else {
		h.logger.Warn("Failed to presign original",
			slog.String("photo_id", photo.ID),
			slog.String("error", err.Error()),
		)
	}

	if photo.EditedKey != nil {
		d.EditedKey = *photo.EditedKey
		if url, err := h.objects.PresignGet(ctx, *photo.EditedKey, h.urlExpiry); err == nil {
			d.EditedURL = url
		} else {
			h.logger.Warn("Failed to presign edited",
				slog.String("photo_id", photo.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return d
}
