package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wiselista/photo-jobs-be/internal/api/domain"
	"github.com/wiselista/photo-jobs-be/internal/api/dto"
	"github.com/wiselista/photo-jobs-be/internal/api/model"
)

// UploadPhoto handles POST /api/v1/jobs/:job_id/photos
// Accepts multipart form fields file, room_type, and sequence; stores the
// file in object storage under user/job/uuid.ext and inserts the photo row.
// Only draft jobs accept photos.
func (h *JobHandler) UploadPhoto(c *gin.Context) {
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
		c.JSON(http.StatusBadRequest, gin.H{"error": "Photos can only be added to draft jobs"})
		return
	}

	roomType := c.PostForm("room_type")
	if !domain.IsValidRoomType(roomType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room_type"})
		return
	}

	sequence, err := strconv.Atoi(c.DefaultPostForm("sequence", "0"))
	if err != nil || sequence < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sequence must be a non-negative integer"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("%s/%s/%s%s", user.ID, jobID, uuid.New().String(), ext)

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if err := h.objects.Upload(ctx, key, file, fileHeader.Size, contentType); err != nil {
		h.logger.Error("Failed to store photo",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store photo"})
		return
	}

	photo := model.Photo{
		ID:          uuid.New().String(),
		JobID:       jobID,
		RoomType:    roomType,
		Sequence:    sequence,
		OriginalKey: key,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.storage.InsertPhoto(ctx, &photo); err != nil {
		if errors.Is(err, domain.ErrSequenceTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Sequence already used for this job"})
			return
		}
		h.logger.Error("Failed to insert photo", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save photo"})
		return
	}

	h.logger.Info("Photo added",
		slog.String("job_id", jobID),
		slog.String("photo_id", photo.ID),
		slog.String("room_type", roomType),
		slog.Int("sequence", sequence),
	)

	c.JSON(http.StatusOK, dto.PhotoDTO{
		ID:          photo.ID,
		RoomType:    photo.RoomType,
		Sequence:    photo.Sequence,
		OriginalKey: photo.OriginalKey,
		CreatedAt:   photo.CreatedAt.Format(time.RFC3339),
	})
}
