package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wiselista/photo-jobs-be/internal/api/domain"
	"github.com/wiselista/photo-jobs-be/internal/api/model"
	"github.com/wiselista/photo-jobs-be/internal/api/payments"
)

// PaymentWebhook handles POST /api/v1/webhooks/payment
// Verifies the provider signature and drives payment_pending → processing.
// Redelivery is idempotent: the payment insert is keyed on the provider
// event id and the transition is status-guarded, so a duplicate delivery
// neither duplicates the payment record nor re-enqueues editing.
//
// 4xx tells the provider to stop; 5xx makes it retry, which is only returned
// for persistence or publish failures where a retry can succeed.
func (h *JobHandler) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, payments.MaxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing signature"})
		return
	}

	event, err := h.payments.ParseWebhook(body, sigHeader)
	if err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			h.logger.Warn("Webhook signature verification failed", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook signature verification failed"})
			return
		}
		h.logger.Error("Failed to decode webhook", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}

	// Validly signed but not a checkout completion; acknowledge and move on.
	if event == nil {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	// Events without job metadata are acknowledged so the provider does not
	// retry something we can never correlate.
	if event.JobID == "" {
		h.logger.Warn("Checkout event without job_id metadata",
			slog.String("event_id", event.EventID),
		)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	ctx := c.Request.Context()

	job, err := h.storage.GetJob(ctx, event.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			h.logger.Warn("Checkout event for unknown job",
				slog.String("event_id", event.EventID),
				slog.String("job_id", event.JobID),
			)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	// A payment for a job that already finished is recorded for refund
	// follow-up; the guarded transition below will simply not fire.
	if domain.IsTerminalStatus(job.Status) {
		h.logger.Warn("Payment received for settled job",
			slog.String("event_id", event.EventID),
			slog.String("job_id", event.JobID),
			slog.String("job_status", job.Status),
		)
	}

	payment := model.Payment{
		ID:              uuid.New().String(),
		JobID:           event.JobID,
		ProviderEventID: event.EventID,
		PaymentIntentID: event.PaymentIntentID,
		AmountCents:     event.AmountCents,
		Currency:        event.Currency,
		Status:          "succeeded",
		CreatedAt:       time.Now().UTC(),
	}

	inserted, err := h.storage.InsertPayment(ctx, &payment)
	if err != nil {
		h.logger.Error("Failed to insert payment", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
		return
	}

	// The transition is attempted even for a redelivered event: if a prior
	// delivery recorded the payment but crashed before transitioning, the
	// retry completes the work.
	transitioned, err := h.storage.MarkProcessingPaid(ctx, event.JobID, event.CheckoutSessionID)
	if err != nil {
		h.logger.Error("Failed to transition job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update job"})
		return
	}

	if transitioned {
		if err := h.publishEditTrigger(ctx, event.JobID, "payment"); err != nil {
			h.logger.Error("Failed to enqueue editing",
				slog.String("job_id", event.JobID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue editing"})
			return
		}
	}

	h.logger.Info("Payment webhook processed",
		slog.String("event_id", event.EventID),
		slog.String("job_id", event.JobID),
		slog.String("job_status", job.Status),
		slog.Bool("payment_inserted", inserted),
		slog.Bool("transitioned", transitioned),
	)

	c.JSON(http.StatusOK, gin.H{"received": true})
}
