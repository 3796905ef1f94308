// Package payments wraps the Stripe SDK: hosted checkout session creation on
// submit, and signed webhook decoding for completed checkouts.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/wiselista/photo-jobs-be/internal/api/domain"
)

// MaxWebhookBodyBytes caps the webhook request body read by the handler.
const MaxWebhookBodyBytes = int64(65536)

// Config holds payment provider settings.
type Config struct {
	SecretKey     string
	WebhookSecret string
	PriceCents    int64
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// Client talks to the payment provider.
type Client struct {
	config *Config
	logger *slog.Logger
}

// NewClient creates a payments client and installs the API key.
func NewClient(config *Config, logger *slog.Logger) *Client {
	stripe.Key = config.SecretKey
	return &Client{config: config, logger: logger}
}

// CheckoutSession is the caller-facing result of creating a checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// CreateCheckoutSession creates a hosted checkout for one job's editing fee.
// The job id rides in the session metadata so the webhook can correlate the
// payment back to the job.
func (c *Client) CreateCheckoutSession(ctx context.Context, jobID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.config.SuccessURL),
		CancelURL:  stripe.String(c.config.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(c.config.Currency),
					UnitAmount: stripe.Int64(c.config.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("AI photo editing"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("job_id", jobID)

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	c.logger.Info("Checkout session created",
		slog.String("job_id", jobID),
		slog.String("session_id", s.ID),
	)

	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ExpireCheckoutSession invalidates an open checkout session so it can no
// longer be paid.
func (c *Client) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := session.Expire(sessionID, params); err != nil {
		return fmt.Errorf("failed to expire checkout session: %w", err)
	}

	c.logger.Info("Checkout session expired",
		slog.String("session_id", sessionID),
	)

	return nil
}

// CheckoutCompleted is a decoded checkout.session.completed event. JobID is
// empty when the event carries no job_id metadata.
type CheckoutCompleted struct {
	EventID           string
	JobID             string
	CheckoutSessionID string
	PaymentIntentID   string
	AmountCents       int64
	Currency          string
}

// ParseWebhook verifies the webhook signature and decodes the event. It
// returns (nil, nil) for validly signed events of types this service does not
// handle, and domain.ErrSignatureInvalid when verification fails.
func (c *Client) ParseWebhook(payload []byte, sigHeader string) (*CheckoutCompleted, error) {
	// Webhook endpoints deliver with the account's pinned API version, which
	// rarely matches the SDK's; the signature alone decides authenticity.
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
		}
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		c.logger.Debug("Ignoring webhook event",
			slog.String("event_id", event.ID),
			slog.String("type", string(event.Type)),
		)
		return nil, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session from event %s: %w", event.ID, err)
	}

	completed := &CheckoutCompleted{
		EventID:           event.ID,
		JobID:             s.Metadata["job_id"],
		CheckoutSessionID: s.ID,
		AmountCents:       s.AmountTotal,
		Currency:          strings.ToUpper(string(s.Currency)),
	}
	if s.PaymentIntent != nil {
		completed.PaymentIntentID = s.PaymentIntent.ID
	}

	return completed, nil
}

// isSignatureError reports whether the verification failure means the
// delivery is unauthentic, as opposed to a payload we could not decode.
func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
