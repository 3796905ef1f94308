package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiselista/photo-jobs-be/internal/api/domain"
	"github.com/wiselista/photo-jobs-be/shared/logger"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload produces a Stripe-format signature header (t=..,v1=..) for the
// given payload.
func signPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedPayload(jobID string) []byte {
	meta := ""
	if jobID != "" {
		meta = fmt.Sprintf(`"metadata": {"job_id": %q},`, jobID)
	}
	return fmt.Appendf(nil, `{
		"id": "evt_test_1",
		"api_version": "2020-08-27",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"object": "checkout.session",
				%s
				"amount_total": 4900,
				"currency": "nzd",
				"payment_intent": "pi_test_1"
			}
		}
	}`, meta)
}

func newTestClient() *Client {
	return NewClient(&Config{WebhookSecret: testWebhookSecret}, logger.NewDefault())
}

func TestParseWebhook(t *testing.T) {
	client := newTestClient()

	t.Run("valid checkout completed event", func(t *testing.T) {
		payload := checkoutCompletedPayload("job-42")
		sig := signPayload(payload, testWebhookSecret, time.Now())

		completed, err := client.ParseWebhook(payload, sig)
		require.NoError(t, err)
		require.NotNil(t, completed)

		assert.Equal(t, "evt_test_1", completed.EventID)
		assert.Equal(t, "job-42", completed.JobID)
		assert.Equal(t, "cs_test_1", completed.CheckoutSessionID)
		assert.Equal(t, "pi_test_1", completed.PaymentIntentID)
		assert.Equal(t, int64(4900), completed.AmountCents)
		assert.Equal(t, "NZD", completed.Currency)
	})

	t.Run("delivery without api_version accepted", func(t *testing.T) {
		// Endpoints pin the account's API version; a mismatch with the SDK
		// (or an absent version) must not read as a signature failure.
		payload := []byte(`{"id": "evt_test_3", "type": "checkout.session.completed",
			"data": {"object": {"id": "cs_test_3", "object": "checkout.session",
			"metadata": {"job_id": "job-7"}, "amount_total": 4900, "currency": "nzd"}}}`)
		sig := signPayload(payload, testWebhookSecret, time.Now())

		completed, err := client.ParseWebhook(payload, sig)
		require.NoError(t, err)
		require.NotNil(t, completed)
		assert.Equal(t, "job-7", completed.JobID)
	})

	t.Run("missing job_id metadata", func(t *testing.T) {
		payload := checkoutCompletedPayload("")
		sig := signPayload(payload, testWebhookSecret, time.Now())

		completed, err := client.ParseWebhook(payload, sig)
		require.NoError(t, err)
		require.NotNil(t, completed)
		assert.Empty(t, completed.JobID)
	})

	t.Run("signature from wrong secret", func(t *testing.T) {
		payload := checkoutCompletedPayload("job-42")
		sig := signPayload(payload, "whsec_other", time.Now())

		completed, err := client.ParseWebhook(payload, sig)
		assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
		assert.Nil(t, completed)
	})

	t.Run("stale timestamp rejected", func(t *testing.T) {
		payload := checkoutCompletedPayload("job-42")
		sig := signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))

		_, err := client.ParseWebhook(payload, sig)
		assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		payload := checkoutCompletedPayload("job-42")
		sig := signPayload(payload, testWebhookSecret, time.Now())
		tampered := append([]byte(nil), payload...)
		tampered[len(tampered)-2] = ' '

		_, err := client.ParseWebhook(tampered, sig)
		assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
	})

	t.Run("unhandled event type is ignored", func(t *testing.T) {
		payload := []byte(`{"id": "evt_test_2", "type": "payment_intent.created", "data": {"object": {}}}`)
		sig := signPayload(payload, testWebhookSecret, time.Now())

		completed, err := client.ParseWebhook(payload, sig)
		require.NoError(t, err)
		assert.Nil(t, completed)
	})
}
