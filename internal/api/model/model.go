package model

import "time"

// Job is a row in the jobs table.
type Job struct {
	ID                string     `db:"id"`
	UserID            string     `db:"user_id"`
	Status            string     `db:"status"`
	FailureReason     *string    `db:"failure_reason"`
	CheckoutSessionID *string    `db:"checkout_session_id"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
	CompletedAt       *time.Time `db:"completed_at"`
}

// Photo is a row in the photos table. EditedKey stays nil until the editing
// worker populates it, exactly once.
type Photo struct {
	ID          string    `db:"id"`
	JobID       string    `db:"job_id"`
	RoomType    string    `db:"room_type"`
	Sequence    int       `db:"sequence"`
	OriginalKey string    `db:"original_key"`
	EditedKey   *string   `db:"edited_key"`
	CreatedAt   time.Time `db:"created_at"`
}

// Payment is a row in the payments table, written once per successful
// checkout event and never mutated.
type Payment struct {
	ID              string    `db:"id"`
	JobID           string    `db:"job_id"`
	ProviderEventID string    `db:"provider_event_id"`
	PaymentIntentID string    `db:"payment_intent_id"`
	AmountCents     int64     `db:"amount_cents"`
	Currency        string    `db:"currency"`
	Status          string    `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
}
