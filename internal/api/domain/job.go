package domain

import (
	"errors"
)

// Job lifecycle statuses. A job only ever moves forward along the edges in
// validTransitions; ready and failed are terminal.
const (
	JobStatusDraft          = "draft"
	JobStatusSubmitted      = "submitted"
	JobStatusPaymentPending = "payment_pending"
	JobStatusProcessing     = "processing"
	JobStatusReady          = "ready"
	JobStatusFailed         = "failed"
)

// validTransitions lists the allowed status edges. "submitted" is accepted on
// rows written by older clients but nothing transitions into it anymore.
var validTransitions = map[string][]string{
	JobStatusDraft:          {JobStatusPaymentPending, JobStatusProcessing},
	JobStatusSubmitted:      {JobStatusPaymentPending, JobStatusProcessing},
	JobStatusPaymentPending: {JobStatusProcessing},
	JobStatusProcessing:     {JobStatusReady, JobStatusFailed},
}

// IsValidStatus reports whether s is a known job status.
func IsValidStatus(s string) bool {
	switch s {
	case JobStatusDraft, JobStatusSubmitted, JobStatusPaymentPending,
		JobStatusProcessing, JobStatusReady, JobStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no transition leaves the status.
func IsTerminalStatus(s string) bool {
	return IsValidStatus(s) && len(validTransitions[s]) == 0
}

// RoomTypes are the photo categories accepted on upload.
var RoomTypes = []string{"living_room", "kitchen", "bedroom", "bathroom", "exterior", "other"}

// IsValidRoomType reports whether rt is one of the accepted room categories.
func IsValidRoomType(rt string) bool {
	for _, t := range RoomTypes {
		if t == rt {
			return true
		}
	}
	return false
}

var (
	// ErrJobNotFound is returned when a job is missing or not owned by the caller.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidState is returned when an operation requires a status the job is not in.
	ErrInvalidState = errors.New("job is not in a valid state for this operation")

	// ErrNoPhotos is returned when submitting a job that owns no photos.
	ErrNoPhotos = errors.New("job has no photos")

	// ErrInvalidRoomType is returned for an unknown room category on upload.
	ErrInvalidRoomType = errors.New("invalid room_type")

	// ErrSequenceTaken is returned when a photo sequence is already used within the job.
	ErrSequenceTaken = errors.New("sequence already used for this job")

	// ErrEmptyFile is returned when the uploaded photo file has no content.
	ErrEmptyFile = errors.New("file required")

	// ErrSignatureInvalid is returned when a webhook signature does not verify.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
)
