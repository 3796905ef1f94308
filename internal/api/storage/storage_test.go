package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiselista/photo-jobs-be/internal/api/domain"
)

func TestTransitionStatus_RejectsInvalidEdge(t *testing.T) {
	// Disallowed edges are refused before any SQL runs, so no database is
	// needed here.
	s := &Storage{}

	tests := []struct {
		name string
		from string
		to   string
	}{
		{"draft cannot skip to ready", domain.JobStatusDraft, domain.JobStatusReady},
		{"ready is terminal", domain.JobStatusReady, domain.JobStatusProcessing},
		{"failed is terminal", domain.JobStatusFailed, domain.JobStatusDraft},
		{"processing cannot return to draft", domain.JobStatusProcessing, domain.JobStatusDraft},
		{"unknown status", "archived", domain.JobStatusProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			moved, err := s.TransitionStatus(context.Background(), "job-1", tt.from, tt.to)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidState)
			assert.False(t, moved)
		})
	}
}
