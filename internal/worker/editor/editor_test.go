package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiselista/photo-jobs-be/shared/logger"
)

type fakeCopier struct {
	copies  map[string]string
	copyErr error
}

func (c *fakeCopier) Copy(_ context.Context, srcKey, dstKey string) error {
	if c.copyErr != nil {
		return c.copyErr
	}
	if c.copies == nil {
		c.copies = make(map[string]string)
	}
	c.copies[srcKey] = dstKey
	return nil
}

func TestEditedKey(t *testing.T) {
	tests := []struct {
		original string
		edited   string
	}{
		{"user1/job1/photo.jpg", "user1/job1/edited-photo.jpg"},
		{"photo.jpg", "edited-photo.jpg"},
		{"a/b/c/noext", "a/b/c/edited-noext"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.edited, EditedKey(tt.original))
	}
}

func TestMockEditor_CopiesOriginal(t *testing.T) {
	copier := &fakeCopier{}
	ed := NewMockEditor(copier, logger.NewDefault(), 0)

	editedKey, err := ed.EditPhoto(context.Background(), "u/j/front.jpg", "exterior")
	require.NoError(t, err)
	assert.Equal(t, "u/j/edited-front.jpg", editedKey)
	assert.Equal(t, "u/j/edited-front.jpg", copier.copies["u/j/front.jpg"])
}

func TestMockEditor_CopyFailure(t *testing.T) {
	copier := &fakeCopier{copyErr: errors.New("bucket gone")}
	ed := NewMockEditor(copier, logger.NewDefault(), 0)

	_, err := ed.EditPhoto(context.Background(), "u/j/front.jpg", "kitchen")
	assert.Error(t, err)
}

func TestMockEditor_CanceledDuringDelay(t *testing.T) {
	copier := &fakeCopier{}
	ed := NewMockEditor(copier, logger.NewDefault(), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ed.EditPhoto(ctx, "u/j/front.jpg", "kitchen")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, copier.copies)
}
