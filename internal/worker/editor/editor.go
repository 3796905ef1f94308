package editor

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"
)

// Editor produces an edited rendition of an original photo object and
// returns the object key it was stored under.
type Editor interface {
	EditPhoto(ctx context.Context, originalKey, roomType string) (string, error)
}

// ObjectCopier is the object storage surface the mock editor needs.
type ObjectCopier interface {
	Copy(ctx context.Context, srcKey, dstKey string) error
}

// MockEditor stands in for the real AI editing pipeline. It waits a
// configurable delay and copies the original object to an edited key, so
// the rest of the lifecycle behaves exactly as it will with a real editor.
type MockEditor struct {
	objects ObjectCopier
	logger  *slog.Logger
	delay   time.Duration
}

// NewMockEditor creates a MockEditor.
func NewMockEditor(objects ObjectCopier, logger *slog.Logger, delay time.Duration) *MockEditor {
	return &MockEditor{
		objects: objects,
		logger:  logger,
		delay:   delay,
	}
}

// EditPhoto simulates editing with a delay, then copies the original to
// user/job/edited-<file>.
func (e *MockEditor) EditPhoto(ctx context.Context, originalKey, roomType string) (string, error) {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return "", fmt.Errorf("editing canceled: %w", ctx.Err())
		}
	}

	editedKey := EditedKey(originalKey)
	if err := e.objects.Copy(ctx, originalKey, editedKey); err != nil {
		return "", fmt.Errorf("failed to store edited photo: %w", err)
	}

	e.logger.Debug("Photo edited",
		slog.String("original_key", originalKey),
		slog.String("edited_key", editedKey),
		slog.String("room_type", roomType),
	)

	return editedKey, nil
}

// EditedKey derives the edited object key from an original key.
func EditedKey(originalKey string) string {
	dir, file := path.Split(originalKey)
	return dir + "edited-" + file
}
