package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiselista/photo-jobs-be/internal/worker/domain"
	"github.com/wiselista/photo-jobs-be/internal/worker/editor"
	"github.com/wiselista/photo-jobs-be/shared/logger"
)

type fakeJobStore struct {
	mu     sync.Mutex
	jobs   map[string]*domain.Job
	photos map[string][]domain.Photo

	failureReasons map[string]string
	completedAt    map[string]bool
	getErr         error
	listErr        error
	setEditedErr   error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		jobs:           make(map[string]*domain.Job),
		photos:         make(map[string][]domain.Photo),
		failureReasons: make(map[string]string),
		completedAt:    make(map[string]bool),
	}
}

func (s *fakeJobStore) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) ListPhotos(_ context.Context, jobID string) ([]domain.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]domain.Photo(nil), s.photos[jobID]...), nil
}

func (s *fakeJobStore) SetPhotoEdited(_ context.Context, photoID, editedKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setEditedErr != nil {
		return s.setEditedErr
	}
	for jobID, photos := range s.photos {
		for i := range photos {
			if photos[i].ID == photoID && photos[i].EditedKey == nil {
				key := editedKey
				s.photos[jobID][i].EditedKey = &key
			}
		}
	}
	return nil
}

func (s *fakeJobStore) MarkReady(_ context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != domain.JobStatusProcessing {
		return false, nil
	}
	job.Status = domain.JobStatusReady
	s.completedAt[jobID] = true
	return true, nil
}

func (s *fakeJobStore) MarkFailed(_ context.Context, jobID, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != domain.JobStatusProcessing {
		return false, nil
	}
	job.Status = domain.JobStatusFailed
	s.failureReasons[jobID] = reason
	return true, nil
}

func (s *fakeJobStore) ReapStaleProcessing(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func (s *fakeJobStore) jobStatus(jobID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		return job.Status
	}
	return ""
}

// fakeEditor edits in memory, failing on keys listed in failKeys.
type fakeEditor struct {
	mu       sync.Mutex
	edits    []string
	failKeys map[string]bool
}

func (e *fakeEditor) EditPhoto(_ context.Context, originalKey, _ string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failKeys[originalKey] {
		return "", errors.New("editing blew up")
	}
	e.edits = append(e.edits, originalKey)
	return editor.EditedKey(originalKey), nil
}

func newTestWorker(store JobStore, ed editor.Editor) *Worker {
	return NewWorker(&Config{
		Logger:            logger.NewDefault(),
		Storage:           store,
		Editor:            ed,
		Concurrency:       1,
		PrefetchCount:     1,
		JobTimeout:        time.Minute,
		ProcessingTimeout: 30 * time.Minute,
		ReapInterval:      time.Minute,
	})
}

func seedProcessingJob(store *fakeJobStore, photoKeys ...string) string {
	jobID := uuid.NewString()
	store.jobs[jobID] = &domain.Job{
		ID:     jobID,
		UserID: uuid.NewString(),
		Status: domain.JobStatusProcessing,
	}
	for i, key := range photoKeys {
		store.photos[jobID] = append(store.photos[jobID], domain.Photo{
			ID:          uuid.NewString(),
			JobID:       jobID,
			RoomType:    "kitchen",
			Sequence:    i,
			OriginalKey: key,
		})
	}
	return jobID
}

func trigger(jobID string) *domain.EditTrigger {
	return &domain.EditTrigger{
		JobID:          jobID,
		IdempotencyKey: uuid.NewString(),
		Trigger:        "submit",
		DeliveryTag:    1,
	}
}

func TestProcessTrigger_EditsAllPhotosAndMarksReady(t *testing.T) {
	store := newFakeJobStore()
	ed := &fakeEditor{}
	w := newTestWorker(store, ed)
	jobID := seedProcessingJob(store, "u/j/a.jpg", "u/j/b.jpg")

	err := w.processTrigger(context.Background(), trigger(jobID))
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusReady, store.jobStatus(jobID))
	assert.True(t, store.completedAt[jobID])
	assert.Len(t, ed.edits, 2)

	for _, photo := range store.photos[jobID] {
		require.NotNil(t, photo.EditedKey)
		assert.Equal(t, editor.EditedKey(photo.OriginalKey), *photo.EditedKey)
	}
}

func TestProcessTrigger_RedeliverySkipsEditedPhotos(t *testing.T) {
	store := newFakeJobStore()
	ed := &fakeEditor{}
	w := newTestWorker(store, ed)
	jobID := seedProcessingJob(store, "u/j/a.jpg", "u/j/b.jpg")

	done := editor.EditedKey("u/j/a.jpg")
	store.photos[jobID][0].EditedKey = &done

	err := w.processTrigger(context.Background(), trigger(jobID))
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusReady, store.jobStatus(jobID))
	assert.Equal(t, []string{"u/j/b.jpg"}, ed.edits)
}

func TestProcessTrigger_NonProcessingJobIsAcked(t *testing.T) {
	for _, status := range []string{domain.JobStatusReady, domain.JobStatusFailed, "payment_pending"} {
		t.Run(status, func(t *testing.T) {
			store := newFakeJobStore()
			ed := &fakeEditor{}
			w := newTestWorker(store, ed)
			jobID := seedProcessingJob(store, "u/j/a.jpg")
			store.jobs[jobID].Status = status

			err := w.processTrigger(context.Background(), trigger(jobID))
			require.NoError(t, err)
			assert.Equal(t, status, store.jobStatus(jobID))
			assert.Empty(t, ed.edits)
		})
	}
}

func TestProcessTrigger_UnknownJobIsAcked(t *testing.T) {
	store := newFakeJobStore()
	w := newTestWorker(store, &fakeEditor{})

	err := w.processTrigger(context.Background(), trigger(uuid.NewString()))
	assert.NoError(t, err)
}

func TestProcessTrigger_NoPhotosFailsJob(t *testing.T) {
	store := newFakeJobStore()
	w := newTestWorker(store, &fakeEditor{})
	jobID := seedProcessingJob(store)

	err := w.processTrigger(context.Background(), trigger(jobID))
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, store.jobStatus(jobID))
	assert.Equal(t, "no photos to edit", store.failureReasons[jobID])
}

func TestProcessTrigger_EditFailureFailsJob(t *testing.T) {
	store := newFakeJobStore()
	ed := &fakeEditor{failKeys: map[string]bool{"u/j/b.jpg": true}}
	w := newTestWorker(store, ed)
	jobID := seedProcessingJob(store, "u/j/a.jpg", "u/j/b.jpg")

	err := w.processTrigger(context.Background(), trigger(jobID))
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, store.jobStatus(jobID))
	assert.Equal(t, "photo editing failed", store.failureReasons[jobID])
	// completed_at marks successful completion only.
	assert.False(t, store.completedAt[jobID])
}

func TestProcessTrigger_TransientErrorsAreRetryable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeJobStore)
	}{
		{
			name:   "get job fails",
			mutate: func(s *fakeJobStore) { s.getErr = errors.New("connection refused") },
		},
		{
			name:   "list photos fails",
			mutate: func(s *fakeJobStore) { s.listErr = errors.New("connection refused") },
		},
		{
			name:   "record edited key fails",
			mutate: func(s *fakeJobStore) { s.setEditedErr = errors.New("connection refused") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeJobStore()
			w := newTestWorker(store, &fakeEditor{})
			jobID := seedProcessingJob(store, "u/j/a.jpg")
			tt.mutate(store)

			err := w.processTrigger(context.Background(), trigger(jobID))
			require.Error(t, err)

			var retryable *domain.RetryableError
			assert.True(t, errors.As(err, &retryable))
			assert.True(t, shouldRequeue(err))
		})
	}
}

func TestShouldRequeue(t *testing.T) {
	assert.True(t, shouldRequeue(domain.NewRetryableError(errors.New("dial tcp"))))
	assert.False(t, shouldRequeue(domain.ErrInvalidPayload))
	assert.False(t, shouldRequeue(errors.New("something else")))
}
