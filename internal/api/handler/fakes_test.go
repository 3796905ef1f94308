package handler

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wiselista/photo-jobs-be/internal/api/domain"
	"github.com/wiselista/photo-jobs-be/internal/api/identity"
	"github.com/wiselista/photo-jobs-be/internal/api/model"
	"github.com/wiselista/photo-jobs-be/internal/api/payments"
	"github.com/wiselista/photo-jobs-be/internal/api/storage"
	"github.com/wiselista/photo-jobs-be/shared/logger"
)

// fakeStore is an in-memory JobStore mirroring the SQL guards: transitions
// are compare-and-set on the current status.
type fakeStore struct {
	mu       sync.Mutex
	jobs     map[string]*model.Job
	photos   map[string][]model.Photo
	payments map[string]model.Payment // keyed by provider event id

	forceCASLoss bool
	getErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:     make(map[string]*model.Job),
		photos:   make(map[string][]model.Photo),
		payments: make(map[string]model.Payment),
	}
}

func (s *fakeStore) CreateJob(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeStore) GetJobForOwner(_ context.Context, jobID, userID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	job, ok := s.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeStore) GetJob(_ context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeStore) ListJobs(_ context.Context, filter storage.JobFilter) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []model.Job
	for _, job := range s.jobs {
		if job.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Cursor != nil && !job.CreatedAt.Before(filter.Cursor.CreatedAt) {
			continue
		}
		jobs = append(jobs, *job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if len(jobs) > filter.PageSize+1 {
		jobs = jobs[:filter.PageSize+1]
	}
	return jobs, nil
}

func (s *fakeStore) TransitionStatus(_ context.Context, jobID, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !domain.CanTransition(from, to) {
		return false, domain.ErrInvalidState
	}
	if s.forceCASLoss {
		return false, nil
	}
	job, ok := s.jobs[jobID]
	if !ok || job.Status != from {
		return false, nil
	}
	job.Status = to
	job.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *fakeStore) MarkProcessingPaid(_ context.Context, jobID, checkoutSessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != domain.JobStatusPaymentPending {
		return false, nil
	}
	job.Status = domain.JobStatusProcessing
	job.CheckoutSessionID = &checkoutSessionID
	job.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *fakeStore) MarkFailed(_ context.Context, jobID, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != domain.JobStatusProcessing {
		return false, nil
	}
	job.Status = domain.JobStatusFailed
	job.FailureReason = &reason
	job.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *fakeStore) InsertPhoto(_ context.Context, photo *model.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.photos[photo.JobID] {
		if p.Sequence == photo.Sequence {
			return domain.ErrSequenceTaken
		}
	}
	s.photos[photo.JobID] = append(s.photos[photo.JobID], *photo)
	return nil
}

func (s *fakeStore) ListPhotos(_ context.Context, jobID string) ([]model.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	photos := append([]model.Photo(nil), s.photos[jobID]...)
	sort.Slice(photos, func(i, j int) bool {
		return photos[i].Sequence < photos[j].Sequence
	})
	return photos, nil
}

func (s *fakeStore) CountPhotos(_ context.Context, jobID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.photos[jobID]), nil
}

func (s *fakeStore) InsertPayment(_ context.Context, payment *model.Payment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[payment.ProviderEventID]; exists {
		return false, nil
	}
	s.payments[payment.ProviderEventID] = *payment
	return true, nil
}

func (s *fakeStore) jobStatus(jobID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		return job.Status
	}
	return ""
}

// fakeObjects records uploads and presigns deterministic URLs.
type fakeObjects struct {
	mu       sync.Mutex
	uploaded map[string]int64
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{uploaded: make(map[string]int64)}
}

func (o *fakeObjects) Upload(_ context.Context, key string, reader io.Reader, size int64, _ string) error {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.uploaded[key] = size
	return nil
}

func (o *fakeObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

// fakeCheckout returns canned checkout sessions and parsed webhook events.
type fakeCheckout struct {
	session    *payments.CheckoutSession
	createErr  error
	expired    []string
	expireErr  error
	parseEvent *payments.CheckoutCompleted
	parseErr   error
}

func (f *fakeCheckout) CreateCheckoutSession(_ context.Context, _ string) (*payments.CheckoutSession, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.session, nil
}

func (f *fakeCheckout) ExpireCheckoutSession(_ context.Context, sessionID string) error {
	if f.expireErr != nil {
		return f.expireErr
	}
	f.expired = append(f.expired, sessionID)
	return nil
}

func (f *fakeCheckout) ParseWebhook(_ []byte, _ string) (*payments.CheckoutCompleted, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.parseEvent, nil
}

// fakePublisher records published trigger bodies.
type fakePublisher struct {
	mu         sync.Mutex
	published  [][]byte
	publishErr error
}

func (p *fakePublisher) Publish(_ context.Context, body []byte, _ string) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, body)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type testEnv struct {
	store     *fakeStore
	objects   *fakeObjects
	checkout  *fakeCheckout
	publisher *fakePublisher
	handler   *JobHandler
}

func newTestEnv(paymentsEnabled bool) *testEnv {
	env := &testEnv{
		store:   newFakeStore(),
		objects: newFakeObjects(),
		checkout: &fakeCheckout{
			session: &payments.CheckoutSession{
				ID:  "cs_test_1",
				URL: "https://checkout.example/cs_test_1",
			},
		},
		publisher: &fakePublisher{},
	}

	env.handler = NewJobHandler(&Dependencies{
		Logger:          logger.NewDefault(),
		Storage:         env.store,
		Objects:         env.objects,
		Payments:        env.checkout,
		Publisher:       env.publisher,
		PaymentsEnabled: paymentsEnabled,
		URLExpiry:       time.Hour,
	})

	return env
}

// newTestRouter mounts the handler routes with a stubbed authenticated user.
func newTestRouter(h *JobHandler, user *identity.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/webhooks/payment", h.PaymentWebhook)

	if user != nil {
		r.Use(func(c *gin.Context) {
			c.Set(identity.ContextKey, user)
		})
	}
	r.POST("/api/v1/jobs", h.CreateJob)
	r.GET("/api/v1/jobs", h.ListJobs)
	r.GET("/api/v1/jobs/:job_id", h.GetJob)
	r.POST("/api/v1/jobs/:job_id/photos", h.UploadPhoto)
	r.POST("/api/v1/jobs/:job_id/submit", h.SubmitJob)

	return r
}
