package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/wiselista/photo-jobs-be/internal/api/handler"
	"github.com/wiselista/photo-jobs-be/internal/api/identity"
)

// Dependencies holds everything the router needs to wire routes and
// middleware.
type Dependencies struct {
	Logger          *slog.Logger
	Handler         *handler.Dependencies
	Verifier        identity.Verifier
	CookieName      string
	RedisClient     *redis.Client // nil disables rate limiting
	RateLimit       int
	RateWindow      time.Duration
	PaymentsEnabled bool
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	if deps.RedisClient != nil {
		r.Use(RateLimitMiddleware(RateLimiterConfig{
			RedisClient: deps.RedisClient,
			Limit:       deps.RateLimit,
			Window:      deps.RateWindow,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "photo-jobs-api",
		})
	})

	jobHandler := handler.NewJobHandler(deps.Handler)

	v1 := r.Group("/api/v1")
	{
		// The payment webhook authenticates by signature, not session.
		if deps.PaymentsEnabled {
			v1.POST("/webhooks/payment", jobHandler.PaymentWebhook)
		}

		jobs := v1.Group("/jobs")
		jobs.Use(AuthMiddleware(deps.Verifier, deps.CookieName))
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.POST("/:job_id/photos", jobHandler.UploadPhoto)
			jobs.POST("/:job_id/submit", jobHandler.SubmitJob)
		}
	}

	return r
}
