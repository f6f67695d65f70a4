package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// DefaultUploadRateLimit is the per-IP upload allowance per minute
const DefaultUploadRateLimit = 10

// NewRateLimitMiddleware limits each client IP to limit requests per period.
// limit <= 0 disables limiting.
func NewRateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}

	store := memory.NewStore()
	instance := limiter.New(store, rate)

	return mgin.NewMiddleware(instance)
}

// NewUploadRateLimitMiddleware creates the stricter limiter for file uploads
// and batch ingestion
func NewUploadRateLimitMiddleware(limit int64) gin.HandlerFunc {
	if limit == 0 {
		limit = DefaultUploadRateLimit
	}
	return NewRateLimitMiddleware(limit, time.Minute)
}
