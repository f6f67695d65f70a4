package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthHandler returns a handler probing db. A nil db is reported as not configured.
func HealthHandler(db HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := HealthResponse{
			Status:    "healthy",
			Database:  "not_configured",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		}
		status := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := db.HealthCheck(ctx); err != nil {
				_ = c.Error(err)
				resp.Status = "unhealthy"
				resp.Database = "unreachable"
				status = http.StatusServiceUnavailable
			} else {
				resp.Database = "ok"
			}
		}

		c.PureJSON(status, resp)
	}
}
