// Package server provides HTTP server setup and configuration.
package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sebasr/wifi-registry/internal/auth"
	"github.com/sebasr/wifi-registry/internal/config"
	"github.com/sebasr/wifi-registry/internal/dedup"
	"github.com/sebasr/wifi-registry/internal/enrichment"
	"github.com/sebasr/wifi-registry/internal/handlers"
	"github.com/sebasr/wifi-registry/internal/ingest"
	"github.com/sebasr/wifi-registry/internal/metrics"
	"github.com/sebasr/wifi-registry/internal/middleware"
	"github.com/sebasr/wifi-registry/internal/repository"
)

const healthPath = "/api/v1/health"

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check if request ID already exists in header
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("RequestID", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// Dependencies holds all dependencies needed to create a server
type Dependencies struct {
	Config     *config.Config
	Repo       repository.AccessPointRepository
	Controller *ingest.Controller
	Machine    *enrichment.Machine
	Metrics    *metrics.Metrics       // Optional: /metrics is not served when nil
	DB         handlers.HealthChecker // Optional: health reports the database as not configured when nil
	Logger     *zap.Logger            // Optional: requests are not logged when nil
}

// New creates a new Gin router with all routes configured
func New(deps *Dependencies) *gin.Engine {
	// Set Gin to release mode to disable ANSI colors in logs
	gin.SetMode(gin.ReleaseMode)

	// gin.Default() includes colored logging which contaminates HTTP responses with ANSI codes
	router := gin.New()
	router.Use(gin.Recovery())

	if deps.Logger != nil {
		router.Use(middleware.RequestLogger(deps.Logger, healthPath))
	}

	// Add CORS middleware for web client support
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Encoding", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	cfg := deps.Config
	router.Use(RequestIDMiddleware())
	router.Use(middleware.NewRateLimitMiddleware(cfg.Server.RateLimit, time.Minute))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithDecompressFn(gzip.DefaultDecompressHandle)))

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTokenTTL)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	guard := authMiddleware.Guard(cfg.Auth.Required)
	uploadLimiter := middleware.NewUploadRateLimitMiddleware(cfg.Server.UploadRateLimit)

	accessPointHandler := handlers.NewAccessPointHandler(deps.Repo, deps.Controller, deps.Logger).
		WithMaxUploadBytes(cfg.Server.MaxUploadBytes)
	enrichmentHandler := handlers.NewEnrichmentHandler(deps.Repo, deps.Machine)
	exportHandler := handlers.NewExportHandler(deps.Repo)
	dedupHandler := handlers.NewDedupHandler(dedup.NewEngine(cfg.Ingest.DedupFields...), cfg.Server.MaxUploadBytes)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthHandler(deps.DB))
		if deps.Metrics != nil {
			v1.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
		}

		accessPoints := v1.Group("/access-points")
		{
			accessPoints.GET("", guard, accessPointHandler.List)
			accessPoints.GET("/:bssid", guard, accessPointHandler.Get)
			accessPoints.POST("", guard, accessPointHandler.Create)
			accessPoints.POST("/batch", guard, uploadLimiter, accessPointHandler.CreateBatch)
			accessPoints.POST("/upload", guard, uploadLimiter, accessPointHandler.Upload)
			accessPoints.PUT("/:bssid", guard, accessPointHandler.Update)
			accessPoints.DELETE("/:bssid", guard, accessPointHandler.Delete)
		}

		enrichmentGroup := v1.Group("/enrichment/:session")
		enrichmentGroup.Use(guard)
		{
			enrichmentGroup.GET("", enrichmentHandler.Get)
			enrichmentGroup.POST("/start", enrichmentHandler.Start)
			enrichmentGroup.POST("/input", enrichmentHandler.Input)
			enrichmentGroup.DELETE("", enrichmentHandler.Cancel)
		}

		v1.GET("/export.json", guard, exportHandler.JSON)
		v1.GET("/export.xlsx", guard, exportHandler.XLSX)

		v1.POST("/dedup", uploadLimiter, dedupHandler.Dedup)
	}

	return router
}
