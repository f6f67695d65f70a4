package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sebasr/wifi-registry/internal/dedup"
	"github.com/sebasr/wifi-registry/internal/ingest"
)

// DedupHandler removes repeated records from a posted document without
// storing anything
type DedupHandler struct {
	engine         *dedup.Engine
	maxUploadBytes int64
}

// NewDedupHandler creates a new dedup handler. A nil engine uses the default fields.
func NewDedupHandler(engine *dedup.Engine, maxUploadBytes int64) *DedupHandler {
	if engine == nil {
		engine = dedup.NewEngine()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &DedupHandler{
		engine:         engine,
		maxUploadBytes: maxUploadBytes,
	}
}

// Dedup streams the posted document through the engine
// POST /api/v1/dedup
func (h *DedupHandler) Dedup(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	result, err := h.engine.DedupStream(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "payload_too_large",
				"message": "Request body exceeds the upload limit",
			})
		case errors.Is(err, dedup.ErrNoRecords):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   ingest.KindStructural,
				"message": err.Error(),
			})
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   ingest.KindParse,
				"message": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
