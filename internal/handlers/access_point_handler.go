package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sebasr/wifi-registry/internal/dedup"
	"github.com/sebasr/wifi-registry/internal/ingest"
	"github.com/sebasr/wifi-registry/internal/middleware"
	"github.com/sebasr/wifi-registry/internal/models"
	"github.com/sebasr/wifi-registry/internal/repository"
	"github.com/sebasr/wifi-registry/internal/validation"
)

// DefaultMaxUploadBytes bounds request bodies and uploaded files
const DefaultMaxUploadBytes int64 = 10 << 20

// AccessPointHandler handles access point ingestion and CRUD requests
type AccessPointHandler struct {
	repo           repository.AccessPointRepository
	ingester       *ingest.Controller
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewAccessPointHandler creates a new access point handler
func NewAccessPointHandler(repo repository.AccessPointRepository, ingester *ingest.Controller, logger *zap.Logger) *AccessPointHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessPointHandler{
		repo:           repo,
		ingester:       ingester,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
}

// WithMaxUploadBytes sets the body size limit. Non-positive values keep the default.
func (h *AccessPointHandler) WithMaxUploadBytes(n int64) *AccessPointHandler {
	if n > 0 {
		h.maxUploadBytes = n
	}
	return h
}

// CreateResponse is returned for a stored single record
type CreateResponse struct {
	BSSID string `json:"bssid"`
}

// ListResponse wraps the stored records
type ListResponse struct {
	Count   int                   `json:"count"`
	Records []*models.AccessPoint `json:"records"`
}

// readBody reads the request body up to the configured limit
func (h *AccessPointHandler) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "payload_too_large",
				"message": "Request body exceeds the upload limit",
			})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Failed to read request body",
		})
		return nil, false
	}
	return body, true
}

// Create stores a single record
// POST /api/v1/access-points
func (h *AccessPointHandler) Create(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	bssid, err := h.ingester.Ingest(c.Request.Context(), body)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("access point created",
		zap.String("bssid", bssid),
		zap.String("operator", middleware.OperatorOrAnonymous(c)))

	c.JSON(http.StatusCreated, CreateResponse{BSSID: bssid})
}

// CreateBatch ingests an array of records, or an object wrapping one
// POST /api/v1/access-points/batch
func (h *AccessPointHandler) CreateBatch(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	doc, err := ingest.Decode(body)
	if err != nil {
		respondError(c, err)
		return
	}

	items, ok := doc.([]any)
	if !ok {
		obj, isObject := doc.(map[string]any)
		if isObject {
			if _, single := obj[models.FieldBSSID]; !single {
				items, err = dedup.FindRecords(obj)
			}
		}
		if !isObject || items == nil || err != nil {
			respondError(c, &ingest.StructuralError{Reason: "batch payload must be an array or contain a record array"})
			return
		}
	}

	c.JSON(http.StatusOK, h.ingester.IngestBatch(c.Request.Context(), items))
}

// Upload ingests a .json file sent as multipart field "file"
// POST /api/v1/access-points/upload
func (h *AccessPointHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Multipart field 'file' is required",
		})
		return
	}

	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".json") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Only .json files are accepted",
		})
		return
	}

	if fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "payload_too_large",
			"message": "File exceeds the upload limit",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Failed to open uploaded file",
		})
		return
	}
	defer file.Close()

	res, err := h.ingester.IngestReader(c.Request.Context(), file)
	if err != nil {
		if res != nil && res.Batch != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   ingest.Kind(err),
				"message": err.Error(),
				"partial": res.Batch,
			})
			return
		}
		respondError(c, err)
		return
	}

	h.logger.Info("file uploaded",
		zap.String("file", fileHeader.Filename),
		zap.String("operator", middleware.OperatorOrAnonymous(c)))

	if res.Batch != nil {
		c.JSON(http.StatusOK, res.Batch)
		return
	}
	c.JSON(http.StatusCreated, CreateResponse{BSSID: res.BSSID})
}

// List returns every stored record
// GET /api/v1/access-points
func (h *AccessPointHandler) List(c *gin.Context) {
	records, err := h.repo.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	records = visibleRecords(c, records)
	c.JSON(http.StatusOK, ListResponse{Count: len(records), Records: records})
}

// Get returns one record
// GET /api/v1/access-points/:bssid
func (h *AccessPointHandler) Get(c *gin.Context) {
	ap, err := h.repo.Get(c.Request.Context(), c.Param("bssid"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, visibleRecord(c, ap))
}

// visibleRecords strips passwords unless the request carries a valid
// operator token
func visibleRecords(c *gin.Context, records []*models.AccessPoint) []*models.AccessPoint {
	if _, err := middleware.GetOperator(c); err == nil {
		return records
	}
	redacted := make([]*models.AccessPoint, len(records))
	for i, ap := range records {
		redacted[i] = ap.Redacted()
	}
	return redacted
}

func visibleRecord(c *gin.Context, ap *models.AccessPoint) *models.AccessPoint {
	return visibleRecords(c, []*models.AccessPoint{ap})[0]
}

// Update replaces a stored record. The body bssid, when present, must match
// the path.
// PUT /api/v1/access-points/:bssid
func (h *AccessPointHandler) Update(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	doc, err := ingest.Decode(body)
	if err != nil {
		respondError(c, err)
		return
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		respondError(c, &ingest.StructuralError{Reason: "payload must be a JSON object"})
		return
	}

	bssid := c.Param("bssid")
	payload := validation.Normalize(obj)
	if v, present := payload[models.FieldBSSID]; !present || v == "" {
		payload[models.FieldBSSID] = bssid
	}

	ap, err := validation.Record(payload)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.repo.Update(c.Request.Context(), bssid, ap); err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("access point updated",
		zap.String("bssid", ap.BSSID),
		zap.String("operator", middleware.OperatorOrAnonymous(c)))

	c.JSON(http.StatusOK, visibleRecord(c, ap))
}

// Delete removes a stored record
// DELETE /api/v1/access-points/:bssid
func (h *AccessPointHandler) Delete(c *gin.Context) {
	bssid := c.Param("bssid")
	if err := h.repo.Delete(c.Request.Context(), bssid); err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("access point deleted",
		zap.String("bssid", strings.ToUpper(bssid)),
		zap.String("operator", middleware.OperatorOrAnonymous(c)))

	c.Status(http.StatusNoContent)
}
