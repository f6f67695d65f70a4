package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sebasr/wifi-registry/internal/export"
	"github.com/sebasr/wifi-registry/internal/models"
	"github.com/sebasr/wifi-registry/internal/repository"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler serves downloads of the stored records
type ExportHandler struct {
	repo repository.AccessPointRepository
}

// NewExportHandler creates a new export handler
func NewExportHandler(repo repository.AccessPointRepository) *ExportHandler {
	return &ExportHandler{repo: repo}
}

// JSON downloads every record as a JSON array. Passwords are included only
// for authenticated operators.
// GET /api/v1/export.json
func (h *ExportHandler) JSON(c *gin.Context) {
	h.serve(c, "wifi_table.json", "application/json; charset=utf-8", export.WriteJSON)
}

// XLSX downloads every record as a spreadsheet
// GET /api/v1/export.xlsx
func (h *ExportHandler) XLSX(c *gin.Context) {
	h.serve(c, "wifi_table.xlsx", xlsxContentType, export.WriteXLSX)
}

// serve renders into a buffer first so a failure can still produce an error response
func (h *ExportHandler) serve(c *gin.Context, filename, contentType string, write func(io.Writer, []*models.AccessPoint) error) {
	records, err := h.repo.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, visibleRecords(c, records)); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to render export",
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
