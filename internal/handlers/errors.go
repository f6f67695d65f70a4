package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sebasr/wifi-registry/internal/ingest"
	"github.com/sebasr/wifi-registry/internal/validation"
)

// statusFor maps an ingestion error kind to an HTTP status
func statusFor(kind string) int {
	switch kind {
	case ingest.KindParse, ingest.KindStructural:
		return http.StatusBadRequest
	case ingest.KindValidation, ingest.KindExampleData:
		return http.StatusUnprocessableEntity
	case ingest.KindConflict:
		return http.StatusConflict
	case ingest.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {error, field?, message}. Storage failures are
// reported without their cause.
func respondError(c *gin.Context, err error) {
	kind := ingest.Kind(err)
	body := gin.H{
		"error":   kind,
		"message": err.Error(),
	}

	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
	}

	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		body["message"] = "Failed to access the record store"
	}

	c.JSON(status, body)
}
