package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sebasr/wifi-registry/internal/enrichment"
	"github.com/sebasr/wifi-registry/internal/repository"
)

// EnrichmentHandler exposes the enrichment conversation over HTTP. Sessions
// are named by the caller.
type EnrichmentHandler struct {
	repo    repository.AccessPointRepository
	machine *enrichment.Machine
}

// NewEnrichmentHandler creates a new enrichment handler
func NewEnrichmentHandler(repo repository.AccessPointRepository, machine *enrichment.Machine) *EnrichmentHandler {
	return &EnrichmentHandler{
		repo:    repo,
		machine: machine,
	}
}

// StartRequest names the record to enrich
type StartRequest struct {
	BSSID string `json:"bssid" binding:"required"`
}

// InputRequest carries one line of operator input
type InputRequest struct {
	Text string `json:"text"`
}

// Start begins a conversation for a stored record
// POST /api/v1/enrichment/:session/start
func (h *EnrichmentHandler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.BSSID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "bssid is required",
		})
		return
	}

	ap, err := h.repo.Get(c.Request.Context(), strings.TrimSpace(req.BSSID))
	if err != nil {
		respondError(c, err)
		return
	}

	reply, err := h.machine.Start(c.Request.Context(), c.Param("session"), ap.BSSID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to start enrichment",
		})
		return
	}

	c.JSON(http.StatusOK, reply)
}

// Input feeds one answer into the conversation
// POST /api/v1/enrichment/:session/input
func (h *EnrichmentHandler) Input(c *gin.Context) {
	var req InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	reply, err := h.machine.Handle(c.Request.Context(), c.Param("session"), req.Text)
	if err != nil {
		_ = c.Error(err)
		if reply.Kind == enrichment.ReplyFailed {
			c.JSON(http.StatusInternalServerError, reply)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to process input",
		})
		return
	}

	c.JSON(http.StatusOK, reply)
}

// Get returns the session's current state
// GET /api/v1/enrichment/:session
func (h *EnrichmentHandler) Get(c *gin.Context) {
	state, err := h.machine.State(c.Request.Context(), c.Param("session"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load session",
		})
		return
	}

	if state.IsIdle() {
		state = enrichment.Idle()
	}
	c.JSON(http.StatusOK, state)
}

// Cancel abandons the conversation
// DELETE /api/v1/enrichment/:session
func (h *EnrichmentHandler) Cancel(c *gin.Context) {
	reply, err := h.machine.Cancel(c.Request.Context(), c.Param("session"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to cancel session",
		})
		return
	}

	c.JSON(http.StatusOK, reply)
}
