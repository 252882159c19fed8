package webhook

import (
	"net/http"

	"crmsync_backend/platform/httpkit"
	"crmsync_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	errInvalidRequest = "invalid request body"
	errValidation     = "validation error"
)

// Handler handles inbound lead webhook HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new webhook handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// HandleLead processes an inbound lead capture webhook.
// POST /api/v1/webhook/leads
func (h *Handler) HandleLead(c *gin.Context) {
	var payload LeadPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return
	}

	result, err := h.service.ProcessLead(c.Request.Context(), payload)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "lead forwarded",
		"project": gin.H{"id": result.ProjectID, "name": result.ProjectName},
		"result":  result,
	})
}

// HandleHealth reports liveness.
// GET /healthz
func (h *Handler) HandleHealth(c *gin.Context) {
	httpkit.OK(c, gin.H{"status": "ok"})
}
