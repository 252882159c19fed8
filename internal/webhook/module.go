// Package webhook provides the inbound lead capture bounded context.
// This file defines the module that encapsulates setup and route registration.
package webhook

import (
	"crmsync_backend/platform/config"
	"crmsync_backend/platform/httpkit"
	"crmsync_backend/platform/logger"
	"crmsync_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Module is the webhook bounded context module.
type Module struct {
	handler *Handler
	secret  string
}

// NewModule creates and initializes the webhook module with all its dependencies.
func NewModule(forwarder LeadForwarder, routing *Routing, cfg config.WebhookConfig, val *validator.Validator, log *logger.Logger) *Module {
	service := NewService(forwarder, routing, cfg, log)
	handler := NewHandler(service, val)

	return &Module{
		handler: handler,
		secret:  cfg.GetWebhookSecret(),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router.
func (m *Module) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", m.handler.HandleHealth)

	group := r.Group("/api/v1/webhook")
	group.Use(httpkit.SharedSecret(m.secret))
	group.POST("/leads", m.handler.HandleLead)
}
