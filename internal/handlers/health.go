package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cairocart/whatsapp-backend/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	registry *services.SessionRegistry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(registry *services.SessionRegistry) *HealthHandler {
	return &HealthHandler{
		registry: registry,
	}
}

// Check returns liveness plus the current number of active clients
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":       true,
		"message":       "WhatsApp service is running",
		"activeClients": h.registry.Size(),
	})
}
