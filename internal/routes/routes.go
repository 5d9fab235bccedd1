package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cairocart/whatsapp-backend/internal/handlers"
	"github.com/cairocart/whatsapp-backend/internal/middleware"
	"github.com/cairocart/whatsapp-backend/internal/services"
	"github.com/cairocart/whatsapp-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, service *services.WhatsAppService, registry *services.SessionRegistry) {
	whatsappHandler := handlers.NewWhatsAppHandler(store, service)
	healthHandler := handlers.NewHealthHandler(registry)

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "WhatsApp Session Gateway",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":         "/health",
				"init_session":   "/api/whatsapp/init-session",
				"session_status": "/api/whatsapp/session-status/:userId",
				"send_message":   "/api/whatsapp/send-message",
				"disconnect":     "/api/whatsapp/disconnect/:userId",
			},
		})
	})

	// Health check
	app.Get("/health", healthHandler.Check)

	// API routes
	api := app.Group("/api", middleware.RequireAPIKey())

	whatsapp := api.Group("/whatsapp")
	whatsapp.Post("/init-session", whatsappHandler.InitSession)
	whatsapp.Get("/session-status/:userId", whatsappHandler.SessionStatus)
	whatsapp.Post("/send-message", whatsappHandler.SendMessage)
	whatsapp.Post("/disconnect/:userId", whatsappHandler.Disconnect)
}
