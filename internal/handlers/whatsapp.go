package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/cairocart/whatsapp-backend/internal/models"
	"github.com/cairocart/whatsapp-backend/internal/services"
	"github.com/cairocart/whatsapp-backend/internal/storage"
)

// WhatsAppHandler handles the session lifecycle and message endpoints
type WhatsAppHandler struct {
	store   storage.Store
	service *services.WhatsAppService
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(store storage.Store, service *services.WhatsAppService) *WhatsAppHandler {
	return &WhatsAppHandler{
		store:   store,
		service: service,
	}
}

// InitSessionRequest is the body for POST /api/whatsapp/init-session
type InitSessionRequest struct {
	UserID string `json:"userId"`
}

// SendMessageRequest is the body for POST /api/whatsapp/send-message
type SendMessageRequest struct {
	UserID  string `json:"userId"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
	OrderID string `json:"orderId"`
}

// InitSession starts (or short-circuits) a WhatsApp session for a user
func (h *WhatsAppHandler) InitSession(c *fiber.Ctx) error {
	var req InitSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "userId is required",
		})
	}

	status, err := h.service.InitSession(req.UserID)
	if err != nil {
		log.Printf("❌ init-session failed for user %s: %v", req.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	if status == models.StatusConnected {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "WhatsApp session already connected",
			"status":  models.StatusConnected,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "WhatsApp session initialization started",
		"status":  models.StatusPending,
	})
}

// SessionStatus returns the persisted state for a user. Unknown users get
// a synthetic not_initialized status, never an error.
func (h *WhatsAppHandler) SessionStatus(c *fiber.Ctx) error {
	userID := c.Params("userId")

	session, err := h.store.GetSession(userID)
	if err != nil {
		log.Printf("❌ session-status failed for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	if session == nil {
		return c.JSON(fiber.Map{
			"success":       true,
			"status":        models.StatusNotInitialized,
			"phone_number":  "",
			"qr_code":       "",
			"last_activity": nil,
		})
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"status":        session.Status,
		"phone_number":  session.PhoneNumber,
		"qr_code":       session.QRCode,
		"last_activity": session.LastActivity,
	})
}

// SendMessage dispatches one outbound text message through the user's
// connection
func (h *WhatsAppHandler) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if req.UserID == "" || req.Phone == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "userId, phone and message are required",
		})
	}

	err := h.service.SendMessage(c.Context(), req.UserID, req.Phone, req.Message, req.OrderID)
	if errors.Is(err, services.ErrNotConnected) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "WhatsApp is not connected for this user",
		})
	}
	if err != nil {
		log.Printf("❌ send-message failed for user %s: %v", req.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Message sent successfully",
	})
}

// Disconnect tears down a user's session. The persisted row is marked
// disconnected even when no live handle exists.
func (h *WhatsAppHandler) Disconnect(c *fiber.Ctx) error {
	userID := c.Params("userId")

	if err := h.service.Disconnect(c.Context(), userID); err != nil {
		log.Printf("❌ disconnect failed for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "WhatsApp session disconnected",
	})
}
