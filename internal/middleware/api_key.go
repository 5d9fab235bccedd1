package middleware

import (
	"crypto/subtle"
	"os"

	"github.com/gofiber/fiber/v2"
)

// RequireAPIKey validates the shared secret for backend-to-backend calls.
// When API_KEY is unset the check is disabled.
func RequireAPIKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected := os.Getenv("API_KEY")
		if expected == "" {
			return c.Next()
		}

		provided := c.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid API key",
			})
		}

		return c.Next()
	}
}
