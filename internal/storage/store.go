package storage

import (
	"github.com/cairocart/whatsapp-backend/internal/models"
)

// Store defines the interface for session and message-log persistence.
// Session operations tolerate a missing row: absence is a reportable state
// (not_initialized), never an error.
type Store interface {
	// Session operations
	UpsertPendingSession(userID string) error
	SaveSessionQR(userID, qrImage string) error
	MarkSessionConnected(userID, phoneNumber string) error
	MarkSessionDisconnected(userID string, clearPhone bool) error
	GetSession(userID string) (*models.WhatsAppSession, error)
	TouchSessionActivity(userID string) error

	// Message log operations. LogMessageAttempt returns the attempt ID so
	// the result update targets that exact row.
	LogMessageAttempt(orderID, phone, content, userID string) (uint, error)
	MarkAttemptResult(attemptID uint, status, errorText string) error
}
