package models

import (
	"time"
)

// Session status values as persisted in whatsapp_sessions.status.
// A user with no row at all is reported as StatusNotInitialized.
const (
	StatusPending        = "pending"
	StatusConnected      = "connected"
	StatusDisconnected   = "disconnected"
	StatusNotInitialized = "not_initialized"
)

// WhatsAppSession stores the persisted connection state for one user.
// At most one row per user; disconnecting clears phone/QR but keeps the row.
type WhatsAppSession struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"uniqueIndex;not null"`
	Status       string    `json:"status" gorm:"type:varchar(20);default:'pending'"`
	PhoneNumber  string    `json:"phone_number"`
	QRCode       string    `json:"qr_code" gorm:"type:text"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for WhatsAppSession
func (WhatsAppSession) TableName() string {
	return "whatsapp_sessions"
}
