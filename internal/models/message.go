package models

import (
	"time"
)

// Message attempt status values. An attempt is logged as pending and moves
// to exactly one terminal state.
const (
	MessageStatusPending = "pending"
	MessageStatusSent    = "sent"
	MessageStatusFailed  = "failed"
)

// WhatsAppMessage is one append-only delivery log row per send attempt.
type WhatsAppMessage struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	OrderID        string    `json:"order_id" gorm:"index"`
	CustomerPhone  string    `json:"customer_phone"`
	MessageContent string    `json:"message_content" gorm:"type:text"`
	Status         string    `json:"status" gorm:"type:varchar(20);default:'pending'"`
	ErrorMessage   string    `json:"error_message" gorm:"type:text"`
	SentByUserID   string    `json:"sent_by_user_id" gorm:"index"`
	SentAt         time.Time `json:"sent_at"`
}

// TableName specifies the table name for WhatsAppMessage
func (WhatsAppMessage) TableName() string {
	return "whatsapp_messages"
}
