package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cairocart/whatsapp-backend/internal/models"
)

// DatabaseStore implements Store using GORM with PostgreSQL
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database storage instance
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (d *DatabaseStore) UpsertPendingSession(userID string) error {
	var session models.WhatsAppSession
	err := d.db.Where("user_id = ?", userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		session = models.WhatsAppSession{
			UserID:       userID,
			Status:       models.StatusPending,
			LastActivity: time.Now(),
		}
		return d.db.Create(&session).Error
	}
	if err != nil {
		return err
	}

	// Reset an existing row back to pending and drop any stale QR
	return d.db.Model(&session).Updates(map[string]interface{}{
		"status":  models.StatusPending,
		"qr_code": "",
	}).Error
}

func (d *DatabaseStore) SaveSessionQR(userID, qrImage string) error {
	return d.db.Model(&models.WhatsAppSession{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"status":  models.StatusPending,
			"qr_code": qrImage,
		}).Error
}

func (d *DatabaseStore) MarkSessionConnected(userID, phoneNumber string) error {
	return d.db.Model(&models.WhatsAppSession{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"status":        models.StatusConnected,
			"phone_number":  phoneNumber,
			"qr_code":       "",
			"last_activity": time.Now(),
		}).Error
}

func (d *DatabaseStore) MarkSessionDisconnected(userID string, clearPhone bool) error {
	updates := map[string]interface{}{
		"status":  models.StatusDisconnected,
		"qr_code": "",
	}
	if clearPhone {
		updates["phone_number"] = ""
	}
	return d.db.Model(&models.WhatsAppSession{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}

func (d *DatabaseStore) GetSession(userID string) (*models.WhatsAppSession, error) {
	var session models.WhatsAppSession
	err := d.db.Where("user_id = ?", userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Absence is a valid state, reported as not_initialized upstream
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (d *DatabaseStore) TouchSessionActivity(userID string) error {
	return d.db.Model(&models.WhatsAppSession{}).
		Where("user_id = ?", userID).
		Update("last_activity", time.Now()).Error
}

func (d *DatabaseStore) LogMessageAttempt(orderID, phone, content, userID string) (uint, error) {
	attempt := models.WhatsAppMessage{
		OrderID:        orderID,
		CustomerPhone:  phone,
		MessageContent: content,
		Status:         models.MessageStatusPending,
		SentByUserID:   userID,
		SentAt:         time.Now(),
	}
	if err := d.db.Create(&attempt).Error; err != nil {
		return 0, err
	}
	return attempt.ID, nil
}

func (d *DatabaseStore) MarkAttemptResult(attemptID uint, status, errorText string) error {
	return d.db.Model(&models.WhatsAppMessage{}).
		Where("id = ?", attemptID).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorText,
		}).Error
}
