package storage

import (
	"sync"
	"time"

	"github.com/cairocart/whatsapp-backend/internal/models"
)

// MemoryStore holds all data in memory (testing and USE_MEMORY_STORE mode)
type MemoryStore struct {
	sessions map[string]*models.WhatsAppSession
	messages map[uint]*models.WhatsAppMessage

	// Mutexes for thread safety
	sessionMu sync.RWMutex
	messageMu sync.RWMutex

	// Counters for ID generation
	sessionCounter uint
	messageCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.WhatsAppSession),
		messages: make(map[uint]*models.WhatsAppMessage),
	}
}

func (m *MemoryStore) UpsertPendingSession(userID string) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if session, exists := m.sessions[userID]; exists {
		session.Status = models.StatusPending
		session.QRCode = ""
		session.UpdatedAt = time.Now()
		return nil
	}

	m.sessionCounter++
	now := time.Now()
	m.sessions[userID] = &models.WhatsAppSession{
		ID:           m.sessionCounter,
		UserID:       userID,
		Status:       models.StatusPending,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return nil
}

func (m *MemoryStore) SaveSessionQR(userID, qrImage string) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	session, exists := m.sessions[userID]
	if !exists {
		return nil
	}
	session.Status = models.StatusPending
	session.QRCode = qrImage
	session.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) MarkSessionConnected(userID, phoneNumber string) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	session, exists := m.sessions[userID]
	if !exists {
		return nil
	}
	now := time.Now()
	session.Status = models.StatusConnected
	session.PhoneNumber = phoneNumber
	session.QRCode = ""
	session.LastActivity = now
	session.UpdatedAt = now
	return nil
}

func (m *MemoryStore) MarkSessionDisconnected(userID string, clearPhone bool) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	session, exists := m.sessions[userID]
	if !exists {
		return nil
	}
	session.Status = models.StatusDisconnected
	session.QRCode = ""
	if clearPhone {
		session.PhoneNumber = ""
	}
	session.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) GetSession(userID string) (*models.WhatsAppSession, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	session, exists := m.sessions[userID]
	if !exists {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (m *MemoryStore) TouchSessionActivity(userID string) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if session, exists := m.sessions[userID]; exists {
		session.LastActivity = time.Now()
	}
	return nil
}

func (m *MemoryStore) LogMessageAttempt(orderID, phone, content, userID string) (uint, error) {
	m.messageMu.Lock()
	defer m.messageMu.Unlock()

	m.messageCounter++
	attempt := &models.WhatsAppMessage{
		ID:             m.messageCounter,
		OrderID:        orderID,
		CustomerPhone:  phone,
		MessageContent: content,
		Status:         models.MessageStatusPending,
		SentByUserID:   userID,
		SentAt:         time.Now(),
	}
	m.messages[attempt.ID] = attempt
	return attempt.ID, nil
}

func (m *MemoryStore) MarkAttemptResult(attemptID uint, status, errorText string) error {
	m.messageMu.Lock()
	defer m.messageMu.Unlock()

	attempt, exists := m.messages[attemptID]
	if !exists {
		return nil
	}
	attempt.Status = status
	attempt.ErrorMessage = errorText
	return nil
}

// GetMessage returns a logged attempt by ID (test helper)
func (m *MemoryStore) GetMessage(attemptID uint) (*models.WhatsAppMessage, bool) {
	m.messageMu.RLock()
	defer m.messageMu.RUnlock()

	attempt, exists := m.messages[attemptID]
	if !exists {
		return nil, false
	}
	copied := *attempt
	return &copied, true
}
