package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"

	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	waStore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/cairocart/whatsapp-backend/internal/models"
	"github.com/cairocart/whatsapp-backend/internal/storage"
	"github.com/cairocart/whatsapp-backend/internal/utils"
)

// ErrNotConnected is returned when a send is attempted for a user without
// a ready connection.
var ErrNotConnected = errors.New("whatsapp is not connected for this user")

type eventKind int

const (
	eventQR eventKind = iota
	eventAuthenticated
	eventReady
	eventDisconnected
	eventAuthFailure
)

// lifecycleEvent is one typed transition signal for a session. The
// whatsmeow callbacks and QR channel only emit these; a single consumer
// goroutine per session applies them in order.
type lifecycleEvent struct {
	kind   eventKind
	qr     string // pairing code (eventQR)
	phone  string // resolved number (eventAuthenticated, eventReady)
	reason string // eventDisconnected, eventAuthFailure
}

// WhatsAppService owns session initialization, the lifecycle projection
// into the store, and outbound message dispatch.
type WhatsAppService struct {
	store     storage.Store
	registry  *SessionRegistry
	container *sqlstore.Container

	// connect creates, registers and starts a handle for a user.
	// Swappable so tests can run the lifecycle without a network client.
	connect func(userID string) (*ClientHandle, error)
}

// NewWhatsAppService creates the session service. The container may be nil
// in memory-store mode; new connections cannot be created without it.
func NewWhatsAppService(store storage.Store, registry *SessionRegistry, container *sqlstore.Container) *WhatsAppService {
	s := &WhatsAppService{
		store:     store,
		registry:  registry,
		container: container,
	}
	s.connect = s.connectWhatsmeow
	return s
}

// InitSession ensures a pending session row exists and starts a connection
// for the user. Returns the session status the caller should report:
// connected when an already-ready handle short-circuits the call, pending
// otherwise.
func (s *WhatsAppService) InitSession(userID string) (string, error) {
	if handle, exists := s.registry.Get(userID); exists {
		if handle.Ready() {
			log.Printf("📱 User %s already has a connected WhatsApp client", userID)
			return models.StatusConnected, nil
		}
		// An init is in flight; don't create a second handle for the user
		log.Printf("⏳ WhatsApp initialization already in progress for user %s", userID)
		return models.StatusPending, nil
	}

	if err := s.store.UpsertPendingSession(userID); err != nil {
		return "", fmt.Errorf("failed to create session record: %w", err)
	}

	handle, err := s.connect(userID)
	if err != nil {
		return "", err
	}
	log.Printf("🔌 Created WhatsApp client %s for user %s", handle.ID, userID)

	return models.StatusPending, nil
}

// connectWhatsmeow builds a whatsmeow-backed handle, registers it and
// starts its lifecycle goroutines.
func (s *WhatsAppService) connectWhatsmeow(userID string) (*ClientHandle, error) {
	if s.container == nil {
		return nil, errors.New("whatsapp device store not configured")
	}

	client, err := s.newClient(userID)
	if err != nil {
		return nil, err
	}

	handle := newClientHandle(userID, &waConn{client: client})
	s.registry.Put(handle)

	go s.consumeLifecycle(handle)
	go s.runClient(handle, client)

	return handle, nil
}

// newClient builds a whatsmeow client for the user, resuming a stored
// device when the user's last known number still has credentials.
func (s *WhatsAppService) newClient(userID string) (*whatsmeow.Client, error) {
	ctx := context.Background()

	var device *waStore.Device
	if session, err := s.store.GetSession(userID); err == nil && session != nil && session.PhoneNumber != "" {
		devices, err := s.container.GetAllDevices(ctx)
		if err != nil {
			log.Printf("⚠️  Could not list stored devices: %v", err)
		} else {
			for _, d := range devices {
				if d.ID != nil && d.ID.User == session.PhoneNumber {
					device = d
					log.Printf("♻️  Resuming stored device for user %s", userID)
					break
				}
			}
		}
	}
	if device == nil {
		device = s.container.NewDevice()
	}

	client := whatsmeow.NewClient(device, waLog.Stdout("WA-"+userID, "WARN", false))
	// The lifecycle treats a disconnect as terminal; reconnection happens
	// through a fresh init-session call
	client.EnableAutoReconnect = false
	return client, nil
}

// runClient wires whatsmeow's callbacks and QR channel onto the handle's
// event queue, then connects.
func (s *WhatsAppService) runClient(handle *ClientHandle, client *whatsmeow.Client) {
	client.AddEventHandler(func(rawEvt interface{}) {
		switch evt := rawEvt.(type) {
		case *events.PairSuccess:
			handle.emit(lifecycleEvent{kind: eventAuthenticated, phone: evt.ID.User})
		case *events.Connected:
			phone := ""
			if client.Store.ID != nil {
				phone = client.Store.ID.User
			}
			handle.emit(lifecycleEvent{kind: eventReady, phone: phone})
		case *events.Disconnected:
			handle.emit(lifecycleEvent{kind: eventDisconnected, reason: "connection closed"})
		case *events.LoggedOut:
			handle.emit(lifecycleEvent{kind: eventAuthFailure, reason: evt.Reason.String()})
		}
	})

	if client.Store.ID == nil {
		// Fresh device: surface pairing codes until the user scans one
		qrChan, err := client.GetQRChannel(context.Background())
		if err != nil {
			log.Printf("⚠️  QR channel unavailable for user %s: %v", handle.UserID, err)
		} else {
			go func() {
				for item := range qrChan {
					switch item.Event {
					case "code":
						handle.emit(lifecycleEvent{kind: eventQR, qr: item.Code})
					case "success":
						// PairSuccess arrives through the event handler
					case "timeout":
						handle.emit(lifecycleEvent{kind: eventAuthFailure, reason: "qr scan timed out"})
					default:
						if item.Error != nil {
							handle.emit(lifecycleEvent{kind: eventAuthFailure, reason: item.Error.Error()})
						}
					}
				}
			}()
		}
	}

	if err := client.Connect(); err != nil {
		handle.emit(lifecycleEvent{kind: eventAuthFailure, reason: err.Error()})
	}
}

// consumeLifecycle is the single consumer for one session's events. It
// applies the transition table until a terminal event closes the handle.
func (s *WhatsAppService) consumeLifecycle(handle *ClientHandle) {
	for ev := range handle.events {
		if terminal := s.applyEvent(handle, ev); terminal {
			handle.closeEvents()
			return
		}
	}
}

// applyEvent projects one lifecycle event into the registry and the store.
// Persistence failures are logged only; in-memory state still advances, so
// the row may lag behind until the next event.
func (s *WhatsAppService) applyEvent(handle *ClientHandle, ev lifecycleEvent) bool {
	userID := handle.UserID

	switch ev.kind {
	case eventQR:
		image, err := qrImageDataURL(ev.qr)
		if err != nil {
			log.Printf("❌ Failed to render QR for user %s: %v", userID, err)
			return false
		}
		handle.setQR(image)
		if err := s.store.SaveSessionQR(userID, image); err != nil {
			log.Printf("❌ Failed to save QR for user %s: %v", userID, err)
		}
		log.Printf("📷 QR code issued for user %s", userID)

	case eventAuthenticated:
		// No persisted change on this edge
		log.Printf("🔓 User %s authenticated as %s", userID, ev.phone)

	case eventReady:
		handle.setReady(true)
		handle.setQR("")
		if err := s.store.MarkSessionConnected(userID, ev.phone); err != nil {
			log.Printf("❌ Failed to persist connected state for user %s: %v", userID, err)
		}
		log.Printf("✅ WhatsApp connected for user %s (%s)", userID, ev.phone)

	case eventDisconnected:
		handle.setReady(false)
		s.registry.Remove(userID)
		if err := s.store.MarkSessionDisconnected(userID, false); err != nil {
			log.Printf("❌ Failed to persist disconnect for user %s: %v", userID, err)
		}
		log.Printf("🔌 WhatsApp disconnected for user %s: %s", userID, ev.reason)
		return true

	case eventAuthFailure:
		handle.setReady(false)
		s.registry.Remove(userID)
		if err := s.store.MarkSessionDisconnected(userID, false); err != nil {
			log.Printf("❌ Failed to persist auth failure for user %s: %v", userID, err)
		}
		log.Printf("🚫 WhatsApp authentication failed for user %s: %s", userID, ev.reason)
		return true
	}

	return false
}

// SendMessage normalizes the destination, logs an attempt when an order
// reference is supplied, sends through the user's connection, and records
// the outcome.
func (s *WhatsAppService) SendMessage(ctx context.Context, userID, phone, message, orderID string) error {
	handle, exists := s.registry.Get(userID)
	if !exists || !handle.Ready() {
		return ErrNotConnected
	}

	normalized := utils.NormalizePhone(phone)
	to := types.NewJID(normalized, types.DefaultUserServer)

	var attemptID uint
	if orderID != "" {
		id, err := s.store.LogMessageAttempt(orderID, normalized, message, userID)
		if err != nil {
			return fmt.Errorf("failed to log message attempt: %w", err)
		}
		attemptID = id
	}

	if err := handle.conn.SendText(ctx, to, message); err != nil {
		if attemptID != 0 {
			// Best effort; a failure here is swallowed
			if markErr := s.store.MarkAttemptResult(attemptID, models.MessageStatusFailed, err.Error()); markErr != nil {
				log.Printf("❌ Failed to record failed attempt %d: %v", attemptID, markErr)
			}
		}
		return fmt.Errorf("failed to send message: %w", err)
	}

	if attemptID != 0 {
		if err := s.store.MarkAttemptResult(attemptID, models.MessageStatusSent, ""); err != nil {
			log.Printf("❌ Failed to record sent attempt %d: %v", attemptID, err)
		}
	}
	if err := s.store.TouchSessionActivity(userID); err != nil {
		log.Printf("⚠️  Failed to touch activity for user %s: %v", userID, err)
	}

	log.Printf("📤 Message sent for user %s to %s", userID, normalized)
	return nil
}

// Disconnect tears down the user's connection if one exists and always
// persists the disconnected state with phone and QR cleared.
func (s *WhatsAppService) Disconnect(ctx context.Context, userID string) error {
	if handle, exists := s.registry.Get(userID); exists {
		if err := handle.conn.Teardown(ctx); err != nil {
			log.Printf("⚠️  Teardown failed for user %s: %v", userID, err)
		}
		s.registry.Remove(userID)
		handle.setReady(false)
		handle.closeEvents()
		log.Printf("🔌 Removed WhatsApp client for user %s", userID)
	}

	if err := s.store.MarkSessionDisconnected(userID, true); err != nil {
		return fmt.Errorf("failed to persist disconnect: %w", err)
	}
	return nil
}

// Shutdown tears down every registered handle sequentially. Failures are
// logged, not fatal.
func (s *WhatsAppService) Shutdown(ctx context.Context) {
	for _, handle := range s.registry.All() {
		if err := handle.conn.Teardown(ctx); err != nil {
			log.Printf("⚠️  Teardown failed for user %s: %v", handle.UserID, err)
		}
		handle.closeEvents()
		s.registry.Remove(handle.UserID)
	}
}

// qrImageDataURL renders a pairing code into the base64 PNG data URL the
// session row stores.
func qrImageDataURL(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// waConn adapts a whatsmeow client to the ClientConn seam
type waConn struct {
	client *whatsmeow.Client
}

func (w *waConn) SendText(ctx context.Context, to types.JID, body string) error {
	_, err := w.client.SendMessage(ctx, to, &waE2E.Message{Conversation: proto.String(body)})
	return err
}

func (w *waConn) Teardown(ctx context.Context) error {
	// Logout clears credentials; it fails when never logged in, which is
	// fine since Disconnect below closes the socket either way
	if err := w.client.Logout(ctx); err != nil {
		log.Printf("⚠️  Logout: %v", err)
	}
	w.client.Disconnect()
	return nil
}
