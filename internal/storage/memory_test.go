package storage

import (
	"testing"

	"github.com/cairocart/whatsapp-backend/internal/models"
)

func TestUpsertPendingSessionCreatesThenResets(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()

	if err := store.UpsertPendingSession("u1"); err != nil {
		t.Fatalf("UpsertPendingSession returned error: %v", err)
	}
	session, err := store.GetSession("u1")
	if err != nil || session == nil {
		t.Fatalf("GetSession = (%v, %v), want a row", session, err)
	}
	if session.Status != models.StatusPending {
		t.Fatalf("status = %q, want %q", session.Status, models.StatusPending)
	}

	// Move the row forward, then upsert again: it must reset, not duplicate
	if err := store.MarkSessionConnected("u1", "201234567890"); err != nil {
		t.Fatalf("MarkSessionConnected returned error: %v", err)
	}
	if err := store.UpsertPendingSession("u1"); err != nil {
		t.Fatalf("second UpsertPendingSession returned error: %v", err)
	}

	session, _ = store.GetSession("u1")
	if session.Status != models.StatusPending {
		t.Fatalf("status after reset = %q, want %q", session.Status, models.StatusPending)
	}
	if session.QRCode != "" {
		t.Fatal("reset should clear the QR payload")
	}
	if session.ID != 1 {
		t.Fatalf("row ID changed to %d; upsert must not create a second row", session.ID)
	}
}

func TestSessionOperationsTolerateMissingRow(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()

	if session, err := store.GetSession("ghost"); err != nil || session != nil {
		t.Fatalf("GetSession for unknown user = (%v, %v), want (nil, nil)", session, err)
	}
	if err := store.SaveSessionQR("ghost", "img"); err != nil {
		t.Fatalf("SaveSessionQR on missing row returned error: %v", err)
	}
	if err := store.MarkSessionConnected("ghost", "20100"); err != nil {
		t.Fatalf("MarkSessionConnected on missing row returned error: %v", err)
	}
	if err := store.MarkSessionDisconnected("ghost", true); err != nil {
		t.Fatalf("MarkSessionDisconnected on missing row returned error: %v", err)
	}
	if err := store.TouchSessionActivity("ghost"); err != nil {
		t.Fatalf("TouchSessionActivity on missing row returned error: %v", err)
	}
}

func TestMarkSessionDisconnectedClearsFields(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	_ = store.UpsertPendingSession("u1")
	_ = store.SaveSessionQR("u1", "data:image/png;base64,xxxx")
	_ = store.MarkSessionConnected("u1", "201234567890")

	if err := store.MarkSessionDisconnected("u1", false); err != nil {
		t.Fatalf("MarkSessionDisconnected returned error: %v", err)
	}
	session, _ := store.GetSession("u1")
	if session.QRCode != "" {
		t.Fatal("disconnect should clear the QR payload")
	}
	if session.PhoneNumber != "201234567890" {
		t.Fatal("disconnect without clearPhone should retain the phone")
	}

	if err := store.MarkSessionDisconnected("u1", true); err != nil {
		t.Fatalf("MarkSessionDisconnected returned error: %v", err)
	}
	session, _ = store.GetSession("u1")
	if session.PhoneNumber != "" {
		t.Fatal("disconnect with clearPhone should clear the phone")
	}
}

func TestMessageAttemptLifecycle(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()

	id, err := store.LogMessageAttempt("ORD-1", "201234567890", "hello", "u1")
	if err != nil {
		t.Fatalf("LogMessageAttempt returned error: %v", err)
	}

	attempt, exists := store.GetMessage(id)
	if !exists {
		t.Fatal("logged attempt should be retrievable")
	}
	if attempt.Status != models.MessageStatusPending {
		t.Fatalf("new attempt status = %q, want %q", attempt.Status, models.MessageStatusPending)
	}

	if err := store.MarkAttemptResult(id, models.MessageStatusSent, ""); err != nil {
		t.Fatalf("MarkAttemptResult returned error: %v", err)
	}
	attempt, _ = store.GetMessage(id)
	if attempt.Status != models.MessageStatusSent {
		t.Fatalf("attempt status = %q, want %q", attempt.Status, models.MessageStatusSent)
	}

	// A second attempt for the same order gets its own row
	id2, _ := store.LogMessageAttempt("ORD-1", "201234567890", "hello again", "u1")
	if id2 == id {
		t.Fatal("each attempt must get a distinct ID")
	}
	if err := store.MarkAttemptResult(id2, models.MessageStatusFailed, "timeout"); err != nil {
		t.Fatalf("MarkAttemptResult returned error: %v", err)
	}

	first, _ := store.GetMessage(id)
	second, _ := store.GetMessage(id2)
	if first.Status != models.MessageStatusSent || second.Status != models.MessageStatusFailed {
		t.Fatalf("attempt statuses = (%q, %q); updates must not cross rows", first.Status, second.Status)
	}
	if second.ErrorMessage != "timeout" {
		t.Fatalf("error text = %q, want %q", second.ErrorMessage, "timeout")
	}
}

func TestMarkAttemptResultMissingRow(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if err := store.MarkAttemptResult(42, models.MessageStatusSent, ""); err != nil {
		t.Fatalf("MarkAttemptResult on missing row returned error: %v", err)
	}
}
