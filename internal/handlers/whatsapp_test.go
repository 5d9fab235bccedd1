package handlers_test

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/cairocart/whatsapp-backend/internal/models"
	"github.com/cairocart/whatsapp-backend/internal/routes"
	"github.com/cairocart/whatsapp-backend/internal/services"
	"github.com/cairocart/whatsapp-backend/internal/storage"
)

func newTestApp() (*fiber.App, *storage.MemoryStore, *services.SessionRegistry) {
	store := storage.NewMemoryStore()
	registry := services.NewSessionRegistry()
	service := services.NewWhatsAppService(store, registry, nil)

	app := fiber.New()
	routes.SetupRoutes(app, store, service, registry)
	return app, store, registry
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body failed: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, raw)
	}
	return resp.StatusCode, parsed
}

func TestInitSessionRequiresUserID(t *testing.T) {
	app, _, _ := newTestApp()

	code, body := doJSON(t, app, "POST", "/api/whatsapp/init-session", `{}`)
	if code != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if body["success"] != false {
		t.Fatalf("success = %v, want false", body["success"])
	}
}

func TestSessionStatusUnknownUser(t *testing.T) {
	app, _, _ := newTestApp()

	code, body := doJSON(t, app, "GET", "/api/whatsapp/session-status/ghost", "")
	if code != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["success"] != true {
		t.Fatalf("success = %v, want true", body["success"])
	}
	if body["status"] != models.StatusNotInitialized {
		t.Fatalf("status field = %v, want %q", body["status"], models.StatusNotInitialized)
	}
}

func TestSessionStatusKnownUser(t *testing.T) {
	app, store, _ := newTestApp()

	_ = store.UpsertPendingSession("u1")
	_ = store.MarkSessionConnected("u1", "201234567890")

	code, body := doJSON(t, app, "GET", "/api/whatsapp/session-status/u1", "")
	if code != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != models.StatusConnected {
		t.Fatalf("status field = %v, want %q", body["status"], models.StatusConnected)
	}
	if body["phone_number"] != "201234567890" {
		t.Fatalf("phone_number = %v, want 201234567890", body["phone_number"])
	}
}

func TestSendMessageValidation(t *testing.T) {
	app, _, _ := newTestApp()

	testCases := []struct {
		name string
		body string
	}{
		{name: "missing userId", body: `{"phone":"0100000000","message":"hi"}`},
		{name: "missing phone", body: `{"userId":"u1","message":"hi"}`},
		{name: "missing message", body: `{"userId":"u1","phone":"0100000000"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := doJSON(t, app, "POST", "/api/whatsapp/send-message", tc.body)
			if code != fiber.StatusBadRequest {
				t.Fatalf("status = %d, want 400", code)
			}
			if body["success"] != false {
				t.Fatalf("success = %v, want false", body["success"])
			}
		})
	}
}

func TestSendMessageNotConnected(t *testing.T) {
	app, _, _ := newTestApp()

	code, body := doJSON(t, app, "POST", "/api/whatsapp/send-message",
		`{"userId":"u1","phone":"0100000000","message":"hi"}`)
	if code != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	errText, _ := body["error"].(string)
	if !strings.Contains(errText, "not connected") {
		t.Fatalf("error = %q, want a not-connected message", errText)
	}
}

func TestDisconnectWithoutHandle(t *testing.T) {
	app, store, registry := newTestApp()

	_ = store.UpsertPendingSession("u1")

	code, body := doJSON(t, app, "POST", "/api/whatsapp/disconnect/u1", "")
	if code != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["success"] != true {
		t.Fatalf("success = %v, want true", body["success"])
	}
	if registry.Has("u1") {
		t.Fatal("registry should not have u1")
	}

	session, _ := store.GetSession("u1")
	if session.Status != models.StatusDisconnected {
		t.Fatalf("persisted status = %q, want %q", session.Status, models.StatusDisconnected)
	}
}

func TestHealthReportsActiveClients(t *testing.T) {
	app, _, _ := newTestApp()

	code, body := doJSON(t, app, "GET", "/health", "")
	if code != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["success"] != true {
		t.Fatalf("success = %v, want true", body["success"])
	}
	if body["activeClients"] != float64(0) {
		t.Fatalf("activeClients = %v, want 0", body["activeClients"])
	}
}

func TestAPIKeyGuard(t *testing.T) {
	t.Setenv("API_KEY", "sekret")

	app, _, _ := newTestApp()

	// Missing key is rejected
	code, _ := doJSON(t, app, "GET", "/api/whatsapp/session-status/u1", "")
	if code != fiber.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", code)
	}

	// Correct key passes through
	req := httptest.NewRequest("GET", "/api/whatsapp/session-status/u1", nil)
	req.Header.Set("X-API-Key", "sekret")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status with key = %d, want 200", resp.StatusCode)
	}

	// Health stays open
	code, _ = doJSON(t, app, "GET", "/health", "")
	if code != fiber.StatusOK {
		t.Fatalf("health status = %d, want 200", code)
	}
}
