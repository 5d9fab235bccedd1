package services

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow/types"
)

// ClientConn is the live connection owned by one handle. The real
// implementation wraps a whatsmeow client; tests substitute a fake.
type ClientConn interface {
	SendText(ctx context.Context, to types.JID, body string) error
	Teardown(ctx context.Context) error
}

// ClientHandle is the in-memory, non-persisted state of one user's live
// connection. It is rebuilt from scratch after a process restart.
type ClientHandle struct {
	ID     string
	UserID string

	conn  ClientConn
	ready atomic.Bool

	mu     sync.Mutex
	lastQR string
	closed bool
	events chan lifecycleEvent
}

func newClientHandle(userID string, conn ClientConn) *ClientHandle {
	return &ClientHandle{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		events: make(chan lifecycleEvent, 8),
	}
}

// Ready reports whether the connection is authenticated and can send
func (h *ClientHandle) Ready() bool {
	return h.ready.Load()
}

func (h *ClientHandle) setReady(ready bool) {
	h.ready.Store(ready)
}

// LastQR returns the most recent rendered QR payload
func (h *ClientHandle) LastQR() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastQR
}

func (h *ClientHandle) setQR(qr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastQR = qr
}

// emit queues a lifecycle event for the handle's consumer. Events arriving
// after the handle is closed are dropped.
func (h *ClientHandle) emit(ev lifecycleEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.events <- ev:
	default:
		log.Printf("⚠️  Dropping lifecycle event %d for user %s (queue full)", ev.kind, h.UserID)
	}
}

// closeEvents stops the consumer. Safe to call more than once.
func (h *ClientHandle) closeEvents() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.events)
}

// SessionRegistry owns the process-wide mapping from user ID to live
// connection handle. It has no persistence and no eviction policy; entries
// live until explicit removal or process exit.
type SessionRegistry struct {
	mu      sync.RWMutex
	handles map[string]*ClientHandle
}

// NewSessionRegistry creates an empty registry
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		handles: make(map[string]*ClientHandle),
	}
}

// Put registers the handle for its user, replacing any previous entry
func (r *SessionRegistry) Put(handle *ClientHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[handle.UserID] = handle
}

// Get returns the handle for a user, if one is registered
func (r *SessionRegistry) Get(userID string) (*ClientHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, exists := r.handles[userID]
	return handle, exists
}

// Has reports whether a handle is registered for the user
func (r *SessionRegistry) Has(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handles[userID]
	return exists
}

// Remove drops the handle for a user
func (r *SessionRegistry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, userID)
}

// Size returns the number of registered handles
func (r *SessionRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// All returns a snapshot of every registered handle
func (r *SessionRegistry) All() []*ClientHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]*ClientHandle, 0, len(r.handles))
	for _, handle := range r.handles {
		handles = append(handles, handle)
	}
	return handles
}
