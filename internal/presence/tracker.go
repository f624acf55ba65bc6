// Package presence tracks which transport sessions belong to which
// authenticated users. The table is in-memory and process-scoped; it is owned
// by the room lifecycle layer rather than living as ambient global state, so a
// distributed implementation can be swapped in behind the same interface.
package presence

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Session is one live transport connection for a user. A single user may hold
// several concurrent sessions (multiple tabs or devices).
type Session struct {
	SessionID   string
	UserID      string
	DisplayName string
	ConnectedAt time.Time
}

// Tracker is the interface the lifecycle layer depends on.
type Tracker interface {
	Register(sessionID, userID, displayName string, connectedAt time.Time)
	Unregister(sessionID string) (userID string, ok bool)
	SessionsFor(userID string) []string
	Get(sessionID string) (Session, bool)
}

// MemoryTracker is the in-process Tracker implementation.
type MemoryTracker struct {
	mu       sync.RWMutex
	sessions map[string]Session
	byUser   map[string]map[string]struct{}
}

// NewMemoryTracker creates an empty tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		sessions: make(map[string]Session),
		byUser:   make(map[string]map[string]struct{}),
	}
}

// Register records a new session for a user. Re-registering an existing
// session ID replaces the previous entry.
func (t *MemoryTracker) Register(sessionID, userID, displayName string, connectedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.sessions[sessionID]; ok {
		t.removeFromUser(prev.UserID, sessionID)
	}
	t.sessions[sessionID] = Session{
		SessionID:   sessionID,
		UserID:      userID,
		DisplayName: displayName,
		ConnectedAt: connectedAt,
	}
	if t.byUser[userID] == nil {
		t.byUser[userID] = make(map[string]struct{})
	}
	t.byUser[userID][sessionID] = struct{}{}

	log.Debug().
		Str("session_id", sessionID).
		Str("user_id", userID).
		Int("user_sessions", len(t.byUser[userID])).
		Msg("session registered")
}

// Unregister removes a session and returns the user it belonged to.
func (t *MemoryTracker) Unregister(sessionID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, ok := t.sessions[sessionID]
	if !ok {
		return "", false
	}
	delete(t.sessions, sessionID)
	t.removeFromUser(sess.UserID, sessionID)

	log.Debug().
		Str("session_id", sessionID).
		Str("user_id", sess.UserID).
		Msg("session unregistered")
	return sess.UserID, true
}

// SessionsFor returns the IDs of every live session owned by a user.
func (t *MemoryTracker) SessionsFor(userID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.byUser[userID]))
	for id := range t.byUser[userID] {
		ids = append(ids, id)
	}
	return ids
}

// Get looks up a single session.
func (t *MemoryTracker) Get(sessionID string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sess, ok := t.sessions[sessionID]
	return sess, ok
}

// removeFromUser must be called with the write lock held.
func (t *MemoryTracker) removeFromUser(userID, sessionID string) {
	if set, ok := t.byUser[userID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(t.byUser, userID)
		}
	}
}
