// Package server tracks online presence through the SessionRegistry, the
// single source of truth for which usernames are currently connected.
package server

import (
	"errors"
	"strings"
	"sync"
)

// Registration errors. The texts are client-facing: they travel verbatim in
// error events.
var (
	// ErrEmptyName is returned when a registration username is blank after
	// trimming.
	ErrEmptyName = errors.New("Username cannot be empty")

	// ErrNameTaken is returned when the username belongs to a currently
	// connected session. Names free up on disconnect.
	ErrNameTaken = errors.New("Username already taken")
)

// StatusOnline is the presence status of every registered session. It exists
// on the wire so richer presence states can be added without a format change.
const StatusOnline = "online"

// Session is the online presence record for one registered username. ConnID
// is an opaque handle to the owning transport connection; the registry only
// uses it for lookup and never manages the connection's lifecycle.
type Session struct {
	Username    string `json:"username"`
	ConnID      string `json:"-"`
	ConnectedAt string `json:"connected_at"`
	Status      string `json:"status"`
}

// SessionRegistry maps usernames to their live sessions. A username is unique
// among currently connected sessions only; it is reclaimable the moment its
// session is removed. All methods are safe for concurrent use.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]Session),
	}
}

// Register claims a username for the given connection. The username is
// trimmed first; a blank result fails with ErrEmptyName and a name held by a
// connected session fails with ErrNameTaken. The check and insert are atomic,
// so two racing registrations of one name cannot both succeed.
func (r *SessionRegistry) Register(username, connID string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Session{}, ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.sessions[username]; taken {
		return Session{}, ErrNameTaken
	}

	session := Session{
		Username:    username,
		ConnID:      connID,
		ConnectedAt: nowTimestamp(),
		Status:      StatusOnline,
	}
	r.sessions[username] = session
	return session, nil
}

// Lookup returns the session registered under username, if any.
func (r *SessionRegistry) Lookup(username string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[username]
	return session, ok
}

// RemoveByConn removes and returns the session owned by the given connection.
// It reports false when no session matches, e.g. a connection that
// disconnected before completing registration.
func (r *SessionRegistry) RemoveByConn(connID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for username, session := range r.sessions {
		if session.ConnID == connID {
			delete(r.sessions, username)
			return session, true
		}
	}
	return Session{}, false
}

// Usernames returns the names of all currently registered sessions in
// unspecified order.
func (r *SessionRegistry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sessions))
	for username := range r.sessions {
		names = append(names, username)
	}
	return names
}

// Count returns the number of currently registered sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
