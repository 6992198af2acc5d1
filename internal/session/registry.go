// Package session tracks live connections and the identity each one declared.
//
// The Registry is the only shared mutable state of the relay. Every operation
// holds a single RWMutex for O(1) work and returns copies, so callers never
// keep a reference into the registry after the lock is released.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	// ErrDuplicateSession means the transport handed out a connection id that
	// is already live. The transport contract is broken when this happens.
	ErrDuplicateSession = errors.New("session already registered")
	// ErrSessionNotFound is returned for ids that are unknown or already removed.
	ErrSessionNotFound = errors.New("session not found")
)

// ID identifies one connection for its whole lifetime.
type ID string

// NewID returns a fresh random connection id.
func NewID() ID {
	return ID(uuid.NewString())
}

// Session is the server-side record of one live connection.
type Session struct {
	ID          ID
	DisplayName string
	IsTyping    bool
}

// HasIdentity reports whether the session declared a non-empty display name.
func (s Session) HasIdentity() bool {
	return s.DisplayName != ""
}

// Registry holds one entry per live connection.
type Registry struct {
	mu       sync.RWMutex
	sessions map[ID]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[ID]*Session)}
}

// Register creates a session with no declared identity.
func (r *Registry) Register(id ID) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return Session{}, fmt.Errorf("register %s: %w", id, ErrDuplicateSession)
	}
	s := &Session{ID: id}
	r.sessions[id] = s
	return *s, nil
}

// SetIdentity stores name as the session's display name. A second call
// overwrites the previous name without any notification; first reports
// whether the session had no identity before this call.
func (r *Registry) SetIdentity(id ID, name string) (first bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false, fmt.Errorf("set identity %s: %w", id, ErrSessionNotFound)
	}
	first = !s.HasIdentity()
	s.DisplayName = name
	return first, nil
}

// SetTyping updates the typing flag and returns the updated session.
func (r *Registry) SetTyping(id ID, isTyping bool) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	s.IsTyping = isTyping
	return *s, true
}

// Get returns a copy of the session.
func (r *Registry) Get(id ID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Remove deletes the session and returns its final state so the caller can
// still read the display name.
func (r *Registry) Remove(id ID) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, id)
	return *s, true
}

// IDs returns a snapshot of every live connection id.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.sessions)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
