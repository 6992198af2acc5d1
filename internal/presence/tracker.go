// Package presence turns per-session typing signals into announcements for
// the other participants.
package presence

import (
	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/session"
)

// Tracker is stateless: the typing flag lives in the session registry.
type Tracker struct {
	registry *session.Registry
}

// NewTracker returns a tracker over registry.
func NewTracker(registry *session.Registry) *Tracker {
	return &Tracker{registry: registry}
}

// SetTyping records the signal and returns the announcement to send to every
// other session. Anonymous or unknown sessions produce nothing. Identical
// consecutive signals are announced again; clients debounce on their side.
func (t *Tracker) SetTyping(id session.ID, isTyping bool) (chat.TypingAnnouncement, bool) {
	s, ok := t.registry.Get(id)
	if !ok || !s.HasIdentity() {
		return chat.TypingAnnouncement{}, false
	}
	s, ok = t.registry.SetTyping(id, isTyping)
	if !ok {
		return chat.TypingAnnouncement{}, false
	}
	return chat.TypingAnnouncement{Username: s.DisplayName, IsTyping: isTyping}, true
}
