// Package chat defines the broadcast content exchanged by the relay: chat
// messages and ephemeral typing announcements.
package chat

// Kind tags how a Message is rendered by clients.
type Kind string

const (
	// KindUser is a message authored by a connected client.
	KindUser Kind = "user"
	// KindSystem is a message synthesized by the server for lifecycle events.
	KindSystem Kind = "system"
)

// SystemUsername is the author name carried by every system message.
const SystemUsername = "System"

// Message is a unit of broadcast content. ID is a millisecond timestamp used
// as a display key; two messages created in the same millisecond share it.
type Message struct {
	ID       int64
	Text     string
	Username string
	Kind     Kind
}

// IsSystem reports whether the message was synthesized by the server.
func (m Message) IsSystem() bool {
	return m.Kind == KindSystem
}

// TypingAnnouncement tells other clients that Username started or stopped typing.
// It is never stored.
type TypingAnnouncement struct {
	Username string
	IsTyping bool
}

// Broadcast is implemented by every payload the relay fans out to clients.
type Broadcast interface {
	broadcast()
}

func (Message) broadcast()            {}
func (TypingAnnouncement) broadcast() {}
