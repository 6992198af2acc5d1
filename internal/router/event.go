package router

// Event is an inbound event for one connection. The set of events is closed.
type Event interface {
	Name() string
	event()
}

// Connect is raised by the transport when a connection is established.
type Connect struct{}

// IdentityDeclared carries the display name a client chose.
type IdentityDeclared struct {
	Username string
}

// MessageSent carries a chat message. A nil Text means the client sent a
// message without a text field.
type MessageSent struct {
	Text *string
}

// TypingSignal reports that the client started or stopped typing.
type TypingSignal struct {
	IsTyping bool
}

// Disconnect is raised by the transport when a connection ends.
type Disconnect struct{}

func (Connect) Name() string          { return "connect" }
func (IdentityDeclared) Name() string { return "set_username" }
func (MessageSent) Name() string      { return "message" }
func (TypingSignal) Name() string     { return "typing" }
func (Disconnect) Name() string       { return "disconnect" }

func (Connect) event()          {}
func (IdentityDeclared) event() {}
func (MessageSent) event()      {}
func (TypingSignal) event()     {}
func (Disconnect) event()       {}
