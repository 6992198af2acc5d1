// Package protocol maps WebSocket text frames to router events and chat
// broadcasts to frames.
//
// Every frame is a JSON envelope {"event": name, "data": payload}. Inbound
// events are set_username (string), message ({"text": string}) and typing
// (bool). Outbound events are message and user_typing.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/router"
	"github.com/go-playground/validator/v10"
)

// Event names on the wire.
const (
	EventSetUsername = "set_username"
	EventMessage     = "message"
	EventTyping      = "typing"
	EventUserTyping  = "user_typing"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid payload")
)

var validate = validator.New()

// Envelope is the frame shared by both directions.
type Envelope struct {
	Event string          `json:"event" validate:"required"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessageFrame is the payload of an outbound message event. Kind is omitted
// for user messages.
type MessageFrame struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	Username string `json:"username"`
	Kind     string `json:"kind,omitempty"`
}

// TypingFrame is the payload of an outbound user_typing event.
type TypingFrame struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type identityPayload struct {
	Name string `validate:"required"`
}

type messagePayload struct {
	Text *string `json:"text"`
}

// Decode parses one inbound frame. A message without text decodes to
// router.MessageSent with a nil Text; the router decides to drop it.
func Decode(raw []byte) (router.Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch env.Event {
	case EventSetUsername:
		var p identityPayload
		if err := json.Unmarshal(env.Data, &p.Name); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", env.Event, ErrInvalidPayload, err)
		}
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", env.Event, ErrInvalidPayload, err)
		}
		return router.IdentityDeclared{Username: p.Name}, nil

	case EventMessage:
		if isAbsent(env.Data) {
			return router.MessageSent{}, nil
		}
		var p messagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", env.Event, ErrInvalidPayload, err)
		}
		return router.MessageSent{Text: p.Text}, nil

	case EventTyping:
		if isAbsent(env.Data) {
			return router.TypingSignal{}, nil
		}
		var isTyping bool
		if err := json.Unmarshal(env.Data, &isTyping); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", env.Event, ErrInvalidPayload, err)
		}
		return router.TypingSignal{IsTyping: isTyping}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

// Encode renders a broadcast as an outbound frame.
func Encode(b chat.Broadcast) ([]byte, error) {
	var env struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	switch p := b.(type) {
	case chat.Message:
		frame := MessageFrame{ID: p.ID, Text: p.Text, Username: p.Username}
		if p.IsSystem() {
			frame.Kind = string(chat.KindSystem)
		}
		env.Event, env.Data = EventMessage, frame
	case chat.TypingAnnouncement:
		env.Event, env.Data = EventUserTyping, TypingFrame{Username: p.Username, IsTyping: p.IsTyping}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, b)
	}

	return json.Marshal(env)
}

// EventName returns the outbound event name of b.
func EventName(b chat.Broadcast) string {
	switch b.(type) {
	case chat.Message:
		return EventMessage
	case chat.TypingAnnouncement:
		return EventUserTyping
	}
	return "unknown"
}

func isAbsent(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
