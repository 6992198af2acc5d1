// Package notify formats the system messages injected when a user joins or
// leaves the chat.
package notify

import (
	"fmt"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
)

// Joined returns the system message announcing that name joined.
func Joined(name string, at time.Time) chat.Message {
	return system(fmt.Sprintf("%s joined the chat", name), at)
}

// Left returns the system message announcing that name left.
func Left(name string, at time.Time) chat.Message {
	return system(fmt.Sprintf("%s left the chat", name), at)
}

func system(text string, at time.Time) chat.Message {
	return chat.Message{
		ID:       at.UnixMilli(),
		Text:     text,
		Username: chat.SystemUsername,
		Kind:     chat.KindSystem,
	}
}
