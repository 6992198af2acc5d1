package notify

import (
	"testing"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/stretchr/testify/require"
)

func TestJoined(t *testing.T) {
	req := require.New(t)
	at := time.UnixMilli(1_700_000_000_123)

	msg := Joined("Alice", at)

	req.Equal("Alice joined the chat", msg.Text)
	req.Equal(chat.SystemUsername, msg.Username)
	req.Equal(chat.KindSystem, msg.Kind)
	req.Equal(int64(1_700_000_000_123), msg.ID)
	req.True(msg.IsSystem())
}

func TestLeft(t *testing.T) {
	req := require.New(t)

	msg := Left("Bob", time.UnixMilli(42))

	req.Equal("Bob left the chat", msg.Text)
	req.Equal(chat.SystemUsername, msg.Username)
	req.Equal(chat.KindSystem, msg.Kind)
}
