package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/router"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	hi := "hi"
	empty := ""

	tests := []struct {
		name string
		raw  string
		want router.Event
	}{
		{"set username", `{"event":"set_username","data":"Alice"}`, router.IdentityDeclared{Username: "Alice"}},
		{"message", `{"event":"message","data":{"text":"hi"}}`, router.MessageSent{Text: &hi}},
		{"message with empty text", `{"event":"message","data":{"text":""}}`, router.MessageSent{Text: &empty}},
		{"message without text", `{"event":"message","data":{}}`, router.MessageSent{}},
		{"message with null text", `{"event":"message","data":{"text":null}}`, router.MessageSent{}},
		{"message without data", `{"event":"message"}`, router.MessageSent{}},
		{"message with null data", `{"event":"message","data":null}`, router.MessageSent{}},
		{"typing started", `{"event":"typing","data":true}`, router.TypingSignal{IsTyping: true}},
		{"typing stopped", `{"event":"typing","data":false}`, router.TypingSignal{IsTyping: false}},
		{"typing without data", `{"event":"typing"}`, router.TypingSignal{}},
		{"typing with null data", `{"event":"typing","data":null}`, router.TypingSignal{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `hello`, ErrInvalidPayload},
		{"missing event", `{"data":"Alice"}`, ErrInvalidPayload},
		{"unknown event", `{"event":"rename","data":"Bob"}`, ErrUnknownEvent},
		{"empty username", `{"event":"set_username","data":""}`, ErrInvalidPayload},
		{"username not a string", `{"event":"set_username","data":42}`, ErrInvalidPayload},
		{"username missing", `{"event":"set_username"}`, ErrInvalidPayload},
		{"text not a string", `{"event":"message","data":{"text":7}}`, ErrInvalidPayload},
		{"typing not a bool", `{"event":"typing","data":"yes"}`, ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestEncode_User_Message_Omits_Kind(t *testing.T) {
	req := require.New(t)

	raw, err := Encode(chat.Message{ID: 12, Text: "hi", Username: "Alice", Kind: chat.KindUser})
	req.NoError(err)

	req.JSONEq(`{"event":"message","data":{"id":12,"text":"hi","username":"Alice"}}`, string(raw))
}

func TestEncode_System_Message(t *testing.T) {
	req := require.New(t)

	raw, err := Encode(chat.Message{ID: 3, Text: "Alice joined the chat", Username: "System", Kind: chat.KindSystem})
	req.NoError(err)

	req.JSONEq(`{"event":"message","data":{"id":3,"text":"Alice joined the chat","username":"System","kind":"system"}}`, string(raw))
}

func TestEncode_Typing(t *testing.T) {
	req := require.New(t)

	raw, err := Encode(chat.TypingAnnouncement{Username: "Alice", IsTyping: true})
	req.NoError(err)

	var env Envelope
	req.NoError(json.Unmarshal(raw, &env))
	req.Equal(EventUserTyping, env.Event)
	req.JSONEq(`{"username":"Alice","isTyping":true}`, string(env.Data))
}

func TestEncode_Nil(t *testing.T) {
	_, err := Encode(nil)

	require.True(t, errors.Is(err, ErrUnknownEvent))
}

func TestEventName(t *testing.T) {
	require.Equal(t, EventMessage, EventName(chat.Message{}))
	require.Equal(t, EventUserTyping, EventName(chat.TypingAnnouncement{}))
	require.Equal(t, "unknown", EventName(nil))
}
