// Package testhelpers provides common utilities for testing the chat relay.
//
// It starts a fully wired relay behind an httptest server and offers small
// helpers to dial it, send protocol frames and read them back.
package testhelpers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/chatrelay/internal/config"
	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/router"
	"github.com/Tyrowin/chatrelay/internal/server"
	"github.com/Tyrowin/chatrelay/internal/session"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
)

// TestOrigin is the Origin header sent by ConnectWebSocket.
const TestOrigin = "http://localhost:4000"

// Relay is a running relay for tests.
type Relay struct {
	Server   *httptest.Server
	Hub      *server.Hub
	Registry *session.Registry
	Metrics  *prometheus.Registry
	WSURL    string
}

// StartRelay wires registry, router, hub and routes and serves them. The
// relay is shut down when the test ends.
func StartRelay(t *testing.T, cfg config.Config) *Relay {
	t.Helper()

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry, "chatrelay")
	registry := session.NewRegistry()
	hub := server.NewHub(log, router.New(log, registry, router.WithMetrics(m)), m)
	go hub.Run()

	handlers := server.NewHandlers(log, hub, config.Sanitize(cfg))
	ts := httptest.NewServer(server.SetupRoutes(handlers, promRegistry))
	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(2 * time.Second)
	})

	return &Relay{
		Server:   ts,
		Hub:      hub,
		Registry: registry,
		Metrics:  promRegistry,
		WSURL:    "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

// ConnectWebSocket dials url with the test origin.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", TestOrigin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// Send writes one envelope with data marshalled as JSON.
func Send(conn *websocket.Conn, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(protocol.Envelope{Event: event, Data: raw})
}

// Frame is a decoded outbound envelope.
type Frame struct {
	Event   string
	Message protocol.MessageFrame
	Typing  protocol.TypingFrame
}

// Receive reads the next frame, waiting at most timeout.
func Receive(conn *websocket.Conn, timeout time.Duration) (Frame, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Frame{}, err
	}

	var env protocol.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return Frame{}, err
	}

	f := Frame{Event: env.Event}
	var err error
	switch env.Event {
	case protocol.EventMessage:
		err = json.Unmarshal(env.Data, &f.Message)
	case protocol.EventUserTyping:
		err = json.Unmarshal(env.Data, &f.Typing)
	}
	return f, err
}

// ExpectNoFrame fails the test if a frame arrives within timeout.
func ExpectNoFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if f, err := Receive(conn, timeout); err == nil {
		t.Errorf("Expected no frame, got %+v", f)
	}
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Condition not met within %s", timeout)
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// MakeRequest executes an HTTP request with a 5-second timeout.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}
