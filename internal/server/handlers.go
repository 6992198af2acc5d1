package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Tyrowin/chatrelay/internal/config"
	"github.com/gorilla/websocket"
)

// Handlers serves the HTTP endpoints of the relay.
type Handlers struct {
	log            *slog.Logger
	hub            *Hub
	upgrader       websocket.Upgrader
	maxMessageSize int64
	sendBufferSize int
}

// NewHandlers wires the endpoints to hub using the limits from cfg.
func NewHandlers(log *slog.Logger, hub *Hub, cfg config.Config) *Handlers {
	origins := NewOriginPolicy(log, cfg.AllowedOrigins)
	return &Handlers{
		log: log,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.CheckOrigin,
		},
		maxMessageSize: cfg.MaxMessageSize,
		sendBufferSize: cfg.SendBufferSize,
	}
}

// WebSocket upgrades the request and registers the new client with the hub,
// which starts its read and write pumps.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr, h.maxMessageSize, h.sendBufferSize)
	if !h.hub.Register(client) {
		h.log.Warn("Hub is not running; closing connection", "addr", r.RemoteAddr)
		client.closeConnection()
	}
}

// Health reports that the server is running and how many clients are connected.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat relay is running! Connected clients: %d", h.hub.ClientCount())
}

// TestPage serves a minimal chat client for manual testing.
func (h *Handlers) TestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		h.log.Warn("Error writing HTML response", "error", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Chat Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .system { color: gray; font-style: italic; }
        #typing { height: 1.2em; color: gray; font-size: 0.9em; }
    </style>
</head>
<body>
    <h1>Chat Relay Test</h1>

    <div id="join">
        <input type="text" id="usernameInput" placeholder="Choose a username...">
        <button onclick="join()">Join</button>
    </div>

    <div id="chat" style="display:none">
        <div id="messages"></div>
        <div id="typing"></div>
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>

    <script>
        let ws = null;
        let typingTimeout = null;
        const typers = new Set();
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const typingDiv = document.getElementById('typing');

        function send(event, data) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({ event: event, data: data }));
            }
        }

        function addMessage(msg) {
            const el = document.createElement('div');
            if (msg.kind === 'system') {
                el.className = 'system';
                el.textContent = msg.text;
            } else {
                el.textContent = msg.username + ': ' + msg.text;
            }
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function renderTyping() {
            typingDiv.textContent = typers.size ? Array.from(typers).join(', ') + ' is typing...' : '';
        }

        function join() {
            const username = document.getElementById('usernameInput').value.trim();
            if (!username) {
                return;
            }
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() {
                send('set_username', username);
                document.getElementById('join').style.display = 'none';
                document.getElementById('chat').style.display = 'block';
            };
            ws.onmessage = function(event) {
                const frame = JSON.parse(event.data);
                if (frame.event === 'message') {
                    addMessage(frame.data);
                } else if (frame.event === 'user_typing') {
                    if (frame.data.isTyping) {
                        typers.add(frame.data.username);
                    } else {
                        typers.delete(frame.data.username);
                    }
                    renderTyping();
                }
            };
            ws.onclose = function() {
                addMessage({ kind: 'system', text: 'Connection closed' });
                ws = null;
            };
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (!text) {
                return;
            }
            send('message', { text: text });
            send('typing', false);
            clearTimeout(typingTimeout);
            messageInput.value = '';
        }

        messageInput.addEventListener('input', function() {
            send('typing', true);
            clearTimeout(typingTimeout);
            typingTimeout = setTimeout(function() { send('typing', false); }, 2000);
        });

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
