// Package server coordinates client registration, inbound event dispatch and
// outbound fan-out for the chat relay via the Hub type.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/router"
	"github.com/Tyrowin/chatrelay/internal/session"
)

// inbound is one decoded event waiting for the hub loop.
type inbound struct {
	client *Client
	event  router.Event
}

// Hub owns the live WebSocket clients. A single loop goroutine handles
// registration, unregistration and inbound events, hands each one to the
// router and delivers the resulting frames. Events of one client are
// processed in the order the client sent them.
type Hub struct {
	log        *slog.Logger
	router     *router.Router
	metrics    *metrics.Metrics
	clients    map[session.ID]*Client
	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelCauseFunc
	done       chan struct{}
}

// NewHub creates a hub that routes events through r.
func NewHub(log *slog.Logger, r *router.Router, m *metrics.Metrics) *Hub {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Hub{
		log:        log,
		router:     r,
		metrics:    m,
		clients:    make(map[session.ID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a freshly upgraded client to the hub. It returns false when
// the hub is no longer running.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

func (h *Hub) dispatch(c *Client, ev router.Event) {
	select {
	case h.inbound <- inbound{client: c, event: ev}:
	case <-h.ctx.Done():
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Done is closed once the hub loop has exited.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Err returns the fatal error that stopped the hub, or nil after a normal
// shutdown or while it is still running.
func (h *Hub) Err() error {
	cause := context.Cause(h.ctx)
	if errors.Is(cause, context.Canceled) {
		return nil
	}
	return cause
}

// Run starts the hub's main event loop. It returns when the hub is shut down
// or the router reports a fatal error.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case in := <-h.inbound:
			h.handleInbound(in)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	if client == nil {
		h.log.Warn("Received nil client registration; skipping")
		return
	}

	if _, err := h.router.Handle(client.id, router.Connect{}); err != nil {
		client.closeConnection()
		if router.IsFatal(err) {
			h.log.Error("Connection registry invariant violated; stopping hub",
				"session", client.id, "error", err)
			h.cancel(err)
			return
		}
		h.log.Error("Failed to register client", "addr", client.addr, "error", err)
		return
	}

	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.log.Info("Client registered", "session", client.id, "addr", client.addr, "total", clientCount)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	h.log.Info("Client unregistered", "session", client.id, "addr", client.addr, "total", clientCount)

	h.route(client, router.Disconnect{})
}

func (h *Hub) handleInbound(in inbound) {
	h.mutex.RLock()
	_, live := h.clients[in.client.id]
	h.mutex.RUnlock()
	if !live {
		return
	}
	h.route(in.client, in.event)
}

// route runs one event through the router and delivers the result. Handler
// faults are logged and the event is dropped.
func (h *Hub) route(client *Client, ev router.Event) {
	deliveries, err := h.router.Handle(client.id, ev)
	if err != nil {
		h.log.Error("Event handling failed", "session", client.id, "event", ev.Name(), "error", err)
		return
	}
	for _, d := range deliveries {
		h.deliver(d)
	}
}

// deliver encodes the payload once and queues it for every audience member.
func (h *Hub) deliver(d router.Delivery) {
	frame, err := protocol.Encode(d.Payload)
	if err != nil {
		h.log.Error("Error encoding outbound frame", "error", err)
		return
	}
	event := protocol.EventName(d.Payload)

	h.log.Debug("Broadcasting frame", "event", event, "recipients", len(d.Audience))
	for _, id := range d.Audience {
		queued := h.safeSend(id, frame)
		h.metrics.Delivered(event, queued)
		if !queued {
			h.log.Debug("Dropped frame for client", "session", id, "event", event)
		}
	}
}

func (h *Hub) safeSend(id session.ID, frame []byte) (queued bool) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Recovered from panic in safeSend", "panic", r)
			queued = false
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	client, exists := h.clients[id]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

// shutdownClients closes all active client connections.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		client.closed = true
		delete(h.clients, id)
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	// Closing send stops the write pump without waiting for the next ping.
	for _, client := range clients {
		close(client.send)
		client.closeConnection()
	}

	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown stops the hub and waits for all client goroutines to complete or
// for the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown...")

	h.cancel(nil)
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
