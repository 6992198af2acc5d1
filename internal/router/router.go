// Package router decides, for every inbound event, which outbound events are
// produced and which sessions receive them.
//
// The router never touches the network. It mutates the session registry,
// takes a snapshot of the audience once the mutation is done, and returns the
// deliveries for the transport to fan out.
package router

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/notify"
	"github.com/Tyrowin/chatrelay/internal/presence"
	"github.com/Tyrowin/chatrelay/internal/session"
	"github.com/samber/lo"
)

// ErrHandlerPanic is returned when handling a single event panicked. The
// event is dropped and the relay keeps running.
var ErrHandlerPanic = errors.New("event handler panicked")

// IsFatal reports whether err means the transport contract is broken and the
// relay cannot continue.
func IsFatal(err error) bool {
	return errors.Is(err, session.ErrDuplicateSession)
}

// Delivery is one outbound event and the sessions that must receive it.
type Delivery struct {
	Payload  chat.Broadcast
	Audience []session.ID
}

// Option configures a Router.
type Option func(*Router)

// WithClock replaces the clock used to stamp message ids.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// WithMetrics records event outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// Router is the single entry point for inbound events.
type Router struct {
	log      *slog.Logger
	registry *session.Registry
	presence *presence.Tracker
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New returns a router over registry.
func New(log *slog.Logger, registry *session.Registry, opts ...Option) *Router {
	r := &Router{
		log:      log,
		registry: registry,
		presence: presence.NewTracker(registry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle processes one event from connection id. Expected drops (anonymous
// sessions, malformed payloads) return no deliveries and no error. A panic
// inside a handler is recovered and reported as ErrHandlerPanic.
func (r *Router) Handle(id session.ID, ev Event) (deliveries []Delivery, err error) {
	if ev == nil {
		r.log.Debug("Dropping nil event", "session", id)
		return nil, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Recovered from panic in event handler",
				"session", id, "event", ev.Name(), "panic", rec)
			r.metrics.HandlerPanicked()
			r.metrics.EventProcessed(ev.Name(), metrics.OutcomeFailed)
			deliveries, err = nil, fmt.Errorf("%s from %s: %w", ev.Name(), id, ErrHandlerPanic)
		}
	}()

	switch e := ev.(type) {
	case Connect:
		err = r.connect(id)
	case IdentityDeclared:
		deliveries = r.declareIdentity(id, e.Username)
	case MessageSent:
		deliveries = r.sendMessage(id, e.Text)
	case TypingSignal:
		deliveries = r.signalTyping(id, e.IsTyping)
	case Disconnect:
		deliveries = r.disconnect(id)
	}

	if err != nil {
		r.metrics.EventProcessed(ev.Name(), metrics.OutcomeFailed)
		return nil, err
	}
	return deliveries, nil
}

func (r *Router) connect(id session.ID) error {
	if _, err := r.registry.Register(id); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	r.metrics.SessionOpened()
	r.metrics.EventProcessed(Connect{}.Name(), metrics.OutcomeHandled)
	r.log.Debug("Session registered", "session", id, "total", r.registry.Len())
	return nil
}

func (r *Router) declareIdentity(id session.ID, name string) []Delivery {
	ev := IdentityDeclared{Username: name}
	first, err := r.registry.SetIdentity(id, name)
	if err != nil {
		r.drop(id, ev, err.Error())
		return nil
	}
	r.metrics.EventProcessed(ev.Name(), metrics.OutcomeHandled)
	if !first {
		r.log.Debug("Identity overwritten", "session", id, "username", name)
		return nil
	}
	r.log.Info("User joined", "session", id, "username", name)
	return []Delivery{{
		Payload:  notify.Joined(name, r.now()),
		Audience: Audience(r.registry.IDs(), &id),
	}}
}

func (r *Router) sendMessage(id session.ID, text *string) []Delivery {
	ev := MessageSent{Text: text}
	s, ok := r.registry.Get(id)
	if !ok || !s.HasIdentity() {
		r.drop(id, ev, "message from session without username")
		return nil
	}
	if text == nil {
		r.drop(id, ev, "message without text")
		return nil
	}
	r.metrics.EventProcessed(ev.Name(), metrics.OutcomeHandled)
	r.log.Debug("Broadcasting message", "session", id, "username", s.DisplayName)
	return []Delivery{{
		Payload: chat.Message{
			ID:       r.now().UnixMilli(),
			Text:     *text,
			Username: s.DisplayName,
			Kind:     chat.KindUser,
		},
		Audience: Audience(r.registry.IDs(), nil),
	}}
}

func (r *Router) signalTyping(id session.ID, isTyping bool) []Delivery {
	ev := TypingSignal{IsTyping: isTyping}
	announcement, ok := r.presence.SetTyping(id, isTyping)
	if !ok {
		r.drop(id, ev, "typing from session without username")
		return nil
	}
	r.metrics.EventProcessed(ev.Name(), metrics.OutcomeHandled)
	return []Delivery{{
		Payload:  announcement,
		Audience: Audience(r.registry.IDs(), &id),
	}}
}

func (r *Router) disconnect(id session.ID) []Delivery {
	ev := Disconnect{}
	s, ok := r.registry.Remove(id)
	if !ok {
		r.drop(id, ev, "unknown session")
		return nil
	}
	r.metrics.SessionClosed()
	r.metrics.EventProcessed(ev.Name(), metrics.OutcomeHandled)
	if !s.HasIdentity() {
		r.log.Debug("Anonymous session disconnected", "session", id)
		return nil
	}
	r.log.Info("User left", "session", id, "username", s.DisplayName)
	return []Delivery{{
		Payload:  notify.Left(s.DisplayName, r.now()),
		Audience: Audience(r.registry.IDs(), nil),
	}}
}

func (r *Router) drop(id session.ID, ev Event, reason string) {
	r.metrics.EventProcessed(ev.Name(), metrics.OutcomeDropped)
	r.log.Debug("Dropping event", "session", id, "event", ev.Name(), "reason", reason)
}

// Audience returns every id in all except excluding, when set.
func Audience(all []session.ID, excluding *session.ID) []session.ID {
	if excluding == nil {
		return all
	}
	return lo.Without(all, *excluding)
}
