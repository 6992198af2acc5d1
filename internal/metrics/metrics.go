// Package metrics exposes Prometheus collectors for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for events_total.
const (
	OutcomeHandled = "handled"
	OutcomeDropped = "dropped"
	OutcomeFailed  = "failed"
)

// Metrics holds the relay collectors. A nil *Metrics records nothing.
type Metrics struct {
	sessionsActive prometheus.Gauge
	eventsTotal    *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	handlerPanics  prometheus.Counter
}

// New registers the collectors on reg under namespace.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live chat sessions",
		}),
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound events processed by the router",
		}, []string{"event", "outcome"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound frames queued or dropped per recipient",
		}, []string{"event", "result"}),
		handlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Event handlers that panicked and were recovered",
		}),
	}
}

// SessionOpened increments the live session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

// SessionClosed decrements the live session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// EventProcessed counts one inbound event with its outcome.
func (m *Metrics) EventProcessed(event, outcome string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(event, outcome).Inc()
}

// Delivered counts one outbound frame for one recipient.
func (m *Metrics) Delivered(event string, queued bool) {
	if m == nil {
		return
	}
	result := "queued"
	if !queued {
		result = "dropped"
	}
	m.deliveries.WithLabelValues(event, result).Inc()
}

// HandlerPanicked counts a recovered handler panic.
func (m *Metrics) HandlerPanicked() {
	if m == nil {
		return
	}
	m.handlerPanics.Inc()
}
