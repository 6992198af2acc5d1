package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	req := require.New(t)
	m := New(prometheus.NewRegistry(), "chatrelay")

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.EventProcessed("message", OutcomeHandled)
	m.EventProcessed("message", OutcomeDropped)
	m.EventProcessed("message", OutcomeDropped)
	m.Delivered("message", true)
	m.Delivered("message", false)
	m.HandlerPanicked()

	req.Equal(1.0, testutil.ToFloat64(m.sessionsActive))
	req.Equal(1.0, testutil.ToFloat64(m.eventsTotal.WithLabelValues("message", OutcomeHandled)))
	req.Equal(2.0, testutil.ToFloat64(m.eventsTotal.WithLabelValues("message", OutcomeDropped)))
	req.Equal(1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("message", "queued")))
	req.Equal(1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("message", "dropped")))
	req.Equal(1.0, testutil.ToFloat64(m.handlerPanics))
}

func TestMetrics_Nil_Is_Noop(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.SessionOpened()
		m.SessionClosed()
		m.EventProcessed("typing", OutcomeHandled)
		m.Delivered("user_typing", true)
		m.HandlerPanicked()
	})
}
