package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PeerJoined(false)
		m.PeerLeft()
		m.Relay("delivered")
		m.ProtocolError()
		m.SessionOpened()
		m.SessionClosed()
		m.TrackStarted()
		m.TrackStopped()
		m.Frame("speech")
		m.SpeechEvent("SpeechStarted")
		m.Negotiation("answered")
	})
}

func TestPeerGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.PeerJoined(false)
	m.PeerJoined(true)
	m.PeerJoined(false)
	m.PeerLeft()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PeersRegistered))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Joins))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Leaves))
}

func TestRelayOutcomes(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Relay("delivered")
	m.Relay("delivered")
	m.Relay("unroutable")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Relayed.WithLabelValues("delivered")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Relayed.WithLabelValues("unroutable")))
}
