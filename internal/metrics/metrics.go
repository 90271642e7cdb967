// Package metrics exposes Prometheus counters for the relay and the audio pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voicerelay"

type Metrics struct {
	// Relay
	PeersRegistered prometheus.Gauge
	Joins           prometheus.Counter
	Leaves          prometheus.Counter
	Relayed         *prometheus.CounterVec // result=delivered|unroutable|backpressure
	ProtocolErrors  prometheus.Counter

	// Pipeline
	ActiveSessions prometheus.Gauge
	ActiveTracks   prometheus.Gauge
	Frames         *prometheus.CounterVec // result=speech|silence|decode_error|classify_error
	SpeechEvents   *prometheus.CounterVec // type=SpeechStarted|SpeechEnded
	Negotiations   *prometheus.CounterVec // result=answered|failed
}

// New registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PeersRegistered: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers_registered",
			Help:      "Peers currently registered in the directory",
		}),
		Joins: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Accepted join envelopes",
		}),
		Leaves: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaves_total",
			Help:      "Explicit and implicit leaves that removed a registration",
		}),
		Relayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_envelopes_total",
			Help:      "Signal envelopes by relay outcome",
		}, []string{"result"}),
		ProtocolErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Malformed envelopes that closed their connection",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "media_sessions_active",
			Help:      "Negotiated media sessions not yet closed",
		}),
		ActiveTracks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_tracks_active",
			Help:      "Running audio ingestion loops",
		}),
		Frames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_total",
			Help:      "Audio frames by pipeline outcome",
		}, []string{"result"}),
		SpeechEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_events_total",
			Help:      "Segmentation events emitted",
		}, []string{"type"}),
		Negotiations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiations_total",
			Help:      "Offers handled by outcome",
		}, []string{"result"}),
	}
}

func (m *Metrics) PeerJoined(replaced bool) {
	if m == nil {
		return
	}
	m.Joins.Inc()
	if !replaced {
		m.PeersRegistered.Inc()
	}
}

func (m *Metrics) PeerLeft() {
	if m == nil {
		return
	}
	m.Leaves.Inc()
	m.PeersRegistered.Dec()
}

func (m *Metrics) Relay(result string) {
	if m == nil {
		return
	}
	m.Relayed.WithLabelValues(result).Inc()
}

func (m *Metrics) ProtocolError() {
	if m == nil {
		return
	}
	m.ProtocolErrors.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) TrackStarted() {
	if m == nil {
		return
	}
	m.ActiveTracks.Inc()
}

func (m *Metrics) TrackStopped() {
	if m == nil {
		return
	}
	m.ActiveTracks.Dec()
}

func (m *Metrics) Frame(result string) {
	if m == nil {
		return
	}
	m.Frames.WithLabelValues(result).Inc()
}

func (m *Metrics) SpeechEvent(kind string) {
	if m == nil {
		return
	}
	m.SpeechEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) Negotiation(result string) {
	if m == nil {
		return
	}
	m.Negotiations.WithLabelValues(result).Inc()
}
