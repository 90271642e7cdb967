// Package negotiate answers relayed WebRTC offers and trickles candidates
// back to the offering peer.
package negotiate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/dkeye/voicerelay/internal/metrics"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrOfferRejected = errors.New("offer rejected")
	ErrNoSession     = errors.New("no session for peer")
)

// Signaler delivers envelopes to the relay.
type Signaler interface {
	Send(domain.Envelope) error
}

// TrackAttacher starts ingestion for a remote track of a session and is
// told when the session's transport is gone.
type TrackAttacher interface {
	Attach(ctx context.Context, sessionID string, track core.Track) error
	EndSession(sessionID string, err error)
}

type session struct {
	id   string
	peer domain.PeerID
	conn core.MediaConnection
}

type Negotiator struct {
	self     domain.PeerID
	signaler Signaler
	newMedia core.MediaFactory
	tracks   TrackAttacher
	metrics  *metrics.Metrics
	newID    func() string

	mu       sync.Mutex
	sessions map[string]*session
	latest   map[domain.PeerID]*session
}

type Option func(*Negotiator)

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Negotiator) { n.metrics = m }
}

func WithIDGenerator(fn func() string) Option {
	return func(n *Negotiator) { n.newID = fn }
}

func New(self domain.PeerID, signaler Signaler, newMedia core.MediaFactory, tracks TrackAttacher, opts ...Option) *Negotiator {
	n := &Negotiator{
		self:     self,
		signaler: signaler,
		newMedia: newMedia,
		tracks:   tracks,
		newID:    uuid.NewString,
		sessions: make(map[string]*session),
		latest:   make(map[domain.PeerID]*session),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// HandleSignal routes a relayed signal: an SDP is an offer, a candidate is
// added to the latest session negotiated with the sender.
func (n *Negotiator) HandleSignal(ctx context.Context, sig domain.Signal) error {
	data, err := sig.Payload()
	if err != nil {
		return err
	}
	switch {
	case data.SDP != "":
		_, err := n.HandleOffer(ctx, sig.From, data.SDP)
		return err
	case len(data.Candidate) > 0:
		return n.AddRemoteCandidate(sig.From, data.Candidate)
	default:
		return fmt.Errorf("%w: signal carries neither sdp nor candidate", domain.ErrMalformedEnvelope)
	}
}

// HandleOffer creates one media session for the offer and relays the answer
// to from. On failure the session is discarded and nothing is sent.
func (n *Negotiator) HandleOffer(ctx context.Context, from domain.PeerID, sdp string) (string, error) {
	if from == "" {
		return "", fmt.Errorf("%w: offer without sender", ErrOfferRejected)
	}
	id := n.newID()
	logger := log.With().
		Str("module", "negotiate").
		Str("peer_id", string(from)).
		Str("session_id", id).
		Logger()

	conn, err := n.newMedia(id)
	if err != nil {
		n.metrics.Negotiation("failed")
		logger.Error().Err(err).Msg("new peer connection")
		return "", err
	}

	s := &session{id: id, peer: from, conn: conn}
	conn.OnClosed(func() { n.forget(s) })
	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		n.sendCandidate(from, ci)
	})
	conn.OnTrack(func(trackCtx context.Context, track core.Track) {
		if err := n.tracks.Attach(trackCtx, id, track); err != nil {
			logger.Error().Err(err).Str("track_id", track.ID()).Msg("attach track")
		}
	})

	if err := conn.Start(ctx); err != nil {
		n.metrics.Negotiation("failed")
		logger.Error().Err(err).Msg("webrtc start")
		conn.Close()
		return "", err
	}

	answer, err := conn.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	})
	if err != nil {
		n.metrics.Negotiation("failed")
		logger.Error().Err(err).Msg("webrtc apply offer")
		conn.Close()
		return "", fmt.Errorf("%w: %w", ErrOfferRejected, err)
	}

	n.mu.Lock()
	n.sessions[id] = s
	n.latest[from] = s
	n.mu.Unlock()
	n.metrics.SessionOpened()
	if conn.IsClosed() {
		n.forget(s)
	}

	reply, err := domain.NewSignal(n.self, from, domain.SignalData{SDP: answer.SDP})
	if err == nil {
		err = n.signaler.Send(reply)
	}
	if err != nil {
		n.metrics.Negotiation("failed")
		logger.Error().Err(err).Msg("send answer")
		conn.Close()
		return "", err
	}

	n.metrics.Negotiation("answered")
	logger.Info().Msg("answer sent")
	return id, nil
}

func (n *Negotiator) sendCandidate(to domain.PeerID, ci webrtc.ICECandidateInit) {
	raw, err := json.Marshal(ci)
	if err != nil {
		log.Error().Err(err).Str("module", "negotiate").Msg("marshal candidate")
		return
	}
	sig, err := domain.NewSignal(n.self, to, domain.SignalData{Candidate: raw})
	if err != nil {
		log.Error().Err(err).Str("module", "negotiate").Msg("build candidate signal")
		return
	}
	if err := n.signaler.Send(sig); err != nil {
		log.Warn().Err(err).Str("module", "negotiate").Str("peer_id", string(to)).Msg("send candidate")
	}
}

// AddRemoteCandidate accepts either an ICE candidate object or a bare
// candidate line.
func (n *Negotiator) AddRemoteCandidate(from domain.PeerID, raw json.RawMessage) error {
	var ci webrtc.ICECandidateInit
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &ci.Candidate); err != nil {
			return fmt.Errorf("%w: candidate: %v", domain.ErrMalformedEnvelope, err)
		}
	} else if err := json.Unmarshal(trimmed, &ci); err != nil {
		return fmt.Errorf("%w: candidate: %v", domain.ErrMalformedEnvelope, err)
	}

	n.mu.Lock()
	s, ok := n.latest[from]
	n.mu.Unlock()
	if !ok {
		log.Debug().Str("module", "negotiate").Str("peer_id", string(from)).Msg("candidate for unknown peer dropped")
		return ErrNoSession
	}
	if err := s.conn.AddICECandidate(ci); err != nil {
		log.Warn().Err(err).Str("module", "negotiate").Str("session_id", s.id).Msg("add ice candidate")
		return err
	}
	return nil
}

func (n *Negotiator) forget(s *session) {
	n.mu.Lock()
	_, ok := n.sessions[s.id]
	delete(n.sessions, s.id)
	if n.latest[s.peer] == s {
		delete(n.latest, s.peer)
	}
	n.mu.Unlock()
	if ok {
		n.metrics.SessionClosed()
		log.Info().Str("module", "negotiate").Str("session_id", s.id).Str("peer_id", string(s.peer)).Msg("session closed")
		n.tracks.EndSession(s.id, nil)
	}
}

// Sessions is the number of open media sessions.
func (n *Negotiator) Sessions() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sessions)
}

// Close tears down every open session.
func (n *Negotiator) Close() {
	n.mu.Lock()
	open := make([]*session, 0, len(n.sessions))
	for _, s := range n.sessions {
		open = append(open, s)
	}
	n.mu.Unlock()
	for _, s := range open {
		s.conn.Close()
	}
}
