package rtc

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/voicerelay/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrNotStarted = errors.New("connection not started")

type WebRTCConnection struct {
	pc  *webrtc.PeerConnection
	sid string

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	onICE    func(webrtc.ICECandidateInit)
	onTrack  func(ctx context.Context, track core.Track)
	onClosed func()

	closeOnce sync.Once
	closed    chan struct{}
}

func DefaultWebRTCConfig(iceServers ...string) webrtc.Configuration {
	if len(iceServers) == 0 {
		iceServers = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	}
}

func NewWebRTCConnection(cfg webrtc.Configuration, sid string) (*WebRTCConnection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &WebRTCConnection{pc: pc, sid: sid, closed: make(chan struct{})}, nil
}

// Factory returns a core.MediaFactory opening connections with cfg.
func Factory(cfg webrtc.Configuration) core.MediaFactory {
	return func(sessionID string) (core.MediaConnection, error) {
		return NewWebRTCConnection(cfg, sessionID)
	}
}

func (c *WebRTCConnection) SessionID() string { return c.sid }

func (c *WebRTCConnection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.ctx, c.cancel = ctx, cancel
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.closed:
		}
	}()

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "webrtc").Str("session_id", c.sid).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateFailed || s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Str("session_id", c.sid).Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			cancel()
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("session_id", c.sid).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("codec", track.Codec().MimeType).
			Msg("OnTrack received")
		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(ctx, NewTrackSource(track, receiver))
		}
	})

	return nil
}

// ApplyOfferAndCreateAnswer does not wait for ICE gathering; local
// candidates are reported through OnICECandidate as they appear.
func (c *WebRTCConnection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	c.mu.Lock()
	started := c.cancel != nil
	c.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}

	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return c.pc.LocalDescription(), nil
}

func (c *WebRTCConnection) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		cancel, onClosed := c.cancel, c.onClosed
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if err := c.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "webrtc").Str("session_id", c.sid).Msg("close error")
		} else {
			log.Info().Str("module", "webrtc").Str("session_id", c.sid).Msg("closed")
		}
		if onClosed != nil {
			onClosed()
		}
	})
}

func (c *WebRTCConnection) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *WebRTCConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *WebRTCConnection) LocalDescription() *webrtc.SessionDescription {
	return c.pc.LocalDescription()
}

func (c *WebRTCConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onICE = fn
}

// OnTrack sets application-level callback for remote tracks.
func (c *WebRTCConnection) OnTrack(fn func(ctx context.Context, track core.Track)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrack = fn
}

// OnClosed sets application-level callback for cleanup; it runs once.
func (c *WebRTCConnection) OnClosed(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClosed = fn
}
