package rtc

import (
	"strings"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type rtpReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

type stopper interface {
	Stop() error
}

// TrackSource exposes a remote track as a stream of encoded payloads.
type TrackSource struct {
	src  rtpReader
	recv stopper
	id   string
	mime string
	kind webrtc.RTPCodecType
	once sync.Once
}

func NewTrackSource(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) *TrackSource {
	t := &TrackSource{
		src:  track,
		id:   track.ID(),
		mime: track.Codec().MimeType,
		kind: track.Kind(),
	}
	if receiver != nil {
		t.recv = receiver
	}
	return t
}

// ReadFrame returns the next non-empty RTP payload. Padding-only packets
// carry no audio and are skipped.
func (t *TrackSource) ReadFrame() ([]byte, error) {
	for {
		pkt, _, err := t.src.ReadRTP()
		if err != nil {
			return nil, err
		}
		if len(pkt.Payload) > 0 {
			return pkt.Payload, nil
		}
	}
}

// Close stops the receiver. Pending and later reads fail.
func (t *TrackSource) Close() {
	t.once.Do(func() {
		if t.recv == nil {
			return
		}
		if err := t.recv.Stop(); err != nil {
			log.Debug().Err(err).Str("module", "webrtc").Str("track_id", t.id).Msg("stop receiver")
		}
	})
}

func (t *TrackSource) ID() string       { return t.id }
func (t *TrackSource) MimeType() string { return t.mime }

func (t *TrackSource) IsAudio() bool {
	if t.kind == webrtc.RTPCodecTypeAudio {
		return true
	}
	return strings.HasPrefix(strings.ToLower(t.mime), "audio/")
}
