// Package pipeline runs decode, speech classification and segmentation for
// one inbound audio track.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/voicerelay/internal/app/segment"
	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/dkeye/voicerelay/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Format           domain.AudioFormat
	SilenceThreshold time.Duration
	// MaxUtterance caps the PCM attached to SpeechEnded; zero disables capture.
	MaxUtterance time.Duration
}

func (c Config) Validate() error {
	if c.Format.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.Format.SampleRate)
	}
	if c.Format.SamplesPerFrame() <= 0 {
		return fmt.Errorf("frame duration %s too short for %d Hz", c.Format.FrameDuration, c.Format.SampleRate)
	}
	if c.MaxUtterance < 0 {
		return errors.New("max utterance must not be negative")
	}
	return nil
}

// Pipeline is exclusively owned by the goroutine that drives it.
type Pipeline struct {
	sessionID string
	cfg       Config
	samples   int

	decoder    core.Decoder
	classifier core.Classifier
	seg        *segment.Segmenter
	sink       core.EventSink
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time

	maxSamples int
	utterance  []int16
}

type Option func(*Pipeline)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(
	sessionID string,
	cfg Config,
	decoder core.Decoder,
	classifier core.Classifier,
	sink core.EventSink,
	opts ...Option,
) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if decoder == nil || classifier == nil || sink == nil {
		return nil, errors.New("pipeline needs a decoder, a classifier and a sink")
	}
	seg, err := segment.New(cfg.Format.FrameDuration, cfg.SilenceThreshold)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		sessionID:  sessionID,
		cfg:        cfg,
		samples:    cfg.Format.SamplesPerFrame(),
		decoder:    decoder,
		classifier: classifier,
		seg:        seg,
		sink:       sink,
		logger:     log.With().Str("module", "pipeline").Str("session_id", sessionID).Logger(),
		now:        time.Now,
	}
	if cfg.MaxUtterance > 0 {
		p.maxSamples = int(cfg.MaxUtterance / cfg.Format.FrameDuration * time.Duration(p.samples))
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) SessionID() string { return p.sessionID }

func (p *Pipeline) State() segment.State { return p.seg.State() }

// ProcessFrame pushes one encoded frame through the pipeline. A frame that
// fails to decode is skipped and does not count toward the silence run.
// A classifier failure counts as non-speech.
func (p *Pipeline) ProcessFrame(encoded []byte) (domain.SpeechEvent, bool) {
	pcm, err := p.decoder.Decode(encoded, p.samples)
	if err != nil {
		p.metrics.Frame("decode_error")
		p.logger.Debug().Err(err).Msg("decode failed, frame skipped")
		return domain.SpeechEvent{}, false
	}

	speech, err := p.classifier.IsSpeech(pcm, p.cfg.Format.SampleRate)
	if err != nil {
		p.metrics.Frame("classify_error")
		p.logger.Debug().Err(err).Msg("classify failed, treated as silence")
		speech = false
	} else if speech {
		p.metrics.Frame("speech")
	} else {
		p.metrics.Frame("silence")
	}

	ev, ok := p.seg.Push(speech)
	p.capture(pcm, ev, ok)
	if !ok {
		return domain.SpeechEvent{}, false
	}

	out := domain.SpeechEvent{
		SessionID: p.sessionID,
		Type:      ev.Type,
		Frame:     ev.Frame,
		Offset:    ev.Offset,
		At:        p.now(),
	}
	if ev.Type == domain.SpeechEnded && p.maxSamples > 0 {
		out.Audio = p.utterance
		p.utterance = nil
	}
	p.metrics.SpeechEvent(ev.Type.String())
	p.logger.Debug().Str("event", ev.Type.String()).Int("frame", ev.Frame).Dur("offset", ev.Offset).Msg("speech event")
	p.sink.OnSpeechEvent(out)
	return out, true
}

func (p *Pipeline) capture(pcm []int16, ev segment.Event, emitted bool) {
	if p.maxSamples == 0 {
		return
	}
	ended := emitted && ev.Type == domain.SpeechEnded
	if p.seg.State() != segment.Speaking && !ended {
		return
	}
	room := p.maxSamples - len(p.utterance)
	if room <= 0 {
		return
	}
	if len(pcm) > room {
		pcm = pcm[:room]
	}
	p.utterance = append(p.utterance, pcm...)
}

// Run reads frames from src until it fails or ctx is cancelled. Frames are
// processed synchronously, so a slow stage slows the reads.
func (p *Pipeline) Run(ctx context.Context, src core.FrameSource) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		frame, err := src.ReadFrame()
		if err != nil {
			return err
		}
		p.ProcessFrame(frame)
	}
}
