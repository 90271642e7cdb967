// Package segment turns a per-frame speech decision stream into utterance
// boundaries. It has no I/O and no clock; time is frame count times the
// fixed frame duration.
package segment

import (
	"fmt"
	"time"

	"github.com/dkeye/voicerelay/internal/domain"
)

type State int

const (
	Silence State = iota
	Speaking
)

func (s State) String() string {
	if s == Speaking {
		return "speaking"
	}
	return "silence"
}

type Event struct {
	Type   domain.SpeechEventType
	Frame  int
	Offset time.Duration
}

// Segmenter applies silence hysteresis: an utterance ends only after the
// trailing non-speech run reaches the threshold. Not safe for concurrent use.
type Segmenter struct {
	frameDuration    time.Duration
	silenceThreshold time.Duration

	state      State
	silenceRun int
	frames     int
}

func New(frameDuration, silenceThreshold time.Duration) (*Segmenter, error) {
	if frameDuration <= 0 {
		return nil, fmt.Errorf("frame duration must be positive, got %s", frameDuration)
	}
	if silenceThreshold < 0 {
		return nil, fmt.Errorf("silence threshold must not be negative, got %s", silenceThreshold)
	}
	return &Segmenter{frameDuration: frameDuration, silenceThreshold: silenceThreshold}, nil
}

// Push feeds the decision for the next frame and reports the event it
// produced, if any.
func (s *Segmenter) Push(speech bool) (Event, bool) {
	s.frames++

	if speech {
		s.silenceRun = 0
		if s.state == Silence {
			s.state = Speaking
			return s.event(domain.SpeechStarted), true
		}
		return Event{}, false
	}

	if s.state == Silence {
		return Event{}, false
	}
	s.silenceRun++
	if time.Duration(s.silenceRun)*s.frameDuration >= s.silenceThreshold {
		s.state = Silence
		s.silenceRun = 0
		return s.event(domain.SpeechEnded), true
	}
	return Event{}, false
}

func (s *Segmenter) event(t domain.SpeechEventType) Event {
	return Event{
		Type:   t,
		Frame:  s.frames,
		Offset: time.Duration(s.frames-1) * s.frameDuration,
	}
}

func (s *Segmenter) State() State { return s.state }

func (s *Segmenter) SilenceRun() int { return s.silenceRun }

// Frames is the number of decisions pushed so far.
func (s *Segmenter) Frames() int { return s.frames }

func (s *Segmenter) Reset() {
	s.state = Silence
	s.silenceRun = 0
	s.frames = 0
}

// Run segments a whole decision stream.
func Run(decisions []bool, frameDuration, silenceThreshold time.Duration) ([]Event, error) {
	s, err := New(frameDuration, silenceThreshold)
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, d := range decisions {
		if ev, ok := s.Push(d); ok {
			out = append(out, ev)
		}
	}
	return out, nil
}
