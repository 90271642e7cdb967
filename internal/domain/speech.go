package domain

import "time"

type SpeechEventType int

const (
	SpeechStarted SpeechEventType = iota + 1
	SpeechEnded
)

func (t SpeechEventType) String() string {
	switch t {
	case SpeechStarted:
		return "SpeechStarted"
	case SpeechEnded:
		return "SpeechEnded"
	default:
		return "Unknown"
	}
}

// SpeechEvent is an utterance boundary for one media session.
// Frame is the 1-based index of the classified frame that produced it and
// Offset is the start of that frame relative to the first classified frame.
// Audio is only set on SpeechEnded and holds the utterance PCM.
type SpeechEvent struct {
	SessionID string
	Type      SpeechEventType
	Frame     int
	Offset    time.Duration
	At        time.Time
	Audio     []int16
}

// AudioFormat describes the decoded PCM: mono, 16-bit signed.
type AudioFormat struct {
	SampleRate    int
	FrameDuration time.Duration
}

func (f AudioFormat) SamplesPerFrame() int {
	return f.SampleRate * int(f.FrameDuration/time.Millisecond) / 1000
}

// Duration of n samples at this rate.
func (f AudioFormat) Duration(samples int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
