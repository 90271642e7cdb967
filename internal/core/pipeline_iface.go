package core

import "github.com/dkeye/voicerelay/internal/domain"

// FrameSource yields encoded frames in arrival order. Any error ends the stream.
type FrameSource interface {
	ReadFrame() ([]byte, error)
}

// Track is one inbound remote media track. Close stops the underlying
// receiver so a blocked ReadFrame returns.
type Track interface {
	FrameSource
	ID() string
	MimeType() string
	IsAudio() bool
	Close()
}

// Decoder turns one encoded frame into exactly samples PCM samples.
type Decoder interface {
	Decode(encoded []byte, samples int) ([]int16, error)
}

// Classifier makes a per-frame speech decision.
type Classifier interface {
	IsSpeech(pcm []int16, sampleRate int) (bool, error)
}

// EventSink is the boundary to the agent bridge.
type EventSink interface {
	OnSpeechEvent(domain.SpeechEvent)
	OnSessionEnded(sessionID string, err error)
}
