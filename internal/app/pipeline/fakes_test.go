package pipeline

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/dkeye/voicerelay/internal/domain"
)

const (
	frameSpeech   byte = 1
	frameSilence  byte = 0
	frameCorrupt  byte = 0xfe
	frameConfused byte = 0xfd
)

var testFormat = domain.AudioFormat{SampleRate: 16000, FrameDuration: 20 * time.Millisecond}

var errCorrupt = errors.New("corrupt frame")

// fakeDecoder expands the first byte of each frame into a constant PCM frame.
type fakeDecoder struct{}

func (fakeDecoder) Decode(encoded []byte, samples int) ([]int16, error) {
	if len(encoded) == 0 || encoded[0] == frameCorrupt {
		return nil, errCorrupt
	}
	pcm := make([]int16, samples)
	for i := range pcm {
		pcm[i] = int16(encoded[0])
	}
	return pcm, nil
}

// fakeClassifier calls any non-zero PCM speech.
type fakeClassifier struct{}

func (fakeClassifier) IsSpeech(pcm []int16, _ int) (bool, error) {
	if len(pcm) > 0 && pcm[0] == int16(frameConfused) {
		return true, errors.New("classifier failure")
	}
	return len(pcm) > 0 && pcm[0] != 0, nil
}

type endedSession struct {
	id  string
	err error
}

type collectingSink struct {
	mu     sync.Mutex
	events []domain.SpeechEvent
	ended  chan endedSession
}

func newCollectingSink() *collectingSink {
	return &collectingSink{ended: make(chan endedSession, 8)}
}

func (s *collectingSink) OnSpeechEvent(ev domain.SpeechEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *collectingSink) OnSessionEnded(id string, err error) {
	s.ended <- endedSession{id: id, err: err}
}

func (s *collectingSink) Events() []domain.SpeechEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SpeechEvent(nil), s.events...)
}

// fakeTrack replays frames then reports io.EOF, or blocks until closed.
type fakeTrack struct {
	id     string
	audio  bool
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeTrack(id string, frames ...[]byte) *fakeTrack {
	ch := make(chan []byte, len(frames))
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	return &fakeTrack{id: id, audio: true, frames: ch, closed: make(chan struct{})}
}

func newBlockingTrack(id string) *fakeTrack {
	return &fakeTrack{id: id, audio: true, frames: make(chan []byte), closed: make(chan struct{})}
}

func (t *fakeTrack) ReadFrame() ([]byte, error) {
	select {
	case f, ok := <-t.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-t.closed:
		return nil, io.ErrClosedPipe
	}
}

func (t *fakeTrack) Close() { t.once.Do(func() { close(t.closed) }) }

func (t *fakeTrack) IsClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *fakeTrack) ID() string       { return t.id }
func (t *fakeTrack) MimeType() string { return "audio/opus" }
func (t *fakeTrack) IsAudio() bool    { return t.audio }

func frames(kind byte, n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{kind}
	}
	return out
}

func sequence(parts ...[][]byte) [][]byte {
	var out [][]byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
