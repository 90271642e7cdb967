package bridge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/rs/zerolog/log"
)

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodeWAV encodes mono 16-bit PCM as a RIFF/WAVE file.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("write WAV data: %w", err)
	}
	return buf.Bytes(), nil
}

// WAVSink writes every completed utterance to dir as
// <session>_<n>.wav, numbered per session from 1.
type WAVSink struct {
	dir        string
	sampleRate int

	mu  sync.Mutex
	seq map[string]int
}

func NewWAVSink(dir string, sampleRate int) (*WAVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("utterance dir: %w", err)
	}
	return &WAVSink{dir: dir, sampleRate: sampleRate, seq: make(map[string]int)}, nil
}

func (s *WAVSink) OnSpeechEvent(e domain.SpeechEvent) {
	if e.Type != domain.SpeechEnded || len(e.Audio) == 0 {
		return
	}
	s.mu.Lock()
	s.seq[e.SessionID]++
	n := s.seq[e.SessionID]
	s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf("%s_%04d.wav", e.SessionID, n))
	if err := s.write(path, e.Audio); err != nil {
		log.Error().Err(err).Str("module", "bridge").Str("session_id", e.SessionID).Msg("write utterance")
		return
	}
	log.Debug().Str("module", "bridge").Str("path", path).Int("samples", len(e.Audio)).Msg("utterance written")
}

func (s *WAVSink) write(path string, pcm []int16) error {
	data, err := EncodeWAV(pcm, s.sampleRate)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *WAVSink) OnSessionEnded(sessionID string, _ error) {
	s.mu.Lock()
	delete(s.seq, sessionID)
	s.mu.Unlock()
}
