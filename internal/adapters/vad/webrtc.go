//go:build cgo

package vad

import (
	"encoding/binary"
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// WebRTCClassifier wraps the WebRTC voice activity detector. Mode ranges
// from 0 (least aggressive) to 3 (most aggressive about filtering non-speech).
type WebRTCClassifier struct {
	vad *webrtcvad.VAD
	buf []byte
}

func NewWebRTCClassifier(mode int) (*WebRTCClassifier, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc vad: %w", err)
	}
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("webrtc vad mode %d: %w", mode, err)
	}
	return &WebRTCClassifier{vad: v}, nil
}

func (c *WebRTCClassifier) IsSpeech(pcm []int16, sampleRate int) (bool, error) {
	if !c.vad.ValidRateAndFrameLength(sampleRate, len(pcm)) {
		return false, fmt.Errorf("webrtc vad: unsupported frame of %d samples at %d Hz", len(pcm), sampleRate)
	}
	if cap(c.buf) < 2*len(pcm) {
		c.buf = make([]byte, 2*len(pcm))
	}
	buf := c.buf[:2*len(pcm)]
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return c.vad.Process(sampleRate, buf)
}
