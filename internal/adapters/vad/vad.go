// Package vad classifies fixed-length PCM frames as speech or non-speech.
package vad

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/voicerelay/internal/core"
)

var ErrUnavailable = errors.New("vad: webrtc classifier not compiled in (cgo disabled)")

// Classifier names accepted by New.
const (
	KindWebRTC = "webrtc"
	KindEnergy = "energy"
)

// Settings selects and tunes a classifier.
type Settings struct {
	Kind            string
	Mode            int
	EnergyThreshold float64
}

// New builds a fresh classifier for one track. Instances keep state and are
// not shared between tracks.
func New(s Settings) (core.Classifier, error) {
	switch strings.ToLower(s.Kind) {
	case "", KindWebRTC:
		return NewWebRTCClassifier(s.Mode)
	case KindEnergy:
		return NewEnergyClassifier(s.EnergyThreshold), nil
	default:
		return nil, fmt.Errorf("unknown classifier %q", s.Kind)
	}
}
