package vad

import "math"

// DefaultEnergyThreshold is the normalized RMS above which a frame counts
// as speech.
const DefaultEnergyThreshold = 0.02

// EnergyClassifier is a stateless RMS gate. It needs no native library and
// serves builds without cgo.
type EnergyClassifier struct {
	Threshold float64
}

func NewEnergyClassifier(threshold float64) *EnergyClassifier {
	if threshold <= 0 {
		threshold = DefaultEnergyThreshold
	}
	return &EnergyClassifier{Threshold: threshold}
}

func (c *EnergyClassifier) IsSpeech(pcm []int16, _ int) (bool, error) {
	return RMS(pcm) >= c.Threshold, nil
}

// RMS returns the root-mean-square level of pcm normalized to [0, 1].
func RMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
