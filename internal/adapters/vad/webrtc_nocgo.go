//go:build !cgo

package vad

type WebRTCClassifier struct{}

func NewWebRTCClassifier(int) (*WebRTCClassifier, error) { return nil, ErrUnavailable }

func (*WebRTCClassifier) IsSpeech([]int16, int) (bool, error) { return false, ErrUnavailable }
