package segment

import (
	"testing"
	"time"

	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	frame     = 20 * time.Millisecond
	threshold = 200 * time.Millisecond
)

func repeat(v bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(parts ...[]bool) []bool {
	var out []bool
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := New(0, threshold)
	assert.Error(t, err)

	_, err = New(frame, -time.Millisecond)
	assert.Error(t, err)

	s, err := New(frame, 0)
	require.NoError(t, err)
	assert.Equal(t, Silence, s.State())
}

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		input  []bool
		expect []Event
	}{
		{
			name:   "all silence",
			input:  repeat(false, 30),
			expect: nil,
		},
		{
			name:  "single speech frame then threshold silence",
			input: concat(repeat(false, 10), repeat(true, 1), repeat(false, 10)),
			expect: []Event{
				{Type: domain.SpeechStarted, Frame: 11, Offset: 200 * time.Millisecond},
				{Type: domain.SpeechEnded, Frame: 21, Offset: 400 * time.Millisecond},
			},
		},
		{
			name:  "silence one frame short of threshold",
			input: concat(repeat(true, 1), repeat(false, 9)),
			expect: []Event{
				{Type: domain.SpeechStarted, Frame: 1, Offset: 0},
			},
		},
		{
			name:  "short gap does not split utterance",
			input: concat(repeat(true, 5), repeat(false, 3), repeat(true, 5), repeat(false, 10)),
			expect: []Event{
				{Type: domain.SpeechStarted, Frame: 1, Offset: 0},
				{Type: domain.SpeechEnded, Frame: 23, Offset: 440 * time.Millisecond},
			},
		},
		{
			name:  "continued silence emits nothing further",
			input: concat(repeat(true, 2), repeat(false, 40)),
			expect: []Event{
				{Type: domain.SpeechStarted, Frame: 1, Offset: 0},
				{Type: domain.SpeechEnded, Frame: 12, Offset: 220 * time.Millisecond},
			},
		},
		{
			name:  "two utterances",
			input: concat(repeat(true, 3), repeat(false, 10), repeat(true, 1), repeat(false, 10)),
			expect: []Event{
				{Type: domain.SpeechStarted, Frame: 1, Offset: 0},
				{Type: domain.SpeechEnded, Frame: 13, Offset: 240 * time.Millisecond},
				{Type: domain.SpeechStarted, Frame: 14, Offset: 260 * time.Millisecond},
				{Type: domain.SpeechEnded, Frame: 24, Offset: 460 * time.Millisecond},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Run(tt.input, frame, threshold)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestPush_SilenceRunResetsOnSpeech(t *testing.T) {
	s, err := New(frame, threshold)
	require.NoError(t, err)

	s.Push(true)
	s.Push(false)
	s.Push(false)
	assert.Equal(t, 2, s.SilenceRun())
	assert.Equal(t, Speaking, s.State())

	_, ok := s.Push(true)
	assert.False(t, ok)
	assert.Equal(t, 0, s.SilenceRun())
}

func TestReset(t *testing.T) {
	s, err := New(frame, threshold)
	require.NoError(t, err)
	s.Push(true)
	s.Reset()

	assert.Equal(t, Silence, s.State())
	assert.Equal(t, 0, s.Frames())

	ev, ok := s.Push(true)
	require.True(t, ok)
	assert.Equal(t, 1, ev.Frame)
}

func TestZeroThresholdEndsOnFirstSilentFrame(t *testing.T) {
	got, err := Run([]bool{true, false, false}, frame, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.SpeechEnded, got[1].Type)
	assert.Equal(t, 2, got[1].Frame)
}
