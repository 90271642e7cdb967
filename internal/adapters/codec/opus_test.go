//go:build cgo

package codec

import (
	"math"
	"testing"

	"github.com/hraban/opus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTone(t *testing.T, rate, samples int) []byte {
	t.Helper()
	enc, err := opus.NewEncoder(rate, 1, opus.AppVoIP)
	require.NoError(t, err)

	pcm := make([]int16, samples)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	out := make([]byte, 1500)
	n, err := enc.Encode(pcm, out)
	require.NoError(t, err)
	return out[:n]
}

func TestOpusDecoder_FrameLength(t *testing.T) {
	const rate, samples = 48000, 960
	dec, err := NewOpusDecoder(rate)
	require.NoError(t, err)

	pcm, err := dec.Decode(encodeTone(t, rate, samples), samples)
	require.NoError(t, err)
	assert.Len(t, pcm, samples)
}

func TestOpusDecoder_EmptyPacket(t *testing.T) {
	dec, err := NewOpusDecoder(48000)
	require.NoError(t, err)

	_, err = dec.Decode(nil, 960)
	assert.Error(t, err)
}

func TestNewOpusDecoder_BadRate(t *testing.T) {
	_, err := NewOpusDecoder(44100)
	assert.Error(t, err)
}
