//go:build cgo

package codec

import (
	"fmt"

	"github.com/hraban/opus"
)

// OpusDecoder wraps one libopus decoder. It keeps inter-packet state, so each
// track needs its own instance.
type OpusDecoder struct {
	dec        *opus.Decoder
	sampleRate int
	buf        []int16
}

func NewOpusDecoder(sampleRate int) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("opus decoder at %d Hz: %w", sampleRate, err)
	}
	return &OpusDecoder{
		dec:        dec,
		sampleRate: sampleRate,
		buf:        make([]int16, sampleRate*maxFrameMillis/1000),
	}, nil
}

// Decode returns exactly samples PCM samples for one encoded packet.
func (d *OpusDecoder) Decode(encoded []byte, samples int) ([]int16, error) {
	n, err := d.dec.Decode(encoded, d.buf)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	out := make([]int16, n)
	copy(out, d.buf[:n])
	return fit(out, samples), nil
}
