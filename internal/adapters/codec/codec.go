// Package codec decodes inbound RTP payloads to 16-bit mono PCM.
package codec

import "errors"

// ErrUnavailable is returned when the binary was built without the native
// codec library.
var ErrUnavailable = errors.New("codec: opus support not compiled in (cgo disabled)")

// maxFrameMillis bounds a single Opus packet.
const maxFrameMillis = 120

// fit pads with silence or truncates pcm to exactly n samples, so every
// decoded frame has the length the classifier expects.
func fit(pcm []int16, n int) []int16 {
	if n <= 0 || len(pcm) == n {
		return pcm
	}
	if len(pcm) > n {
		return pcm[:n]
	}
	out := make([]int16, n)
	copy(out, pcm)
	return out
}
