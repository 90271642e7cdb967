//go:build !cgo

package codec

// OpusDecoder is unavailable without cgo.
type OpusDecoder struct{}

func NewOpusDecoder(int) (*OpusDecoder, error) { return nil, ErrUnavailable }

func (*OpusDecoder) Decode([]byte, int) ([]int16, error) { return nil, ErrUnavailable }
