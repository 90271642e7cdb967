package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is one encoded signaling message.
type Frame []byte

// SignalConnection abstracts a signaling transport endpoint.
// TrySend never blocks; owned by the adapter, the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
