package rtc

import (
	"io"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReader struct {
	packets []*rtp.Packet
}

func (r *scriptedReader) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	if len(r.packets) == 0 {
		return nil, nil, io.EOF
	}
	pkt := r.packets[0]
	r.packets = r.packets[1:]
	return pkt, nil, nil
}

func TestTrackSource_SkipsEmptyPayloads(t *testing.T) {
	src := &TrackSource{
		src: &scriptedReader{packets: []*rtp.Packet{
			{Header: rtp.Header{SequenceNumber: 1}, Payload: []byte{0xaa}},
			{Header: rtp.Header{SequenceNumber: 2, Padding: true}},
			{Header: rtp.Header{SequenceNumber: 3}, Payload: []byte{0xbb, 0xcc}},
		}},
		kind: webrtc.RTPCodecTypeAudio,
	}

	f, err := src.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa}, f)

	f, err = src.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xbb, 0xcc}, f)

	_, err = src.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestTrackSource_IsAudio(t *testing.T) {
	assert.True(t, (&TrackSource{kind: webrtc.RTPCodecTypeAudio}).IsAudio())
	assert.True(t, (&TrackSource{mime: webrtc.MimeTypeOpus}).IsAudio())
	assert.False(t, (&TrackSource{kind: webrtc.RTPCodecTypeVideo, mime: webrtc.MimeTypeVP8}).IsAudio())
}

// stoppableReader blocks in ReadRTP until Stop is called.
type stoppableReader struct {
	stopped chan struct{}
	stops   int
}

func (r *stoppableReader) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	<-r.stopped
	return nil, nil, io.EOF
}

func (r *stoppableReader) Stop() error {
	r.stops++
	close(r.stopped)
	return nil
}

func TestTrackSource_CloseUnblocksRead(t *testing.T) {
	r := &stoppableReader{stopped: make(chan struct{})}
	src := &TrackSource{src: r, recv: r, kind: webrtc.RTPCodecTypeAudio}

	errc := make(chan error, 1)
	go func() {
		_, err := src.ReadFrame()
		errc <- err
	}()

	src.Close()
	src.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("read still blocked after Close")
	}
	assert.Equal(t, 1, r.stops)
}

func TestTrackSource_CloseWithoutReceiver(t *testing.T) {
	src := &TrackSource{src: &scriptedReader{}}
	assert.NotPanics(t, src.Close)
}
