package rtc

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOffer(t *testing.T) (*webrtc.PeerConnection, webrtc.SessionDescription) {
	t.Helper()
	offerer, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = offerer.Close() })

	_, err = offerer.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	require.NoError(t, err)

	offer, err := offerer.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, offerer.SetLocalDescription(offer))
	return offerer, *offerer.LocalDescription()
}

func TestApplyOfferAndCreateAnswer(t *testing.T) {
	offerer, offer := newOffer(t)

	conn, err := NewWebRTCConnection(webrtc.Configuration{}, "sess-1")
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Start(context.Background()))

	answer, err := conn.ApplyOfferAndCreateAnswer(offer)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	assert.Contains(t, answer.SDP, "m=audio")

	assert.NoError(t, offerer.SetRemoteDescription(*answer))
}

func TestApplyOffer_Malformed(t *testing.T) {
	conn, err := NewWebRTCConnection(webrtc.Configuration{}, "sess-2")
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Start(context.Background()))

	_, err = conn.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  "definitely not sdp",
	})
	assert.Error(t, err)
}

func TestApplyOffer_RequiresStart(t *testing.T) {
	_, offer := newOffer(t)
	conn, err := NewWebRTCConnection(webrtc.Configuration{}, "sess-3")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ApplyOfferAndCreateAnswer(offer)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestClose_RunsOnClosedOnce(t *testing.T) {
	conn, err := NewWebRTCConnection(webrtc.Configuration{}, "sess-4")
	require.NoError(t, err)
	require.NoError(t, conn.Start(context.Background()))

	var calls atomic.Int32
	conn.OnClosed(func() { calls.Add(1) })

	assert.False(t, conn.IsClosed())
	conn.Close()
	conn.Close()
	assert.True(t, conn.IsClosed())
	assert.Equal(t, int32(1), calls.Load())
}

func TestStart_ContextCancelClosesConnection(t *testing.T) {
	conn, err := NewWebRTCConnection(webrtc.Configuration{}, "sess-5")
	require.NoError(t, err)

	closed := make(chan struct{})
	conn.OnClosed(func() { close(closed) })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, conn.Start(ctx))
	cancel()

	<-closed
	assert.True(t, conn.IsClosed())
}

func TestDefaultWebRTCConfig(t *testing.T) {
	cfg := DefaultWebRTCConfig()
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)

	cfg = DefaultWebRTCConfig("stun:a", "turn:b")
	assert.Equal(t, []string{"stun:a", "turn:b"}, cfg.ICEServers[0].URLs)
}
