package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaConnection is the answering side of one negotiated peer connection.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	IsClosed() bool
	// ApplyOfferAndCreateAnswer sets the remote offer and the local answer.
	// Candidates are trickled through OnICECandidate afterwards.
	ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback invoked once per remote track; ctx ends with the connection.
	OnTrack(func(ctx context.Context, track Track))
	// OnClosed sets a callback for media session cleanup.
	OnClosed(func())
}

// MediaFactory opens a fresh MediaConnection for one negotiation.
type MediaFactory func(sessionID string) (MediaConnection, error)
