package app

import (
	"fmt"
	"strings"

	"github.com/dkeye/voicerelay/internal/domain"
)

type JoinAction int

const (
	ReplaceExisting JoinAction = iota
	RejectJoin
)

// JoinPolicy decides what happens when an id that is already registered
// joins again from another connection.
type JoinPolicy interface {
	OnDuplicateJoin(id domain.PeerID) JoinAction
}

// ReplacePolicy makes the last registration win.
type ReplacePolicy struct{}

func (ReplacePolicy) OnDuplicateJoin(domain.PeerID) JoinAction { return ReplaceExisting }

// RejectPolicy keeps the first registration until it leaves.
type RejectPolicy struct{}

func (RejectPolicy) OnDuplicateJoin(domain.PeerID) JoinAction { return RejectJoin }

// PolicyByName resolves a configured policy name, ignoring case.
func PolicyByName(name string) (JoinPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "replace":
		return ReplacePolicy{}, nil
	case "reject":
		return RejectPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown join policy %q", name)
	}
}
