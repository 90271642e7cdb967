// Package domain contains the wire and pipeline entities, with no transport logic.
package domain

import (
	"errors"
	"strings"
)

const MaxPeerIDLen = 100

var (
	ErrPeerIDEmpty   = errors.New("peer id empty")
	ErrPeerIDTooLong = errors.New("peer id too long")
)

// PeerID addresses one participant in signaling.
type PeerID string

func ParsePeerID(raw string) (PeerID, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", ErrPeerIDEmpty
	}
	if len(id) > MaxPeerIDLen {
		return "", ErrPeerIDTooLong
	}
	return PeerID(id), nil
}
