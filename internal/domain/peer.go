package domain

import (
	"errors"
	"time"
)

const MaxPeerIDLen = 64

var (
	ErrInvalidPeerID = errors.New("invalid peer id")
	ErrPeerIDTaken   = errors.New("peer id taken")
	ErrCallNotActive = errors.New("call not active")
)

type PeerID string

// ParsePeerID accepts 1..MaxPeerIDLen printable ASCII characters.
func ParsePeerID(s string) (PeerID, error) {
	if len(s) == 0 || len(s) > MaxPeerIDLen {
		return "", ErrInvalidPeerID
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return "", ErrInvalidPeerID
		}
	}
	return PeerID(s), nil
}

// Peer is one signaling participant's meta. The connection handle lives in the room.
type Peer struct {
	ID       PeerID
	JoinedAt time.Time
}
