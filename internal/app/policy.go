package app

import (
	"fmt"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
)

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a peer whose outbound queue is full.
type Policy interface {
	OnBackPressure(code domain.CallCode, peer domain.PeerID) BackpressureAction
}

// SimplePolicy evicts slow peers.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.CallCode, domain.PeerID) BackpressureAction {
	return KickMember
}

// TolerantPolicy drops the frame and keeps the peer.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(domain.CallCode, domain.PeerID) BackpressureAction {
	return DropFrame
}

// PolicyByName maps the backpressure config value to a Policy: "kick" (or
// empty) and "drop".
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return TolerantPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown backpressure policy %q", name)
}
