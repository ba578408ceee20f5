package core

import (
	"context"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
)

// ActivityGate is the read-only view the room manager has of call lifecycle.
type ActivityGate interface {
	IsActiveNow(ctx context.Context, code domain.CallCode) bool
}

type RoomInfo struct {
	Code      domain.CallCode `json:"code"`
	PeerCount int             `json:"peer_count"`
}
