package orch

import (
	"context"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/core"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) Join(ctx context.Context, code domain.CallCode, peer domain.PeerID, conn core.SignalConnection) error {
	return o.Rooms.Join(ctx, code, peer, conn)
}

func (o *Orchestrator) Leave(code domain.CallCode, peer domain.PeerID, conn core.SignalConnection) {
	o.Rooms.Leave(code, peer, conn)
}

// Relay stamps the sender and forwards to the target in the same room.
func (o *Orchestrator) Relay(code domain.CallCode, from domain.PeerID, r protocol.Relay) {
	frame, err := protocol.Forward(r, code, from)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("code", string(code)).Msg("encode relay")
		return
	}
	if !o.Rooms.Relay(code, from, r.Target, frame) {
		log.Debug().Str("module", "orch").
			Str("code", string(code)).
			Str("from", string(from)).
			Str("target", string(r.Target)).
			Msg("relay dropped")
	}
}
