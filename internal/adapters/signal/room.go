package signal

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/protocol"
)

// handleJoin binds the connection to one call room. A connection holds at most
// one membership; refused joins other than a taken peer id end the connection.
func (ctl *SignalWSController) handleJoin(ctx context.Context, s *peerSession, in *protocol.Inbound) {
	if s.joined {
		ctl.sendError(s.conn, protocol.ReasonAlreadyJoined)
		return
	}
	if !ctl.joins.Allow(s.token) {
		log.Warn().Str("module", "signal").Str("client", s.token).Msg("join rate exceeded")
		ctl.sendError(s.conn, protocol.ReasonRateLimited)
		s.conn.Close()
		return
	}

	j, err := in.Join()
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(s.conn, protocol.ReasonInvalidMessage)
		s.conn.Close()
		return
	}

	err = ctl.Orch.Join(ctx, j.Code, j.PeerID, s.conn)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPeerIDTaken):
		ctl.sendError(s.conn, protocol.ReasonPeerIDTaken)
		return
	case errors.Is(err, domain.ErrCallNotActive):
		log.Info().Str("module", "signal").Str("code", string(j.Code)).Msg("join refused, call not active")
		ctl.sendError(s.conn, protocol.ReasonNotActive)
		s.conn.Close()
		return
	default:
		log.Error().Err(err).Str("module", "signal").Str("code", string(j.Code)).Msg("join")
		ctl.sendError(s.conn, protocol.ReasonNotActive)
		s.conn.Close()
		return
	}

	s.joined, s.code, s.peer = true, j.Code, j.PeerID
	log.Info().Str("module", "signal").
		Str("client", s.token).
		Str("code", string(j.Code)).
		Str("peer", string(j.PeerID)).
		Msg("join")
}

// handleLeave exits the room; the connection stays open for another join.
func (ctl *SignalWSController) handleLeave(s *peerSession) {
	if !s.joined {
		ctl.sendError(s.conn, protocol.ReasonNotJoined)
		return
	}
	log.Info().Str("module", "signal").Str("code", string(s.code)).Str("peer", string(s.peer)).Msg("leave")
	ctl.leaveRoom(s)
}

func (ctl *SignalWSController) leaveRoom(s *peerSession) {
	if !s.joined {
		return
	}
	ctl.Orch.Leave(s.code, s.peer, s.conn)
	s.joined, s.code, s.peer = false, "", ""
}
