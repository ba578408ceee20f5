package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/adapters/rtc"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/protocol"
)

// handleRelay forwards offer/answer/ice to a peer in the sender's room.
func (ctl *SignalWSController) handleRelay(s *peerSession, in *protocol.Inbound) {
	if !s.joined {
		ctl.sendError(s.conn, protocol.ReasonNotJoined)
		return
	}
	r, err := in.Relay()
	if err != nil || (r.Code != "" && r.Code != s.code) {
		ctl.sendError(s.conn, protocol.ReasonInvalidMessage)
		return
	}

	if ctl.opts.ValidateSDP {
		if r.Type == protocol.TypeICE {
			err = rtc.ValidateCandidate(r.Payload)
		} else {
			err = rtc.ValidateSDP(string(r.Type), r.Payload)
		}
		if err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("type", string(r.Type)).Msg("rejected payload")
			ctl.sendError(s.conn, protocol.ReasonInvalidMessage)
			return
		}
	}

	ctl.Orch.Relay(s.code, s.peer, r)
}
