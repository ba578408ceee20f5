package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/protocol"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(ctl.opts.WriteWait))
			return
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				c.Close()
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, s *peerSession) {
	defer func() {
		log.Info().Str("module", "signal").Str("client", s.token).Msg("readPump closing")
		ctl.leaveRoom(s)
		s.conn.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	c := s.conn.conn
	c.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("client", s.token).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("client", s.token).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(ctx, s, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, s *peerSession, data []byte) {
	if !s.limiter.Allow() {
		log.Warn().Str("module", "signal").Str("client", s.token).Msg("message rate exceeded")
		ctl.sendError(s.conn, protocol.ReasonRateLimited)
		s.conn.Close()
		return
	}

	in, err := protocol.Decode(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("bad message")
		ctl.sendError(s.conn, protocol.ReasonInvalidMessage)
		return
	}
	ctl.metrics.SignalMessage(string(in.Type))

	switch in.Type {
	case protocol.TypeJoin:
		ctl.handleJoin(ctx, s, in)
	case protocol.TypeLeave:
		ctl.handleLeave(s)
	case protocol.TypePing:
		ctl.handlePing(s.conn)
	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICE:
		ctl.handleRelay(s, in)
	default:
		log.Warn().Str("module", "signal").Str("type", string(in.Type)).Msg("unknown signal")
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, reason string) {
	ctl.sendJSON(c, protocol.NewError(reason))
}
