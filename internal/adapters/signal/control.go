package signal

import "github.com/maloy23073-dotcom/PP1-telegram-bot/internal/protocol"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, protocol.PongMessage{Type: protocol.TypePong})
}
