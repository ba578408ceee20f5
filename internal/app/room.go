package app

import (
	"sync"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/core"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
)

type member struct {
	peer domain.Peer
	conn core.SignalConnection
}

// room is one call's live membership. mu guards everything below it; relays
// take it shared, membership changes and broadcasts take it exclusively.
type room struct {
	code domain.CallCode

	mu      sync.RWMutex
	closed  bool
	members map[domain.PeerID]*member
	order   []domain.PeerID
}

func newRoom(code domain.CallCode) *room {
	return &room{code: code, members: make(map[domain.PeerID]*member)}
}

// sendFailure is an undelivered frame, handled after the room lock is released.
type sendFailure struct {
	peer domain.PeerID
	conn core.SignalConnection
	err  error
}

func (r *room) add(p domain.Peer, conn core.SignalConnection) {
	r.members[p.ID] = &member{peer: p, conn: conn}
	r.order = append(r.order, p.ID)
}

func (r *room) remove(id domain.PeerID) {
	delete(r.members, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// peerIDs returns members in join order, except skip.
func (r *room) peerIDs(skip domain.PeerID) []domain.PeerID {
	out := make([]domain.PeerID, 0, len(r.order))
	for _, id := range r.order {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}

// broadcastLocked sends frame to every member but skip. Caller holds mu.
func (r *room) broadcastLocked(skip domain.PeerID, frame core.Frame) []sendFailure {
	var fails []sendFailure
	for _, id := range r.order {
		if id == skip {
			continue
		}
		m := r.members[id]
		if err := m.conn.TrySend(frame); err != nil {
			fails = append(fails, sendFailure{peer: id, conn: m.conn, err: err})
		}
	}
	return fails
}

// drainLocked empties the room and returns its connections in join order.
func (r *room) drainLocked() []core.SignalConnection {
	conns := make([]core.SignalConnection, 0, len(r.order))
	for _, id := range r.order {
		conns = append(conns, r.members[id].conn)
	}
	r.members = make(map[domain.PeerID]*member)
	r.order = nil
	r.closed = true
	return conns
}
