package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/core"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/metrics"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/protocol"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// RoomManager holds one room per call code with at least one joined peer.
//
// Lock order is room -> manager. mu is never held while waiting on a room.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.CallCode]*room

	gate    core.ActivityGate
	policy  Policy
	clock   core.Clock
	metrics *metrics.Metrics
}

func NewRoomManager(gate core.ActivityGate, policy Policy, clock core.Clock, m *metrics.Metrics) *RoomManager {
	if policy == nil {
		policy = SimplePolicy{}
	}
	if clock == nil {
		clock = core.RealClock{}
	}
	return &RoomManager{
		rooms:   make(map[domain.CallCode]*room),
		gate:    gate,
		policy:  policy,
		clock:   clock,
		metrics: m,
	}
}

func (f *RoomManager) getOrCreate(code domain.CallCode) *room {
	f.mu.RLock()
	rm, ok := f.rooms[code]
	f.mu.RUnlock()
	if ok {
		return rm
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if rm, ok = f.rooms[code]; ok {
		return rm
	}
	rm = newRoom(code)
	f.rooms[code] = rm
	f.metrics.RoomOpened()
	log.Debug().Str("module", "app.rooms").Str("code", string(code)).Msg("room opened")
	return rm
}

func (f *RoomManager) get(code domain.CallCode) *room {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rooms[code]
}

// unlinkLocked drops an emptied room from the map. Caller holds rm.mu.
func (f *RoomManager) unlinkLocked(rm *room) {
	rm.closed = true
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[rm.code] == rm {
		delete(f.rooms, rm.code)
		f.metrics.RoomClosed()
		log.Debug().Str("module", "app.rooms").Str("code", string(rm.code)).Msg("room removed")
	}
}

// Join admits peerID into the call's room. The newcomer receives the ids
// already present in join order, then everybody else learns about it. Both
// happen under the room lock so no peer misses or double-counts a join.
func (f *RoomManager) Join(ctx context.Context, code domain.CallCode, peerID domain.PeerID, conn core.SignalConnection) error {
	if !f.gate.IsActiveNow(ctx, code) {
		return domain.ErrCallNotActive
	}
	joined, err := protocol.Encode(protocol.NewPeerJoined(peerID))
	if err != nil {
		return fmt.Errorf("encode new_peer: %w", err)
	}

	for {
		rm := f.getOrCreate(code)
		rm.mu.Lock()
		if rm.closed {
			// lost a race with the last leave or a force close
			rm.mu.Unlock()
			continue
		}
		// expiry could have landed between the first check and the lock
		if !f.gate.IsActiveNow(ctx, code) {
			if len(rm.members) == 0 {
				f.unlinkLocked(rm)
			}
			rm.mu.Unlock()
			return domain.ErrCallNotActive
		}
		if _, dup := rm.members[peerID]; dup {
			rm.mu.Unlock()
			return domain.ErrPeerIDTaken
		}

		others := rm.peerIDs(peerID)
		snapshot, err := protocol.Encode(protocol.NewPeers(code, others))
		if err != nil {
			if len(rm.members) == 0 {
				f.unlinkLocked(rm)
			}
			rm.mu.Unlock()
			return fmt.Errorf("encode peers: %w", err)
		}
		rm.add(domain.Peer{ID: peerID, JoinedAt: f.clock.Now()}, conn)
		f.metrics.PeerJoined()

		var fails []sendFailure
		if err := conn.TrySend(snapshot); err != nil {
			fails = append(fails, sendFailure{peer: peerID, conn: conn, err: err})
		}
		fails = append(fails, rm.broadcastLocked(peerID, joined)...)
		rm.mu.Unlock()

		log.Info().Str("module", "app.rooms").
			Str("code", string(code)).
			Str("peer", string(peerID)).
			Int("others", len(others)).
			Msg("peer joined")
		f.handleFailures(code, fails)
		return nil
	}
}

// Leave removes peerID if it is still bound to conn and tells the rest of the
// room. A nil conn matches any binding. Returns false if nothing was removed.
func (f *RoomManager) Leave(code domain.CallCode, peerID domain.PeerID, conn core.SignalConnection) bool {
	rm := f.get(code)
	if rm == nil {
		return false
	}
	left, err := protocol.Encode(protocol.NewPeerLeft(peerID))
	if err != nil {
		log.Error().Err(err).Str("module", "app.rooms").Msg("encode peer_left")
		return false
	}

	rm.mu.Lock()
	m, ok := rm.members[peerID]
	if !ok || (conn != nil && m.conn != conn) {
		rm.mu.Unlock()
		return false
	}
	rm.remove(peerID)
	f.metrics.PeerLeft()
	fails := rm.broadcastLocked(peerID, left)
	if len(rm.members) == 0 {
		f.unlinkLocked(rm)
	}
	rm.mu.Unlock()

	log.Info().Str("module", "app.rooms").Str("code", string(code)).Str("peer", string(peerID)).Msg("peer left")
	f.handleFailures(code, fails)
	return true
}

// Relay hands an already stamped frame to target. Frames from peers that are
// not members, or for targets that are not, are dropped.
func (f *RoomManager) Relay(code domain.CallCode, from, target domain.PeerID, frame core.Frame) bool {
	rm := f.get(code)
	if rm == nil {
		f.metrics.RelayDrop()
		return false
	}

	rm.mu.RLock()
	_, fromOK := rm.members[from]
	to, toOK := rm.members[target]
	if !fromOK || !toOK || from == target {
		rm.mu.RUnlock()
		f.metrics.RelayDrop()
		return false
	}
	err := to.conn.TrySend(frame)
	conn := to.conn
	rm.mu.RUnlock()

	if err != nil {
		f.handleFailures(code, []sendFailure{{peer: target, conn: conn, err: err}})
		return false
	}
	return true
}

// ForceClose tells every peer the room is closed, closes their connections and
// forgets the room. No-op without a live room.
func (f *RoomManager) ForceClose(code domain.CallCode) bool {
	f.mu.Lock()
	rm, ok := f.rooms[code]
	if ok {
		delete(f.rooms, code)
		f.metrics.RoomClosed()
	}
	f.mu.Unlock()
	if !ok {
		return false
	}

	closed, err := protocol.Encode(protocol.NewRoomClosed(code))
	if err != nil {
		log.Error().Err(err).Str("module", "app.rooms").Msg("encode room_closed")
	}

	rm.mu.Lock()
	conns := rm.drainLocked()
	rm.mu.Unlock()

	var wg conc.WaitGroup
	for _, c := range conns {
		wg.Go(func() {
			if closed != nil {
				_ = c.TrySend(closed)
			}
			c.Close()
		})
		f.metrics.PeerLeft()
	}
	wg.Wait()

	log.Info().Str("module", "app.rooms").Str("code", string(code)).Int("peers", len(conns)).Msg("room force closed")
	return true
}

// handleFailures is the single disconnect path for undeliverable frames.
func (f *RoomManager) handleFailures(code domain.CallCode, fails []sendFailure) {
	for _, fl := range fails {
		action := KickMember
		if errors.Is(fl.err, core.ErrBackpressure) {
			action = f.policy.OnBackPressure(code, fl.peer)
		}
		if action != KickMember {
			continue
		}
		log.Warn().Err(fl.err).Str("module", "app.rooms").
			Str("code", string(code)).
			Str("peer", string(fl.peer)).
			Msg("evicting peer")
		if f.Leave(code, fl.peer, fl.conn) {
			f.metrics.PeerEvicted()
		}
		fl.conn.Close()
	}
}

func (f *RoomManager) HasRoom(code domain.CallCode) bool {
	return f.get(code) != nil
}

// PeerIDs returns the room's members in join order.
func (f *RoomManager) PeerIDs(code domain.CallCode) []domain.PeerID {
	rm := f.get(code)
	if rm == nil {
		return nil
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.peerIDs("")
}

func (f *RoomManager) List() []core.RoomInfo {
	f.mu.RLock()
	rooms := make([]*room, 0, len(f.rooms))
	for _, rm := range f.rooms {
		rooms = append(rooms, rm)
	}
	f.mu.RUnlock()

	out := make([]core.RoomInfo, 0, len(rooms))
	for _, rm := range rooms {
		rm.mu.RLock()
		out = append(out, core.RoomInfo{Code: rm.code, PeerCount: len(rm.members)})
		rm.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
