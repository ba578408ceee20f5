// Package protocol defines the JSON signaling messages exchanged with browser peers.
package protocol

import (
	json "github.com/goccy/go-json"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
)

type MessageType string

const (
	TypeJoin   MessageType = "join"
	TypeOffer  MessageType = "offer"
	TypeAnswer MessageType = "answer"
	TypeICE    MessageType = "ice"
	TypeLeave  MessageType = "leave"
	TypePing   MessageType = "ping"

	TypePeers      MessageType = "peers"
	TypeNewPeer    MessageType = "new_peer"
	TypePeerLeft   MessageType = "peer_left"
	TypeRoomClosed MessageType = "room_closed"
	TypeError      MessageType = "error"
	TypePong       MessageType = "pong"
)

// Error reasons sent to peers. The set is fixed.
const (
	ReasonInvalidMessage = "invalid_message"
	ReasonNotActive      = "not_active"
	ReasonPeerIDTaken    = "peer_id_taken"
	ReasonAlreadyJoined  = "already_joined"
	ReasonNotJoined      = "not_joined"
	ReasonRateLimited    = "rate_limited"
)

// Inbound is the union of every client message. Offer and Answer are the
// legacy names of the sdp payload.
type Inbound struct {
	Type      MessageType     `json:"type"`
	Code      string          `json:"code,omitempty"`
	PeerID    string          `json:"peer_id,omitempty"`
	Target    string          `json:"target,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type PeersMessage struct {
	Type  MessageType `json:"type"`
	Code  string      `json:"code"`
	Peers []string    `json:"peers"`
}

type PeerEvent struct {
	Type   MessageType `json:"type"`
	PeerID string      `json:"peer_id"`
}

type RoomClosedMessage struct {
	Type MessageType `json:"type"`
	Code string      `json:"code"`
}

type ErrorMessage struct {
	Type   MessageType `json:"type"`
	Reason string      `json:"reason"`
}

type PongMessage struct {
	Type MessageType `json:"type"`
}

// Relayed is an offer/answer/ice forwarded to its target, stamped with the
// sender's peer id. Offer and Answer mirror SDP for web clients that read
// the description from the legacy field.
type Relayed struct {
	Type      MessageType     `json:"type"`
	Code      string          `json:"code"`
	From      string          `json:"from"`
	Target    string          `json:"target"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func NewPeers(code domain.CallCode, ids []domain.PeerID) PeersMessage {
	peers := make([]string, 0, len(ids))
	for _, id := range ids {
		peers = append(peers, string(id))
	}
	return PeersMessage{Type: TypePeers, Code: string(code), Peers: peers}
}

func NewPeerJoined(id domain.PeerID) PeerEvent {
	return PeerEvent{Type: TypeNewPeer, PeerID: string(id)}
}

func NewPeerLeft(id domain.PeerID) PeerEvent {
	return PeerEvent{Type: TypePeerLeft, PeerID: string(id)}
}

func NewRoomClosed(code domain.CallCode) RoomClosedMessage {
	return RoomClosedMessage{Type: TypeRoomClosed, Code: string(code)}
}

func NewError(reason string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Reason: reason}
}
