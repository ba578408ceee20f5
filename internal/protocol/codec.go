package protocol

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
)

var ErrInvalidMessage = errors.New("invalid message")

var validate = validator.New(validator.WithRequiredStructEnabled())

type envelope struct {
	Type MessageType `validate:"required,oneof=join offer answer ice leave ping"`
}

type joinFields struct {
	Code   string `validate:"required,len=6,number"`
	PeerID string `validate:"required,max=64,printascii"`
}

type relayFields struct {
	Code    string          `validate:"omitempty,len=6,number"`
	Target  string          `validate:"required,max=64,printascii"`
	Payload json.RawMessage `validate:"required"`
}

// Join is a validated join request.
type Join struct {
	Code   domain.CallCode
	PeerID domain.PeerID
}

// Relay is a validated offer/answer/ice. Code is empty when the client omitted it.
type Relay struct {
	Type    MessageType
	Code    domain.CallCode
	Target  domain.PeerID
	Payload json.RawMessage
}

// Decode parses a client frame and checks its type discriminator.
func Decode(data []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := validate.Struct(envelope{Type: in.Type}); err != nil {
		return nil, fmt.Errorf("%w: type %q", ErrInvalidMessage, in.Type)
	}
	return &in, nil
}

func (in *Inbound) Join() (Join, error) {
	f := joinFields{Code: in.Code, PeerID: in.PeerID}
	if err := validate.Struct(f); err != nil {
		return Join{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	code, err := domain.ParseCallCode(f.Code)
	if err != nil {
		return Join{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	peerID, err := domain.ParsePeerID(f.PeerID)
	if err != nil {
		return Join{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return Join{Code: code, PeerID: peerID}, nil
}

// Relay extracts the payload of an offer, answer or ice message.
func (in *Inbound) Relay() (Relay, error) {
	f := relayFields{Code: in.Code, Target: in.Target, Payload: in.payload()}
	if err := validate.Struct(f); err != nil {
		return Relay{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	target, err := domain.ParsePeerID(f.Target)
	if err != nil {
		return Relay{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return Relay{
		Type:    in.Type,
		Code:    domain.CallCode(f.Code),
		Target:  target,
		Payload: f.Payload,
	}, nil
}

func (in *Inbound) payload() json.RawMessage {
	switch in.Type {
	case TypeICE:
		return in.Candidate
	case TypeOffer:
		if len(in.SDP) == 0 {
			return in.Offer
		}
	case TypeAnswer:
		if len(in.SDP) == 0 {
			return in.Answer
		}
	default:
		return nil
	}
	return in.SDP
}

// Encode marshals an outbound message.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Forward builds the frame delivered to the relay target.
func Forward(r Relay, code domain.CallCode, from domain.PeerID) ([]byte, error) {
	out := Relayed{
		Type:   r.Type,
		Code:   string(code),
		From:   string(from),
		Target: string(r.Target),
	}
	switch r.Type {
	case TypeICE:
		out.Candidate = r.Payload
	case TypeOffer:
		out.SDP, out.Offer = r.Payload, r.Payload
	case TypeAnswer:
		out.SDP, out.Answer = r.Payload, r.Payload
	}
	return Encode(out)
}
