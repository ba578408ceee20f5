// Package rtc holds WebRTC metadata helpers. The server never terminates media;
// it checks what peers send each other and tells them where STUN/TURN is.
package rtc

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pion/ice/v4"
	"github.com/pion/sdp/v3"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/config"
)

var ErrInvalidPayload = errors.New("invalid webrtc payload")

func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	}
}

// ICEServers converts and checks configured servers. Empty input yields the default.
func ICEServers(cfg []config.ICEServer) ([]webrtc.ICEServer, error) {
	out := make([]webrtc.ICEServer, 0, len(cfg))
	for _, s := range cfg {
		if len(s.URLs) == 0 {
			continue
		}
		for _, u := range s.URLs {
			if _, err := stun.ParseURI(u); err != nil {
				return nil, fmt.Errorf("ice server %q: %w", u, err)
			}
		}
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	if len(out) == 0 {
		return DefaultICEServers(), nil
	}
	return out, nil
}

// ValidateSDP accepts an SDP string or a {type,sdp} description and checks
// the body parses. kind is the relay type, "offer" or "answer".
func ValidateSDP(kind string, raw json.RawMessage) error {
	var body string
	if err := json.Unmarshal(raw, &body); err != nil {
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(raw, &desc); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if desc.Type.String() != kind {
			return fmt.Errorf("%w: %s description in %s", ErrInvalidPayload, desc.Type, kind)
		}
		body = desc.SDP
	}

	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(body)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// ValidateCandidate accepts a trickled candidate. An empty candidate string
// ends the trickle and is valid.
func ValidateCandidate(raw json.RawMessage) error {
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &ci); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if ci.Candidate == "" {
		return nil
	}
	if _, err := ice.UnmarshalCandidate(strings.TrimPrefix(ci.Candidate, "candidate:")); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
