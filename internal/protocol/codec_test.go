package protocol

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
)

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"explode"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Decode([]byte(`{"code":"123456"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestJoinValidation(t *testing.T) {
	in, err := Decode([]byte(`{"type":"join","code":"012345","peer_id":"p1"}`))
	require.NoError(t, err)
	j, err := in.Join()
	require.NoError(t, err)
	assert.Equal(t, domain.CallCode("012345"), j.Code)
	assert.Equal(t, domain.PeerID("p1"), j.PeerID)

	for _, raw := range []string{
		`{"type":"join","code":"12345","peer_id":"p1"}`,
		`{"type":"join","code":"-12345","peer_id":"p1"}`,
		`{"type":"join","code":"123456"}`,
		`{"type":"join","code":"123456","peer_id":"with space"}`,
	} {
		in, err := Decode([]byte(raw))
		require.NoError(t, err, raw)
		_, err = in.Join()
		assert.ErrorIs(t, err, ErrInvalidMessage, raw)
	}
}

func TestRelayPayloadSelection(t *testing.T) {
	in, err := Decode([]byte(`{"type":"offer","code":"123456","target":"b","sdp":"v=0"}`))
	require.NoError(t, err)
	r, err := in.Relay()
	require.NoError(t, err)
	assert.Equal(t, domain.PeerID("b"), r.Target)
	assert.JSONEq(t, `"v=0"`, string(r.Payload))

	in, err = Decode([]byte(`{"type":"answer","target":"b","answer":{"type":"answer","sdp":"v=0"}}`))
	require.NoError(t, err)
	r, err = in.Relay()
	require.NoError(t, err)
	assert.Equal(t, domain.CallCode(""), r.Code)
	assert.JSONEq(t, `{"type":"answer","sdp":"v=0"}`, string(r.Payload))

	in, err = Decode([]byte(`{"type":"ice","target":"b","candidate":{"candidate":"candidate:1 1 udp 1 1.2.3.4 5 typ host"}}`))
	require.NoError(t, err)
	r, err = in.Relay()
	require.NoError(t, err)
	assert.Equal(t, TypeICE, r.Type)

	in, err = Decode([]byte(`{"type":"ice","target":"b","sdp":"v=0"}`))
	require.NoError(t, err)
	_, err = in.Relay()
	assert.ErrorIs(t, err, ErrInvalidMessage)

	in, err = Decode([]byte(`{"type":"offer","sdp":"v=0"}`))
	require.NoError(t, err)
	_, err = in.Relay()
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestForwardStampsSender(t *testing.T) {
	in, err := Decode([]byte(`{"type":"ice","code":"123456","target":"b","candidate":{"candidate":""}}`))
	require.NoError(t, err)
	r, err := in.Relay()
	require.NoError(t, err)

	frame, err := Forward(r, "123456", "a")
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(frame, &out))
	assert.Equal(t, "ice", out["type"])
	assert.Equal(t, "a", out["from"])
	assert.Equal(t, "b", out["target"])
	assert.Equal(t, "123456", out["code"])
	assert.NotContains(t, out, "sdp")
}

func TestForwardMirrorsLegacyDescription(t *testing.T) {
	cases := []struct {
		raw    string
		legacy string
		absent string
	}{
		{`{"type":"offer","code":"123456","target":"b","offer":{"type":"offer","sdp":"v=0"}}`, "offer", "answer"},
		{`{"type":"answer","code":"123456","target":"b","answer":{"type":"answer","sdp":"v=0"}}`, "answer", "offer"},
		{`{"type":"offer","code":"123456","target":"b","sdp":{"type":"offer","sdp":"v=0"}}`, "offer", "answer"},
	}
	for _, tc := range cases {
		in, err := Decode([]byte(tc.raw))
		require.NoError(t, err, tc.raw)
		r, err := in.Relay()
		require.NoError(t, err, tc.raw)

		frame, err := Forward(r, "123456", "a")
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal(frame, &out))
		desc := map[string]any{"type": tc.legacy, "sdp": "v=0"}
		assert.Equal(t, desc, out["sdp"], tc.raw)
		assert.Equal(t, desc, out[tc.legacy], tc.raw)
		assert.NotContains(t, out, tc.absent, tc.raw)
		assert.NotContains(t, out, "candidate", tc.raw)
		assert.Equal(t, "a", out["from"])
	}
}

func TestPeersMessageKeepsEmptyList(t *testing.T) {
	b, err := Encode(NewPeers("123456", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"peers","code":"123456","peers":[]}`, string(b))
}
