package app

import (
	"context"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/core"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/core/coretest"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
)

func newFakeClock(t time.Time) *coretest.Clock { return coretest.NewClock(t) }

type gateFunc func(code domain.CallCode) bool

func (g gateFunc) IsActiveNow(_ context.Context, code domain.CallCode) bool { return g(code) }

func alwaysActive() core.ActivityGate {
	return gateFunc(func(domain.CallCode) bool { return true })
}

type wireMsg struct {
	Type   string   `json:"type"`
	Code   string   `json:"code"`
	Peers  []string `json:"peers"`
	PeerID string   `json:"peer_id"`
	From   string   `json:"from"`
	Target string   `json:"target"`
}

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	full   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) SetFull(full bool) {
	c.mu.Lock()
	c.full = full
	c.mu.Unlock()
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Messages(t *testing.T) []wireMsg {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]wireMsg, 0, len(c.frames))
	for _, f := range c.frames {
		var m wireMsg
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
