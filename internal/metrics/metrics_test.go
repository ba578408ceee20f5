package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CallCreated()
	m.CallTerminated("expired")
	m.RoomOpened()
	m.PeerJoined()
	m.SignalMessage("join")
	m.RelayDrop()
}

func TestCountersAndExposition(t *testing.T) {
	m := New()
	m.CallCreated()
	m.CallCreated()
	m.CallTerminated("deleted")
	m.RoomOpened()
	m.RoomOpened()
	m.RoomClosed()
	m.SignalMessage("offer")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CallsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallsTerminated.WithLabelValues("deleted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoomsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalMessages.WithLabelValues("offer")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "calls_created_total 2")
	assert.Contains(t, string(body), `calls_signal_messages_total{type="offer"} 1`)
}
