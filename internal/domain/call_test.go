package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallCode(t *testing.T) {
	for _, ok := range []string{"000000", "123456", "999999"} {
		code, err := ParseCallCode(ok)
		require.NoError(t, err, ok)
		assert.Equal(t, CallCode(ok), code)
	}
	for _, bad := range []string{"", "12345", "1234567", "12a456", " 23456", "１２３４５６"} {
		_, err := ParseCallCode(bad)
		assert.ErrorIs(t, err, ErrInvalidCode, bad)
	}
}

func TestFormatCallCodeZeroPads(t *testing.T) {
	assert.Equal(t, CallCode("000042"), FormatCallCode(42))
	assert.Equal(t, CallCode("999999"), FormatCallCode(999999))
}

func TestNewCallRecordValidatesDuration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	_, err := NewCallRecord("id", "123456", 1, now, 0, now)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = NewCallRecord("id", "123456", 1, now, MaxDurationMinutes+1, now)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = NewCallRecord("id", "12345", 1, now, 10, now)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestStartRoundsUpToWholeSecond(t *testing.T) {
	start := time.Unix(1_700_000_000, 0).UTC()
	rec, err := NewCallRecord("id", "123456", 1, start.Add(300*time.Millisecond), 10, start)
	require.NoError(t, err)
	assert.Equal(t, start.Add(time.Second), rec.StartTime)
	assert.False(t, rec.ActiveAt(start.Add(500*time.Millisecond)))
	assert.True(t, rec.ActiveAt(start.Add(time.Second)))

	exact, err := NewCallRecord("id", "123456", 1, start, 10, start)
	require.NoError(t, err)
	assert.Equal(t, start, exact.StartTime)
}

func TestCallRecordWindow(t *testing.T) {
	start := time.Unix(1_700_000_000, 0).UTC()
	rec, err := NewCallRecord("id", "123456", 42, start, 30, start.Add(-time.Hour))
	require.NoError(t, err)

	assert.Equal(t, start.Add(30*time.Minute), rec.EndTime())

	assert.False(t, rec.ActiveAt(start.Add(-time.Second)))
	assert.Equal(t, StateScheduled, rec.Phase(start.Add(-time.Second)))

	assert.True(t, rec.ActiveAt(start))
	assert.True(t, rec.ActiveAt(rec.EndTime()))
	assert.Equal(t, StateActive, rec.Phase(start.Add(time.Minute)))

	assert.False(t, rec.ActiveAt(rec.EndTime().Add(time.Second)))
	assert.Equal(t, StateExpired, rec.Phase(rec.EndTime().Add(time.Second)))
}

func TestTerminalStateIsSticky(t *testing.T) {
	start := time.Unix(1_700_000_000, 0).UTC()
	rec, err := NewCallRecord("id", "123456", 42, start, 30, start)
	require.NoError(t, err)

	rec.State = StateDeleted
	assert.False(t, rec.ActiveAt(start.Add(time.Minute)))
	assert.Equal(t, StateDeleted, rec.Phase(start.Add(time.Minute)))
	assert.Equal(t, 0, rec.MinutesLeft(start.Add(time.Minute)))
}

func TestMinutesLeftRoundsUp(t *testing.T) {
	start := time.Unix(1_700_000_000, 0).UTC()
	rec, err := NewCallRecord("id", "123456", 42, start, 30, start)
	require.NoError(t, err)

	assert.Equal(t, 30, rec.MinutesLeft(start))
	assert.Equal(t, 30, rec.MinutesLeft(start.Add(time.Second)))
	assert.Equal(t, 29, rec.MinutesLeft(start.Add(time.Minute)))
	assert.Equal(t, 0, rec.MinutesLeft(rec.EndTime()))
	assert.Equal(t, 0, rec.MinutesLeft(start.Add(-time.Minute)))
}

func TestParsePeerID(t *testing.T) {
	id, err := ParsePeerID("p1")
	require.NoError(t, err)
	assert.Equal(t, PeerID("p1"), id)

	for _, bad := range []string{"", "has space", string(make([]byte, MaxPeerIDLen+1))} {
		_, err := ParsePeerID(bad)
		assert.ErrorIs(t, err, ErrInvalidPeerID)
	}
}
