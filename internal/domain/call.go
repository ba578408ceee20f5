// Package domain contains entities and their invariants, no transport or storage.
package domain

import (
	"errors"
	"fmt"
	"time"
)

const (
	CodeLength         = 6
	MaxDurationMinutes = 24 * 60
)

var (
	ErrInvalidCode         = errors.New("invalid call code")
	ErrInvalidDuration     = errors.New("invalid call duration")
	ErrNotFound            = errors.New("call not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrGenerationExhausted = errors.New("call code generation exhausted")
	ErrCodeTaken           = errors.New("call code taken")
)

type (
	CallID   string
	CallCode string
)

// ParseCallCode accepts exactly six ASCII digits.
func ParseCallCode(s string) (CallCode, error) {
	if len(s) != CodeLength {
		return "", ErrInvalidCode
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", ErrInvalidCode
		}
	}
	return CallCode(s), nil
}

// FormatCallCode zero-pads n into a call code.
func FormatCallCode(n int64) CallCode {
	return CallCode(fmt.Sprintf("%06d", n))
}

// State is the stored lifecycle state. Only Scheduled is stored for a live
// call; Active and Expired are derived from the time window by Phase.
type State string

const (
	StateScheduled State = "scheduled"
	StateActive    State = "active"
	StateExpired   State = "expired"
	StateDeleted   State = "deleted"
)

func (s State) Terminal() bool {
	return s == StateExpired || s == StateDeleted
}

type CallRecord struct {
	ID              CallID    `json:"id"`
	Code            CallCode  `json:"code"`
	CreatorID       int64     `json:"creator_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
	State           State     `json:"state"`
}

// NewCallRecord validates the window and builds a Scheduled record.
// Times are stored in whole seconds; the start rounds up so a call never
// opens before the requested instant.
func NewCallRecord(id CallID, code CallCode, creatorID int64, start time.Time, durationMinutes int, now time.Time) (*CallRecord, error) {
	if _, err := ParseCallCode(string(code)); err != nil {
		return nil, err
	}
	if durationMinutes <= 0 || durationMinutes > MaxDurationMinutes {
		return nil, ErrInvalidDuration
	}
	return &CallRecord{
		ID:              id,
		Code:            code,
		CreatorID:       creatorID,
		StartTime:       ceilSecond(start.UTC()),
		DurationMinutes: durationMinutes,
		CreatedAt:       now.UTC().Truncate(time.Second),
		State:           StateScheduled,
	}, nil
}

func ceilSecond(t time.Time) time.Time {
	if tr := t.Truncate(time.Second); tr.Before(t) {
		return tr.Add(time.Second)
	}
	return t.Truncate(time.Second)
}

func (c *CallRecord) Duration() time.Duration {
	return time.Duration(c.DurationMinutes) * time.Minute
}

func (c *CallRecord) EndTime() time.Time {
	return c.StartTime.Add(c.Duration())
}

// ActiveAt reports whether the call admits peers at t.
func (c *CallRecord) ActiveAt(t time.Time) bool {
	if c.State.Terminal() {
		return false
	}
	return !t.Before(c.StartTime) && !t.After(c.EndTime())
}

// Phase returns the observable state at t. Terminal states are sticky.
func (c *CallRecord) Phase(t time.Time) State {
	switch {
	case c.State.Terminal():
		return c.State
	case t.Before(c.StartTime):
		return StateScheduled
	case !t.After(c.EndTime()):
		return StateActive
	default:
		return StateExpired
	}
}

// MinutesLeft rounds the remaining active time up to whole minutes.
// Zero outside the active window.
func (c *CallRecord) MinutesLeft(t time.Time) int {
	if !c.ActiveAt(t) {
		return 0
	}
	left := c.EndTime().Sub(t)
	return int((left + time.Minute - 1) / time.Minute)
}

// Clone returns a copy safe to hand out of a store.
func (c *CallRecord) Clone() *CallRecord {
	cp := *c
	return &cp
}
