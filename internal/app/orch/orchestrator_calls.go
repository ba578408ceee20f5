package orch

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
	"github.com/rs/zerolog/log"
)

// CallStatus is the public view of a call code.
type CallStatus struct {
	Exists      bool `json:"exists"`
	Active      bool `json:"active"`
	MinutesLeft int  `json:"minutes_left"`
}

func (o *Orchestrator) CreateCall(ctx context.Context, creatorID int64, start time.Time, durationMinutes int) (*domain.CallRecord, error) {
	rec, err := o.Registry.CreateCall(ctx, creatorID, start, durationMinutes)
	if err != nil {
		return nil, err
	}
	o.notify(creatorID, fmt.Sprintf("Call %s scheduled for %s, %d minutes",
		rec.Code, rec.StartTime.Format("2006-01-02 15:04 MST"), rec.DurationMinutes))
	return rec, nil
}

func (o *Orchestrator) ListCalls(ctx context.Context, creatorID int64) ([]*domain.CallRecord, error) {
	return o.Registry.ListByCreator(ctx, creatorID)
}

// DeleteCall deletes on behalf of the creator and disconnects the room.
func (o *Orchestrator) DeleteCall(ctx context.Context, id domain.CallID, requesterID int64) (*domain.CallRecord, error) {
	rec, changed, err := o.Registry.Delete(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	o.Rooms.ForceClose(rec.Code)
	if changed {
		o.Metrics.CallTerminated(ReasonDeleted)
	}
	return rec, nil
}

func (o *Orchestrator) Status(ctx context.Context, code domain.CallCode) (CallStatus, error) {
	rec, err := o.Registry.GetByCode(ctx, code)
	if err != nil {
		return CallStatus{}, err
	}
	now := o.Registry.Now()
	return CallStatus{
		Exists:      true,
		Active:      rec.ActiveAt(now),
		MinutesLeft: rec.MinutesLeft(now),
	}, nil
}

// RegisterJoin reports whether a browser may join the call right now.
func (o *Orchestrator) RegisterJoin(ctx context.Context, code domain.CallCode) bool {
	return o.Registry.IsActiveNow(ctx, code)
}

// AdminEnd terminates a call by code. An empty configured secret rejects everything.
func (o *Orchestrator) AdminEnd(ctx context.Context, code domain.CallCode, secret string) error {
	if !secretMatches(o.AdminSecret, secret) {
		log.Warn().Str("module", "orch").Str("code", string(code)).Msg("admin end rejected")
		return domain.ErrForbidden
	}
	rec, err := o.Registry.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	o.EndCall(ctx, rec.ID, ReasonAdmin)
	log.Info().Str("module", "orch").Str("code", string(code)).Msg("admin ended call")
	return nil
}

func secretMatches(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
