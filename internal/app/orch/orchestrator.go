// Package orch couples the call registry with the room manager: fired jobs,
// terminal transitions and their side effects.
package orch

import (
	"context"
	"time"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/app"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/core"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/metrics"
	"github.com/rs/zerolog/log"
)

const notifyTimeout = 10 * time.Second

// Termination reasons, used as the metrics label.
const (
	ReasonExpired = "expired"
	ReasonDeleted = "deleted"
	ReasonAdmin   = "admin"
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Notifier core.Notifier
	Metrics  *metrics.Metrics

	AdminSecret string
	PruneAfter  time.Duration
}

// notify delivers in the background. Failures never undo a transition.
func (o *Orchestrator) notify(userID int64, text string) {
	if o.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := o.Notifier.Notify(ctx, userID, text); err != nil {
			o.Metrics.NotificationFailed()
			log.Warn().Err(err).Str("module", "orch").Int64("user", userID).Msg("notification failed")
		}
	}()
}
