// Package notify delivers user notifications.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogNotifier writes notifications to the log. Used when no bot token is set.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID int64, text string) error {
	log.Info().Str("module", "notify").Int64("user", userID).Str("text", text).Msg("notification")
	return nil
}
