package core

import (
	"context"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
)

// JobHandler runs a fired job. It must tolerate duplicate and late delivery.
type JobHandler func(ctx context.Context, job domain.Job)

// Scheduler invokes the handler at or after job.RunAt.
// There is no cancellation; handlers check their own preconditions.
type Scheduler interface {
	Schedule(job domain.Job) error
}

// Notifier delivers a text message to a user. Best effort.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}
