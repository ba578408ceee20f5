// Package scheduler runs one-shot call jobs on gocron.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/core"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
)

// Gocron queues jobs from construction on but fires none until Start, so the
// handler can be built after the registry that schedules into it.
type Gocron struct {
	s     gocron.Scheduler
	clock core.Clock

	mu      sync.RWMutex
	ctx     context.Context
	handler core.JobHandler
}

func NewGocron(clock core.Clock) (*Gocron, error) {
	if clock == nil {
		clock = core.RealClock{}
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	return &Gocron{s: s, clock: clock, ctx: context.Background()}, nil
}

func (g *Gocron) Schedule(job domain.Job) error {
	start := gocron.OneTimeJobStartImmediately()
	if job.RunAt.After(g.clock.Now()) {
		start = gocron.OneTimeJobStartDateTime(job.RunAt)
	}
	_, err := g.s.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(g.run, job),
		gocron.WithName(fmt.Sprintf("%s/%s", job.Kind, job.CallID)),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Kind, err)
	}
	log.Debug().Str("module", "scheduler").
		Str("id", string(job.CallID)).
		Str("kind", string(job.Kind)).
		Time("run_at", job.RunAt).
		Msg("job scheduled")
	return nil
}

func (g *Gocron) run(job domain.Job) {
	g.mu.RLock()
	ctx, handler := g.ctx, g.handler
	g.mu.RUnlock()
	if handler == nil {
		log.Warn().Str("module", "scheduler").Str("id", string(job.CallID)).Msg("job fired without handler")
		return
	}
	if ctx.Err() != nil {
		return
	}
	handler(ctx, job)
}

// Start begins firing jobs into handler until ctx is done or Shutdown.
func (g *Gocron) Start(ctx context.Context, handler core.JobHandler) {
	g.mu.Lock()
	g.ctx, g.handler = ctx, handler
	g.mu.Unlock()
	g.s.Start()
	log.Info().Str("module", "scheduler").Int("queued", len(g.s.Jobs())).Msg("scheduler started")
}

func (g *Gocron) Shutdown() error {
	return g.s.Shutdown()
}
