package orch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

const sweepWorkers = 4

// HandleJob resolves a fired job against the registry. Jobs are never
// cancelled, so each kind checks its own precondition here.
func (o *Orchestrator) HandleJob(ctx context.Context, job domain.Job) {
	switch job.Kind {
	case domain.JobWarnBeforeStart:
		o.warnBeforeStart(ctx, job.CallID)
	case domain.JobEndCall:
		o.EndCall(ctx, job.CallID, ReasonExpired)
	default:
		log.Warn().Str("module", "orch").Str("kind", string(job.Kind)).Msg("unknown job kind")
	}
}

func (o *Orchestrator) warnBeforeStart(ctx context.Context, id domain.CallID) {
	rec, err := o.Registry.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error().Err(err).Str("module", "orch").Str("id", string(id)).Msg("warn job lookup")
		}
		return
	}
	now := o.Registry.Now()
	if rec.State.Terminal() || !now.Before(rec.StartTime) {
		return
	}
	minutes := int((rec.StartTime.Sub(now) + time.Minute - 1) / time.Minute)
	o.notify(rec.CreatorID, fmt.Sprintf("Call %s starts in %d minutes", rec.Code, minutes))
}

// EndCall expires the call, then closes its room. Expiring first means a
// concurrent join re-checking activity under the room lock is refused.
func (o *Orchestrator) EndCall(ctx context.Context, id domain.CallID, reason string) {
	rec, changed, err := o.Registry.MarkExpired(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error().Err(err).Str("module", "orch").Str("id", string(id)).Msg("end call")
		}
		return
	}
	o.Rooms.ForceClose(rec.Code)
	if !changed {
		return
	}
	o.Metrics.CallTerminated(reason)
	o.notify(rec.CreatorID, fmt.Sprintf("Call %s has ended", rec.Code))
}

// Sweep expires live calls whose window already ended and prunes old
// terminal records. It backs up lost or late EndCall jobs.
func (o *Orchestrator) Sweep(ctx context.Context) {
	overdue, err := o.Registry.Overdue(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.sweeper").Msg("list overdue")
	} else if len(overdue) > 0 {
		p := pool.New().WithMaxGoroutines(sweepWorkers)
		for _, rec := range overdue {
			p.Go(func() { o.EndCall(ctx, rec.ID, ReasonExpired) })
		}
		p.Wait()
		log.Info().Str("module", "orch.sweeper").Int("expired", len(overdue)).Msg("expired overdue calls")
	}

	if o.PruneAfter <= 0 {
		return
	}
	n, err := o.Registry.Prune(ctx, o.PruneAfter)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.sweeper").Msg("prune")
		return
	}
	if n > 0 {
		log.Info().Str("module", "orch.sweeper").Int("pruned", n).Msg("pruned terminal calls")
	}
}

// RunSweeper sweeps every interval until ctx is done.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Sweep(ctx)
		}
	}
}
