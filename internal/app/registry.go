package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/core"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCodeAttempts = 10
	DefaultWarnBefore   = 5 * time.Minute
)

var codeSpace = big.NewInt(1_000_000)

type RegistryConfig struct {
	CodeAttempts int
	WarnBefore   time.Duration
}

// Registry owns call records: code allocation, the activity window and the
// terminal transitions. Side effects of a transition belong to the caller.
type Registry struct {
	store   core.CallStore
	sched   core.Scheduler
	clock   core.Clock
	metrics *metrics.Metrics

	codeAttempts int
	warnBefore   time.Duration
	newCode      func() (domain.CallCode, error)
	newID        func() domain.CallID
}

func NewRegistry(store core.CallStore, sched core.Scheduler, clock core.Clock, cfg RegistryConfig, m *metrics.Metrics) *Registry {
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = DefaultCodeAttempts
	}
	if clock == nil {
		clock = core.RealClock{}
	}
	return &Registry{
		store:        store,
		sched:        sched,
		clock:        clock,
		metrics:      m,
		codeAttempts: cfg.CodeAttempts,
		warnBefore:   cfg.WarnBefore,
		newCode:      randomCode,
		newID:        func() domain.CallID { return domain.CallID(uuid.NewString()) },
	}
}

func randomCode() (domain.CallCode, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return domain.FormatCallCode(n.Int64()), nil
}

// CreateCall allocates a fresh code and stores a Scheduled record. The store
// insert is the only critical section: a collision there costs one attempt.
func (r *Registry) CreateCall(ctx context.Context, creatorID int64, start time.Time, durationMinutes int) (*domain.CallRecord, error) {
	now := r.clock.Now()
	for attempt := 0; attempt < r.codeAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		rec, err := domain.NewCallRecord(r.newID(), code, creatorID, start, durationMinutes, now)
		if err != nil {
			return nil, err
		}
		err = r.store.Insert(ctx, rec)
		if errors.Is(err, domain.ErrCodeTaken) {
			log.Debug().Str("module", "app.registry").Str("code", string(code)).Int("attempt", attempt+1).Msg("code collision")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert call: %w", err)
		}

		r.scheduleJobs(rec, now)
		r.metrics.CallCreated()
		log.Info().Str("module", "app.registry").
			Str("id", string(rec.ID)).
			Str("code", string(rec.Code)).
			Int64("creator", creatorID).
			Time("start", rec.StartTime).
			Int("duration", rec.DurationMinutes).
			Msg("call created")
		return rec.Clone(), nil
	}
	log.Warn().Str("module", "app.registry").Int("attempts", r.codeAttempts).Msg("code generation exhausted")
	return nil, domain.ErrGenerationExhausted
}

func (r *Registry) scheduleJobs(rec *domain.CallRecord, now time.Time) {
	if r.sched == nil {
		return
	}
	jobs := make([]domain.Job, 0, 2)
	if warnAt := rec.StartTime.Add(-r.warnBefore); r.warnBefore > 0 && warnAt.After(now) {
		jobs = append(jobs, domain.Job{CallID: rec.ID, RunAt: warnAt, Kind: domain.JobWarnBeforeStart})
	}
	jobs = append(jobs, domain.Job{CallID: rec.ID, RunAt: rec.EndTime(), Kind: domain.JobEndCall})

	for _, job := range jobs {
		if err := r.sched.Schedule(job); err != nil {
			// the sweeper still expires the call
			log.Error().Err(err).Str("module", "app.registry").
				Str("id", string(job.CallID)).
				Str("kind", string(job.Kind)).
				Msg("schedule job")
		}
	}
}

func (r *Registry) GetByCode(ctx context.Context, code domain.CallCode) (*domain.CallRecord, error) {
	return r.store.GetByCode(ctx, code)
}

func (r *Registry) GetByID(ctx context.Context, id domain.CallID) (*domain.CallRecord, error) {
	return r.store.GetByID(ctx, id)
}

func (r *Registry) ListByCreator(ctx context.Context, creatorID int64) ([]*domain.CallRecord, error) {
	return r.store.ListByCreator(ctx, creatorID)
}

// IsActiveNow is the admission check of the room manager.
func (r *Registry) IsActiveNow(ctx context.Context, code domain.CallCode) bool {
	rec, err := r.store.GetByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error().Err(err).Str("module", "app.registry").Str("code", string(code)).Msg("activity lookup")
		}
		return false
	}
	return rec.ActiveAt(r.clock.Now())
}

func (r *Registry) Now() time.Time { return r.clock.Now() }

// MarkExpired moves a Scheduled call to Expired. Already terminal records are
// returned unchanged; changed reports whether this call made the transition.
func (r *Registry) MarkExpired(ctx context.Context, id domain.CallID) (rec *domain.CallRecord, changed bool, err error) {
	rec, err = r.store.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return r.transition(ctx, rec, domain.StateExpired)
}

// Delete moves a Scheduled call to Deleted on behalf of its creator.
func (r *Registry) Delete(ctx context.Context, id domain.CallID, requesterID int64) (rec *domain.CallRecord, changed bool, err error) {
	rec, err = r.store.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if rec.CreatorID != requesterID {
		return nil, false, domain.ErrUnauthorized
	}
	return r.transition(ctx, rec, domain.StateDeleted)
}

func (r *Registry) transition(ctx context.Context, rec *domain.CallRecord, to domain.State) (*domain.CallRecord, bool, error) {
	if rec.State.Terminal() {
		return rec, false, nil
	}
	swapped, err := r.store.CompareAndSwapState(ctx, rec.ID, domain.StateScheduled, to)
	if err != nil {
		return nil, false, fmt.Errorf("swap state: %w", err)
	}
	if !swapped {
		// lost the race to the other terminal transition
		cur, err := r.store.GetByID(ctx, rec.ID)
		if err != nil {
			return nil, false, err
		}
		return cur, false, nil
	}
	out := rec.Clone()
	out.State = to
	log.Info().Str("module", "app.registry").
		Str("id", string(rec.ID)).
		Str("code", string(rec.Code)).
		Str("state", string(to)).
		Msg("call terminated")
	return out, true, nil
}

// Reschedule queues the jobs of every live call again. Schedulers keep jobs
// in memory only, so this runs once at startup against a persistent store.
func (r *Registry) Reschedule(ctx context.Context) (int, error) {
	live, err := r.store.ListLive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list live calls: %w", err)
	}
	now := r.clock.Now()
	for _, rec := range live {
		r.scheduleJobs(rec, now)
	}
	if len(live) > 0 {
		log.Info().Str("module", "app.registry").Int("calls", len(live)).Msg("jobs rescheduled")
	}
	return len(live), nil
}

// Overdue lists live calls whose window already ended.
func (r *Registry) Overdue(ctx context.Context) ([]*domain.CallRecord, error) {
	return r.store.ListOverdue(ctx, r.clock.Now())
}

// Prune drops terminal records that ended before now-olderThan, releasing their codes.
func (r *Registry) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	return r.store.PruneTerminal(ctx, r.clock.Now().Add(-olderThan))
}
