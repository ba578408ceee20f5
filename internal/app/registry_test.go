package app

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/adapters/store"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/core/coretest"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/metrics"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestRegistry(clock *coretest.Clock) (*Registry, *coretest.Scheduler) {
	sched := &coretest.Scheduler{}
	reg := NewRegistry(store.NewMemory(), sched, clock, RegistryConfig{WarnBefore: 5 * time.Minute}, metrics.New())
	return reg, sched
}

func fixedCodes(codes ...domain.CallCode) func() (domain.CallCode, error) {
	var mu sync.Mutex
	i := 0
	return func() (domain.CallCode, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func TestCreateCallCodeFormat(t *testing.T) {
	reg, _ := newTestRegistry(newFakeClock(t0))
	ctx := context.Background()
	re := regexp.MustCompile(`^[0-9]{6}$`)

	for i := 0; i < 50; i++ {
		rec, err := reg.CreateCall(ctx, 1, t0.Add(time.Hour), 30)
		require.NoError(t, err)
		assert.Regexp(t, re, string(rec.Code))
		assert.Equal(t, domain.StateScheduled, rec.State)
		assert.NotEmpty(t, rec.ID)

		got, err := reg.GetByCode(ctx, rec.Code)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
	}
}

func TestCreateCallRejectsBadDuration(t *testing.T) {
	reg, sched := newTestRegistry(newFakeClock(t0))
	_, err := reg.CreateCall(context.Background(), 1, t0, 0)
	require.ErrorIs(t, err, domain.ErrInvalidDuration)
	assert.Empty(t, sched.Jobs())
}

func TestCreateCallSchedulesJobs(t *testing.T) {
	reg, sched := newTestRegistry(newFakeClock(t0))
	start := t0.Add(time.Hour)

	rec, err := reg.CreateCall(context.Background(), 1, start, 30)
	require.NoError(t, err)

	jobs := sched.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, domain.Job{CallID: rec.ID, RunAt: start.Add(-5 * time.Minute), Kind: domain.JobWarnBeforeStart}, jobs[0])
	assert.Equal(t, domain.Job{CallID: rec.ID, RunAt: start.Add(30 * time.Minute), Kind: domain.JobEndCall}, jobs[1])
}

func TestCreateCallSkipsPastWarning(t *testing.T) {
	reg, sched := newTestRegistry(newFakeClock(t0))

	_, err := reg.CreateCall(context.Background(), 1, t0.Add(2*time.Minute), 10)
	require.NoError(t, err)

	jobs := sched.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobEndCall, jobs[0].Kind)
}

func TestCreateCallSurvivesSchedulerFailure(t *testing.T) {
	reg, sched := newTestRegistry(newFakeClock(t0))
	sched.Fail(errors.New("scheduler down"))

	rec, err := reg.CreateCall(context.Background(), 1, t0.Add(time.Hour), 10)
	require.NoError(t, err)
	_, err = reg.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
}

func TestRescheduleAfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.db")
	clock := newFakeClock(t0)
	cfg := RegistryConfig{WarnBefore: 5 * time.Minute}
	ctx := context.Background()

	first, err := store.OpenSQLite(path)
	require.NoError(t, err)
	reg := NewRegistry(first, &coretest.Scheduler{}, clock, cfg, metrics.New())
	start := t0.Add(time.Hour)
	upcoming, err := reg.CreateCall(ctx, 1, start, 30)
	require.NoError(t, err)
	gone, err := reg.CreateCall(ctx, 1, t0.Add(2*time.Hour), 30)
	require.NoError(t, err)
	_, _, err = reg.Delete(ctx, gone.ID, 1)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	clock.Set(t0.Add(10 * time.Minute))
	second, err := store.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	sched := &coretest.Scheduler{}
	reg = NewRegistry(second, sched, clock, cfg, metrics.New())

	n, err := reg.Reschedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	jobs := sched.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, domain.Job{CallID: upcoming.ID, RunAt: start.Add(-5 * time.Minute), Kind: domain.JobWarnBeforeStart}, jobs[0])
	assert.Equal(t, domain.Job{CallID: upcoming.ID, RunAt: start.Add(30 * time.Minute), Kind: domain.JobEndCall}, jobs[1])

	// a warning whose moment passed during the downtime is not replayed
	clock.Set(start.Add(-time.Minute))
	sched = &coretest.Scheduler{}
	reg = NewRegistry(second, sched, clock, cfg, metrics.New())
	_, err = reg.Reschedule(ctx)
	require.NoError(t, err)
	jobs = sched.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobEndCall, jobs[0].Kind)
}

func TestCreateCallRetriesCollision(t *testing.T) {
	reg, _ := newTestRegistry(newFakeClock(t0))
	ctx := context.Background()
	reg.newCode = fixedCodes("123456", "123456", "654321")

	first, err := reg.CreateCall(ctx, 1, t0, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.CallCode("123456"), first.Code)

	second, err := reg.CreateCall(ctx, 2, t0, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.CallCode("654321"), second.Code)
}

func TestCreateCallExhausted(t *testing.T) {
	reg, sched := newTestRegistry(newFakeClock(t0))
	ctx := context.Background()
	reg.newCode = fixedCodes("111111")

	_, err := reg.CreateCall(ctx, 1, t0, 10)
	require.NoError(t, err)
	jobsBefore := len(sched.Jobs())

	_, err = reg.CreateCall(ctx, 1, t0, 10)
	require.ErrorIs(t, err, domain.ErrGenerationExhausted)
	assert.Len(t, sched.Jobs(), jobsBefore)

	list, err := reg.ListByCreator(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateCallConcurrentDistinct(t *testing.T) {
	reg, _ := newTestRegistry(newFakeClock(t0))
	ctx := context.Background()

	const n = 1000
	codes := make([]domain.CallCode, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := reg.CreateCall(ctx, int64(i), t0.Add(time.Hour), 15)
			errs[i] = err
			if err == nil {
				codes[i] = rec.Code
			}
		}()
	}
	wg.Wait()

	seen := make(map[domain.CallCode]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.False(t, seen[codes[i]], "duplicate code %s", codes[i])
		seen[codes[i]] = true
	}
}

func TestIsActiveNowFollowsWindow(t *testing.T) {
	clock := newFakeClock(t0)
	reg, _ := newTestRegistry(clock)
	ctx := context.Background()

	rec, err := reg.CreateCall(ctx, 1, t0.Add(60*time.Second), 1)
	require.NoError(t, err)

	assert.False(t, reg.IsActiveNow(ctx, rec.Code))
	clock.Set(t0.Add(60 * time.Second))
	assert.True(t, reg.IsActiveNow(ctx, rec.Code))
	clock.Set(t0.Add(120 * time.Second))
	assert.True(t, reg.IsActiveNow(ctx, rec.Code))
	clock.Set(t0.Add(121 * time.Second))
	assert.False(t, reg.IsActiveNow(ctx, rec.Code))

	assert.False(t, reg.IsActiveNow(ctx, "000000"))
}

func TestDeleteRequiresCreator(t *testing.T) {
	reg, _ := newTestRegistry(newFakeClock(t0))
	ctx := context.Background()
	rec, err := reg.CreateCall(ctx, 7, t0, 30)
	require.NoError(t, err)

	_, _, err = reg.Delete(ctx, rec.ID, 8)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	got, err := reg.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateScheduled, got.State)

	_, _, err = reg.Delete(ctx, "nope", 7)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTerminalTransitionsIdempotent(t *testing.T) {
	reg, _ := newTestRegistry(newFakeClock(t0))
	ctx := context.Background()
	rec, err := reg.CreateCall(ctx, 7, t0, 30)
	require.NoError(t, err)

	out, changed, err := reg.Delete(ctx, rec.ID, 7)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.StateDeleted, out.State)

	out, changed, err = reg.Delete(ctx, rec.ID, 7)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.StateDeleted, out.State)

	out, changed, err = reg.MarkExpired(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.StateDeleted, out.State)
	assert.False(t, reg.IsActiveNow(ctx, rec.Code))
}

func TestTerminalTransitionRace(t *testing.T) {
	reg, _ := newTestRegistry(newFakeClock(t0))
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		rec, err := reg.CreateCall(ctx, 7, t0, 30)
		require.NoError(t, err)

		var (
			wg               sync.WaitGroup
			expired, deleted bool
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, expired, _ = reg.MarkExpired(ctx, rec.ID)
		}()
		go func() {
			defer wg.Done()
			_, deleted, _ = reg.Delete(ctx, rec.ID, 7)
		}()
		wg.Wait()
		assert.True(t, expired != deleted, "exactly one transition must win")
	}
}

func TestOverdueAndPrune(t *testing.T) {
	clock := newFakeClock(t0)
	reg, _ := newTestRegistry(clock)
	ctx := context.Background()

	rec, err := reg.CreateCall(ctx, 1, t0, 10)
	require.NoError(t, err)
	clock.Set(t0.Add(11 * time.Minute))

	overdue, err := reg.Overdue(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, rec.ID, overdue[0].ID)

	_, _, err = reg.MarkExpired(ctx, rec.ID)
	require.NoError(t, err)
	n, err := reg.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Set(t0.Add(2 * time.Hour))
	n, err = reg.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = reg.GetByCode(ctx, rec.Code)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
