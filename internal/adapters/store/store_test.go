package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/core"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(t *testing.T, id string, code string, creator int64, start time.Time, minutes int) *domain.CallRecord {
	t.Helper()
	rec, err := domain.NewCallRecord(domain.CallID(id), domain.CallCode(code), creator, start, minutes, base)
	require.NoError(t, err)
	return rec
}

func stores(t *testing.T) map[string]core.CallStore {
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "calls.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]core.CallStore{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			a := record(t, "a", "000001", 7, base, 30)
			require.NoError(t, s.Insert(ctx, a))
			require.ErrorIs(t, s.Insert(ctx, record(t, "b", "000001", 8, base, 30)), domain.ErrCodeTaken)
			require.NoError(t, s.Insert(ctx, record(t, "c", "000002", 7, base.Add(time.Hour), 30)))
			require.NoError(t, s.Insert(ctx, record(t, "d", "000003", 9, base, 30)))

			got, err := s.GetByCode(ctx, "000001")
			require.NoError(t, err)
			assert.Equal(t, a, got)

			_, err = s.GetByID(ctx, "missing")
			assert.ErrorIs(t, err, domain.ErrNotFound)
			_, err = s.GetByCode(ctx, "999999")
			assert.ErrorIs(t, err, domain.ErrNotFound)

			list, err := s.ListByCreator(ctx, 7)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, domain.CallID("a"), list[0].ID)
			assert.Equal(t, domain.CallID("c"), list[1].ID)

			ok, err := s.CompareAndSwapState(ctx, "a", domain.StateScheduled, domain.StateDeleted)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = s.CompareAndSwapState(ctx, "a", domain.StateScheduled, domain.StateExpired)
			require.NoError(t, err)
			assert.False(t, ok)
			_, err = s.CompareAndSwapState(ctx, "missing", domain.StateScheduled, domain.StateExpired)
			assert.ErrorIs(t, err, domain.ErrNotFound)

			live, err := s.ListLive(ctx)
			require.NoError(t, err)
			require.Len(t, live, 2)
			assert.Equal(t, domain.CallID("c"), live[0].ID)
			assert.Equal(t, domain.CallID("d"), live[1].ID)

			overdue, err := s.ListOverdue(ctx, base.Add(31*time.Minute))
			require.NoError(t, err)
			require.Len(t, overdue, 1)
			assert.Equal(t, domain.CallID("d"), overdue[0].ID)

			// the deleted record still holds its code until pruned
			require.ErrorIs(t, s.Insert(ctx, record(t, "e", "000001", 1, base, 5)), domain.ErrCodeTaken)
			n, err := s.PruneTerminal(ctx, base.Add(31*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			require.NoError(t, s.Insert(ctx, record(t, "e", "000001", 1, base, 5)))
		})
	}
}

func TestStoreConcurrentInsertSameCode(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			recs := make([]*domain.CallRecord, 20)
			for i := range recs {
				recs[i] = record(t, fmt.Sprintf("id-%d", i), "424242", int64(i), base, 10)
			}
			for _, rec := range recs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := s.Insert(ctx, rec); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, wins)
		})
	}
}

func TestSQLiteInMemorySharesOneDatabase(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		rec := record(t, fmt.Sprintf("m-%d", i), fmt.Sprintf("10000%d", i), 3, base, 10)
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Insert(ctx, rec))
		}()
	}
	wg.Wait()

	list, err := s.ListByCreator(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, list, 8)
	got, err := s.GetByCode(ctx, "100007")
	require.NoError(t, err)
	assert.Equal(t, domain.CallID("m-7"), got.ID)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("redis", "")
	require.Error(t, err)

	s, err := Open("", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
}
