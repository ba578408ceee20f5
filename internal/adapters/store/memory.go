package store

import (
	"context"
	"sync"
	"time"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
)

type Memory struct {
	mu     sync.RWMutex
	byID   map[domain.CallID]*domain.CallRecord
	byCode map[domain.CallCode]domain.CallID
	order  []domain.CallID
}

func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[domain.CallID]*domain.CallRecord),
		byCode: make(map[domain.CallCode]domain.CallID),
	}
}

func (m *Memory) Insert(_ context.Context, rec *domain.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCode[rec.Code]; ok {
		return domain.ErrCodeTaken
	}
	m.byID[rec.ID] = rec.Clone()
	m.byCode[rec.Code] = rec.ID
	m.order = append(m.order, rec.ID)
	return nil
}

func (m *Memory) GetByID(_ context.Context, id domain.CallID) (*domain.CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) GetByCode(_ context.Context, code domain.CallCode) (*domain.CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.byID[id].Clone(), nil
}

func (m *Memory) ListByCreator(_ context.Context, creatorID int64) ([]*domain.CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.CallRecord{}
	for _, id := range m.order {
		if rec := m.byID[id]; rec.CreatorID == creatorID {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (m *Memory) CompareAndSwapState(_ context.Context, id domain.CallID, from, to domain.State) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if rec.State != from {
		return false, nil
	}
	rec.State = to
	return true, nil
}

func (m *Memory) ListLive(_ context.Context) ([]*domain.CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.CallRecord
	for _, id := range m.order {
		if rec := m.byID[id]; !rec.State.Terminal() {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (m *Memory) ListOverdue(_ context.Context, t time.Time) ([]*domain.CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.CallRecord
	for _, id := range m.order {
		rec := m.byID[id]
		if !rec.State.Terminal() && rec.EndTime().Before(t) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (m *Memory) PruneTerminal(_ context.Context, t time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	n := 0
	for _, id := range m.order {
		rec := m.byID[id]
		if rec.State.Terminal() && rec.EndTime().Before(t) {
			delete(m.byID, id)
			delete(m.byCode, rec.Code)
			n++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return n, nil
}

func (m *Memory) Close() error { return nil }
