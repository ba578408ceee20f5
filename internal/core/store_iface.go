package core

import (
	"context"
	"time"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
)

// CallStore is the persistence contract of the call registry.
//
// Insert is the allocation critical section: it fails with
// domain.ErrCodeTaken when any stored record holds the same code, and the
// check and the write are atomic. Codes become reusable once PruneTerminal
// removes the owning record.
type CallStore interface {
	Insert(ctx context.Context, rec *domain.CallRecord) error
	GetByID(ctx context.Context, id domain.CallID) (*domain.CallRecord, error)
	GetByCode(ctx context.Context, code domain.CallCode) (*domain.CallRecord, error)
	ListByCreator(ctx context.Context, creatorID int64) ([]*domain.CallRecord, error)
	// CompareAndSwapState moves the record from `from` to `to` and reports
	// whether this call performed the change.
	CompareAndSwapState(ctx context.Context, id domain.CallID, from, to domain.State) (bool, error)
	// ListLive returns every non-terminal record in insertion order.
	ListLive(ctx context.Context) ([]*domain.CallRecord, error)
	// ListOverdue returns non-terminal records whose window ended before t.
	ListOverdue(ctx context.Context, t time.Time) ([]*domain.CallRecord, error)
	// PruneTerminal deletes terminal records whose window ended before t.
	PruneTerminal(ctx context.Context, t time.Time) (int, error)
	Close() error
}
