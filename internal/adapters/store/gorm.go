package store

import (
	"context"
	"errors"
	"time"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type callRow struct {
	Seq             uint      `gorm:"primaryKey;autoIncrement"`
	CallID          string    `gorm:"size:36;uniqueIndex;not null"`
	Code            string    `gorm:"size:6;uniqueIndex;not null"`
	CreatorID       int64     `gorm:"index;not null"`
	StartTime       time.Time `gorm:"not null"`
	DurationMinutes int       `gorm:"not null"`
	EndTime         time.Time `gorm:"index;not null"`
	CreatedAt       time.Time
	State           string `gorm:"size:16;index;not null"`
}

func (callRow) TableName() string { return "calls" }

func toRow(rec *domain.CallRecord) *callRow {
	return &callRow{
		CallID:          string(rec.ID),
		Code:            string(rec.Code),
		CreatorID:       rec.CreatorID,
		StartTime:       rec.StartTime,
		DurationMinutes: rec.DurationMinutes,
		EndTime:         rec.EndTime(),
		CreatedAt:       rec.CreatedAt,
		State:           string(rec.State),
	}
}

func (r *callRow) record() *domain.CallRecord {
	return &domain.CallRecord{
		ID:              domain.CallID(r.CallID),
		Code:            domain.CallCode(r.Code),
		CreatorID:       r.CreatorID,
		StartTime:       r.StartTime.UTC(),
		DurationMinutes: r.DurationMinutes,
		CreatedAt:       r.CreatedAt.UTC(),
		State:           domain.State(r.State),
	}
}

var terminalStates = []string{string(domain.StateExpired), string(domain.StateDeleted)}

// Postgres stores calls through gorm. The unique index on code makes Insert
// the atomic allocation point across processes.
type Postgres struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&callRow{}); err != nil {
		return nil, err
	}
	log.Info().Str("module", "store.postgres").Msg("connected")
	return &Postgres{db: db}, nil
}

func (p *Postgres) Insert(ctx context.Context, rec *domain.CallRecord) error {
	err := p.db.WithContext(ctx).Create(toRow(rec)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrCodeTaken
	}
	return err
}

func (p *Postgres) first(ctx context.Context, query string, arg any) (*domain.CallRecord, error) {
	var row callRow
	err := p.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.record(), nil
}

func (p *Postgres) GetByID(ctx context.Context, id domain.CallID) (*domain.CallRecord, error) {
	return p.first(ctx, "call_id = ?", string(id))
}

func (p *Postgres) GetByCode(ctx context.Context, code domain.CallCode) (*domain.CallRecord, error) {
	return p.first(ctx, "code = ?", string(code))
}

func records(rows []callRow) []*domain.CallRecord {
	out := make([]*domain.CallRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].record())
	}
	return out
}

func (p *Postgres) ListByCreator(ctx context.Context, creatorID int64) ([]*domain.CallRecord, error) {
	var rows []callRow
	if err := p.db.WithContext(ctx).Where("creator_id = ?", creatorID).Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	return records(rows), nil
}

func (p *Postgres) ListLive(ctx context.Context) ([]*domain.CallRecord, error) {
	var rows []callRow
	err := p.db.WithContext(ctx).
		Where("state NOT IN ?", terminalStates).
		Order("seq").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return records(rows), nil
}

func (p *Postgres) ListOverdue(ctx context.Context, t time.Time) ([]*domain.CallRecord, error) {
	var rows []callRow
	err := p.db.WithContext(ctx).
		Where("state NOT IN ? AND end_time < ?", terminalStates, t).
		Order("seq").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return records(rows), nil
}

func (p *Postgres) CompareAndSwapState(ctx context.Context, id domain.CallID, from, to domain.State) (bool, error) {
	res := p.db.WithContext(ctx).Model(&callRow{}).
		Where("call_id = ? AND state = ?", string(id), string(from)).
		Update("state", string(to))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	var n int64
	if err := p.db.WithContext(ctx).Model(&callRow{}).Where("call_id = ?", string(id)).Count(&n).Error; err != nil {
		return false, err
	}
	if n == 0 {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func (p *Postgres) PruneTerminal(ctx context.Context, t time.Time) (int, error) {
	res := p.db.WithContext(ctx).
		Where("state IN ? AND end_time < ?", terminalStates, t).
		Delete(&callRow{})
	return int(res.RowsAffected), res.Error
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
