package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite keeps calls in a single file. Writes are serialized by mu; the code
// column is UNIQUE so a second process sharing the file still cannot collide.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite: empty path")
	}
	inMemory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if !inMemory && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if inMemory {
		// every pooled connection would otherwise open its own empty database
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS calls (
		seq              INTEGER PRIMARY KEY AUTOINCREMENT,
		id               TEXT NOT NULL UNIQUE,
		code             TEXT NOT NULL UNIQUE,
		creator_id       INTEGER NOT NULL,
		start_time       INTEGER NOT NULL,
		duration_minutes INTEGER NOT NULL,
		end_time         INTEGER NOT NULL,
		created_at       INTEGER NOT NULL,
		state            TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err = db.Exec(`CREATE INDEX IF NOT EXISTS calls_creator ON calls (creator_id, seq)`); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("module", "store.sqlite").Str("path", path).Msg("opened")
	return &SQLite{db: db}, nil
}

const callColumns = `id, code, creator_id, start_time, duration_minutes, created_at, state`

func (s *SQLite) Insert(ctx context.Context, rec *domain.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO calls
		(id, code, creator_id, start_time, duration_minutes, end_time, created_at, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.ID), string(rec.Code), rec.CreatorID,
		rec.StartTime.Unix(), rec.DurationMinutes, rec.EndTime().Unix(),
		rec.CreatedAt.Unix(), string(rec.State))
	if isUniqueViolation(err) {
		return domain.ErrCodeTaken
	}
	return err
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(r rowScanner) (*domain.CallRecord, error) {
	var (
		rec              domain.CallRecord
		id, code, state  string
		start, createdAt int64
	)
	if err := r.Scan(&id, &code, &rec.CreatorID, &start, &rec.DurationMinutes, &createdAt, &state); err != nil {
		return nil, err
	}
	rec.ID = domain.CallID(id)
	rec.Code = domain.CallCode(code)
	rec.State = domain.State(state)
	rec.StartTime = time.Unix(start, 0).UTC()
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &rec, nil
}

func (s *SQLite) getOne(ctx context.Context, where string, arg any) (*domain.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE `+where, arg)
	rec, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

func (s *SQLite) GetByID(ctx context.Context, id domain.CallID) (*domain.CallRecord, error) {
	return s.getOne(ctx, `id = ?`, string(id))
}

func (s *SQLite) GetByCode(ctx context.Context, code domain.CallCode) (*domain.CallRecord, error) {
	return s.getOne(ctx, `code = ?`, string(code))
}

func (s *SQLite) list(ctx context.Context, query string, args ...any) ([]*domain.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.CallRecord{}
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) ListByCreator(ctx context.Context, creatorID int64) ([]*domain.CallRecord, error) {
	return s.list(ctx, `SELECT `+callColumns+` FROM calls WHERE creator_id = ? ORDER BY seq`, creatorID)
}

func (s *SQLite) ListLive(ctx context.Context) ([]*domain.CallRecord, error) {
	return s.list(ctx, `SELECT `+callColumns+` FROM calls
		WHERE state NOT IN (?, ?) ORDER BY seq`,
		string(domain.StateExpired), string(domain.StateDeleted))
}

func (s *SQLite) ListOverdue(ctx context.Context, t time.Time) ([]*domain.CallRecord, error) {
	return s.list(ctx, `SELECT `+callColumns+` FROM calls
		WHERE state NOT IN (?, ?) AND end_time < ? ORDER BY seq`,
		string(domain.StateExpired), string(domain.StateDeleted), t.Unix())
}

func (s *SQLite) CompareAndSwapState(ctx context.Context, id domain.CallID, from, to domain.State) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE calls SET state = ? WHERE id = ? AND state = ?`,
		string(to), string(id), string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM calls WHERE id = ?`, string(id)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrNotFound
	}
	return false, err
}

func (s *SQLite) PruneTerminal(ctx context.Context, t time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM calls WHERE state IN (?, ?) AND end_time < ?`,
		string(domain.StateExpired), string(domain.StateDeleted), t.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
