// Package storage persists all durable state in a single embedded sqlite
// database: the draft slot, the selection slot, the polling cursor, the
// seen-URL set and the append-only publish journal.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"NewsPublisher/internal/domain"
	"NewsPublisher/internal/ports"
)

const (
	slotDraft     = "current_draft"
	slotSelection = "waiting_selection"
)

const schema = `
CREATE TABLE IF NOT EXISTS slots (
    name     TEXT PRIMARY KEY,
    payload  TEXT NOT NULL,
    saved_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS poll_cursor (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    next_offset INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS seen_urls (
    url     TEXT PRIMARY KEY,
    seen_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS publish_log (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    day       TEXT NOT NULL,
    logged_at TEXT NOT NULL,
    position  INTEGER NOT NULL,
    ok        INTEGER NOT NULL,
    post_id   TEXT NOT NULL DEFAULT '',
    url       TEXT NOT NULL DEFAULT '',
    error     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS publish_log_day ON publish_log(day);
`

// Store implements every persistence port on one sqlite handle. The event
// loop is single-flight, so no row is ever touched by two writers at once.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	seenTTL time.Duration
	now     func() time.Time
}

var (
	_ ports.DraftStore     = (*Store)(nil)
	_ ports.SelectionStore = (*Store)(nil)
	_ ports.CursorStore    = (*Store)(nil)
	_ ports.SeenStore      = (*Store)(nil)
	_ ports.PublishLog     = (*Store)(nil)
)

// Open creates or opens the state database and applies the schema.
func Open(path string, seenTTL time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// A single connection sidesteps sqlite writer contention entirely.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if seenTTL <= 0 {
		seenTTL = 24 * time.Hour
	}

	return &Store{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		seenTTL: seenTTL,
		now:     time.Now,
	}, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock injects a deterministic clock for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// ---- draft slot ----

// SaveDraft overwrites the draft slot unconditionally.
func (s *Store) SaveDraft(ctx context.Context, draft domain.Draft) error {
	return s.saveSlot(ctx, slotDraft, draft)
}

// LoadDraft returns the pending draft, or nil when the slot is empty.
func (s *Store) LoadDraft(ctx context.Context) (*domain.Draft, error) {
	var draft domain.Draft
	ok, err := s.loadSlot(ctx, slotDraft, &draft)
	if err != nil || !ok {
		return nil, err
	}
	return &draft, nil
}

// ClearDraft removes the draft slot; clearing an empty slot is a no-op.
func (s *Store) ClearDraft(ctx context.Context) error {
	return s.clearSlot(ctx, slotDraft)
}

// ---- selection slot ----

// SaveSelection overwrites the selection slot unconditionally.
func (s *Store) SaveSelection(ctx context.Context, batch domain.SelectionBatch) error {
	return s.saveSlot(ctx, slotSelection, batch)
}

// LoadSelection returns the pending batch, treating an expired batch as
// absent and clearing it eagerly. The check runs on every read; there is no
// background sweep.
func (s *Store) LoadSelection(ctx context.Context) (*domain.SelectionBatch, error) {
	var batch domain.SelectionBatch
	ok, err := s.loadSlot(ctx, slotSelection, &batch)
	if err != nil || !ok {
		return nil, err
	}
	if batch.Expired(s.now()) {
		if err := s.clearSlot(ctx, slotSelection); err != nil {
			return nil, fmt.Errorf("clear expired selection: %w", err)
		}
		return nil, nil
	}
	return &batch, nil
}

// ClearSelection removes the selection slot; idempotent.
func (s *Store) ClearSelection(ctx context.Context) error {
	return s.clearSlot(ctx, slotSelection)
}

// ---- polling cursor ----

// LoadCursor returns the persisted offset, zero when never saved.
func (s *Store) LoadCursor(ctx context.Context) (int64, error) {
	query, args, err := s.builder.
		Select("next_offset").
		From("poll_cursor").
		Where(sq.Eq{"id": 1}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cursor query: %w", err)
	}

	var offset int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&offset); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	return offset, nil
}

// SaveCursor persists the offset before the fetched batch is processed, so
// a crash mid-processing never re-delivers events.
func (s *Store) SaveCursor(ctx context.Context, offset int64) error {
	query, args, err := s.builder.
		Insert("poll_cursor").
		Columns("id", "next_offset").
		Values(1, offset).
		Suffix("ON CONFLICT(id) DO UPDATE SET next_offset = excluded.next_offset").
		ToSql()
	if err != nil {
		return fmt.Errorf("build cursor upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// ---- seen URLs ----

// SeenURLs purges entries past the horizon, then returns the survivors.
func (s *Store) SeenURLs(ctx context.Context) (map[string]bool, error) {
	cutoff := s.now().Add(-s.seenTTL).UTC().Format(time.RFC3339)

	del, args, err := s.builder.
		Delete("seen_urls").
		Where(sq.Lt{"seen_at": cutoff}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build seen purge: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, del, args...); err != nil {
		return nil, fmt.Errorf("purge seen urls: %w", err)
	}

	query, args, err := s.builder.Select("url").From("seen_urls").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build seen query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seen urls: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan seen url: %w", err)
		}
		seen[url] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen urls: %w", err)
	}
	return seen, nil
}

// MarkSeen records a handled article URL.
func (s *Store) MarkSeen(ctx context.Context, url string) error {
	query, args, err := s.builder.
		Insert("seen_urls").
		Columns("url", "seen_at").
		Values(url, s.now().UTC().Format(time.RFC3339)).
		Suffix("ON CONFLICT(url) DO UPDATE SET seen_at = excluded.seen_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build seen upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// ---- publish journal ----

// AppendResult adds one row per attempted unit, keyed by publication date.
func (s *Store) AppendResult(ctx context.Context, res domain.PublishResult) error {
	now := s.now().UTC()
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}

	query, args, err := s.builder.
		Insert("publish_log").
		Columns("day", "logged_at", "position", "ok", "post_id", "url", "error").
		Values(now.Format("2006-01-02"), now.Format(time.RFC3339), res.Position, res.OK(), res.PostID, res.URL, errText).
		ToSql()
	if err != nil {
		return fmt.Errorf("build journal insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// ResultsForDay reads back the journal for one date, oldest first.
func (s *Store) ResultsForDay(ctx context.Context, day string) ([]domain.PublishResult, error) {
	query, args, err := s.builder.
		Select("position", "ok", "post_id", "url", "error").
		From("publish_log").
		Where(sq.Eq{"day": day}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build journal query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var results []domain.PublishResult
	for rows.Next() {
		var (
			res     domain.PublishResult
			ok      bool
			errText string
		)
		if err := rows.Scan(&res.Position, &ok, &res.PostID, &res.URL, &errText); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		if !ok {
			res.Err = errors.New(errText)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return results, nil
}

// ---- slot helpers ----

func (s *Store) saveSlot(ctx context.Context, name string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	query, args, err := s.builder.
		Insert("slots").
		Columns("name", "payload", "saved_at").
		Values(name, string(payload), s.now().UTC().Format(time.RFC3339)).
		Suffix("ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build %s upsert: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

func (s *Store) loadSlot(ctx context.Context, name string, out any) (bool, error) {
	query, args, err := s.builder.
		Select("payload").
		From("slots").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build %s query: %w", name, err)
	}

	var payload string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("load %s: %w", name, err)
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) clearSlot(ctx context.Context, name string) error {
	query, args, err := s.builder.
		Delete("slots").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build %s delete: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}
	return nil
}
