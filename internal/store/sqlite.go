// Package store keeps the local activity journal, preferences and Gmail
// import bookkeeping. Submissions themselves live only on the service.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"

	_ "modernc.org/sqlite"
)

// Activity is one journal entry.
type Activity struct {
	ID     int64
	At     time.Time
	Kind   string
	Detail string
	OK     bool
}

// Preference keys.
const (
	PrefPageSize = "page_size"
	PrefFilter   = "filter"
)

// SQLiteStore is the journal backed by a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at the given path and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS activity (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	at     TEXT NOT NULL,
	kind   TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	ok     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS prefs (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS gmail_imports (
	message_id    TEXT PRIMARY KEY,
	submission_id INTEGER NOT NULL,
	imported_at   TEXT NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record appends an entry to the journal. A zero At is stamped with the current time.
func (s *SQLiteStore) Record(ctx context.Context, a Activity) error {
	if a.At.IsZero() {
		a.At = s.now()
	}
	q, args, err := sq.Insert("activity").
		Columns("at", "kind", "detail", "ok").
		Values(a.At.UTC().Format(time.RFC3339Nano), a.Kind, a.Detail, a.OK).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// RecentActivity returns up to limit entries, newest first. kind filters when non-empty.
func (s *SQLiteStore) RecentActivity(ctx context.Context, limit int, kind string) ([]Activity, error) {
	b := sq.Select("id", "at", "kind", "detail", "ok").
		From("activity").
		OrderBy("id DESC")
	if kind != "" {
		b = b.Where(sq.Eq{"kind": kind})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var (
			a  Activity
			at string
		)
		if err := rows.Scan(&a.ID, &at, &a.Kind, &a.Detail, &a.OK); err != nil {
			return nil, err
		}
		a.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, a)
	}
	return out, rows.Err()
}

// PruneActivity drops all but the newest keep entries.
func (s *SQLiteStore) PruneActivity(ctx context.Context, keep int) error {
	sub := sq.Select("id").From("activity").OrderBy("id DESC").Limit(uint64(max(keep, 0)))
	q, args, err := sq.Delete("activity").
		Where(sq.Expr("id NOT IN (?)", sub)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build prune: %w", err)
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *SQLiteStore) SetPref(ctx context.Context, key, value string) error {
	q, args, err := sq.Insert("prefs").
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

// Pref returns the stored value for key and whether it was set.
func (s *SQLiteStore) Pref(ctx context.Context, key string) (string, bool, error) {
	q, args, err := sq.Select("value").From("prefs").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build select: %w", err)
	}
	var val string
	err = s.db.QueryRowContext(ctx, q, args...).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// RecordImport remembers which submission a Gmail message became.
func (s *SQLiteStore) RecordImport(ctx context.Context, messageID string, submissionID int64) error {
	q, args, err := sq.Insert("gmail_imports").
		Columns("message_id", "submission_id", "imported_at").
		Values(messageID, submissionID, s.now().UTC().Format(time.RFC3339Nano)).
		Suffix(`ON CONFLICT(message_id) DO UPDATE SET
			submission_id = excluded.submission_id,
			imported_at   = excluded.imported_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

// ImportedSubmission reports the submission a Gmail message was imported as, if any.
func (s *SQLiteStore) ImportedSubmission(ctx context.Context, messageID string) (int64, bool, error) {
	q, args, err := sq.Select("submission_id").From("gmail_imports").Where(sq.Eq{"message_id": messageID}).ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build select: %w", err)
	}
	var id int64
	err = s.db.QueryRowContext(ctx, q, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
