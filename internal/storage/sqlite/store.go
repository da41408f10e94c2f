// Package sqlite provides the SQLite-backed session journal.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/boardframe/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/boardframe/internal/storage"
	"github.com/louisbranch/boardframe/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed journal persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a journal SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append persists one journal entry.
func (s *Store) Append(ctx context.Context, entry storage.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	entry.SessionID = strings.TrimSpace(entry.SessionID)
	if entry.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if entry.Kind == "" {
		return fmt.Errorf("entry kind is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO journal_entries (
	session_id,
	kind,
	sequence,
	name,
	payload,
	detail,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		entry.SessionID,
		string(entry.Kind),
		entry.Sequence,
		entry.Name,
		entry.Payload,
		entry.Detail,
		entry.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// List returns a session's entries in append order.
func (s *Store) List(ctx context.Context, sessionID string) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	session_id,
	kind,
	sequence,
	name,
	payload,
	detail,
	created_at
FROM journal_entries
WHERE session_id = ?
ORDER BY id ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []storage.Entry
	for rows.Next() {
		var entry storage.Entry
		var kind string
		var createdAt int64
		if err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&kind,
			&entry.Sequence,
			&entry.Name,
			&entry.Payload,
			&entry.Detail,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entry.Kind = storage.EntryKind(kind)
		entry.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return entries, nil
}

var _ storage.Journal = (*Store)(nil)
