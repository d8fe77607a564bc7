// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists the per-owner message log with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is a fixed-width UTC ISO-8601 instant. Fixed width keeps
// lexicographic order identical to chronological order, so the strictly
// greater-than comparison in DeleteAfter can run on the TEXT column.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id        TEXT PRIMARY KEY,
			owner     TEXT NOT NULL,
			role      TEXT NOT NULL,
			content   TEXT NOT NULL,
			timestamp TEXT NOT NULL,

			CHECK (role IN ('user', 'assistant'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_owner_timestamp
			ON messages(owner, timestamp);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// LoadOrdered fetches all messages for owner, ascending by timestamp.
func (s *SQLiteStore) LoadOrdered(ctx context.Context, owner string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, role, content, timestamp
		FROM messages
		WHERE owner = ?
		ORDER BY timestamp ASC`, owner)
	if err != nil {
		return nil, storageErr("load", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var role, ts string
		if err := rows.Scan(&msg.ID, &msg.Owner, &role, &msg.Content, &ts); err != nil {
			return nil, storageErr("load", err)
		}
		msg.Role = Role(role)
		msg.Timestamp, err = time.Parse(timeLayout, ts)
		if err != nil {
			return nil, storageErr("load", fmt.Errorf("parsing timestamp %q: %w", ts, err))
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load", err)
	}
	return messages, nil
}

// Append inserts a message. Re-appending an existing ID is a no-op.
func (s *SQLiteStore) Append(ctx context.Context, msg *Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, owner, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		msg.ID, msg.Owner, string(msg.Role), msg.Content,
		msg.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return storageErr("append", err)
	}
	return nil
}

// ReplaceContent updates the content of an existing message in place.
func (s *SQLiteStore) ReplaceContent(ctx context.Context, id, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return storageErr("replace", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("replace", err)
	}
	if n == 0 {
		return storageErr("replace", fmt.Errorf("message %s: %w", id, ErrNotFound))
	}
	return nil
}

// DeleteAfter removes every message for owner strictly newer than ts.
// The message at exactly ts is retained.
func (s *SQLiteStore) DeleteAfter(ctx context.Context, owner string, ts time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE owner = ? AND timestamp > ?`,
		owner, ts.UTC().Format(timeLayout))
	if err != nil {
		return storageErr("delete_after", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Debug("truncated message log", "owner", owner, "removed", n)
	}
	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
