// Package history keeps a log of messages that crossed the gateway, one row
// per delivered IRC line.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Direction of a logged message relative to the IRC client.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Entry is one logged message.
type Entry struct {
	ID        int64
	Account   string
	Channel   string
	Sender    string
	Body      string
	Direction string
	CreatedAt time.Time
}

// Store persists entries in SQLite.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	account    TEXT NOT NULL,
	channel    TEXT NOT NULL,
	sender     TEXT NOT NULL,
	body       TEXT NOT NULL,
	direction  TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_account ON messages(account, id);
`

// Open creates a store at dbPath, applying the schema if needed.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one entry to the log.
func (s *Store) Record(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO messages (account, channel, sender, body, direction)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, e.Account, e.Channel, e.Sender, e.Body, e.Direction); err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	return nil
}

// Recent returns up to limit entries for an account, newest first.
func (s *Store) Recent(ctx context.Context, account string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, account, channel, sender, body, direction, created_at
		FROM messages
		WHERE account = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, account, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Account, &e.Channel, &e.Sender, &e.Body, &e.Direction, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
