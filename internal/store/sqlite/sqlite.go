package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// HistoryStore implements store.HistoryLog for SQLite.
type HistoryStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	room_key TEXT NOT NULL,
	msg_key  TEXT NOT NULL,
	value    BLOB NOT NULL,
	PRIMARY KEY (room_key, msg_key)
);
`

// New creates a new SQLite-backed history store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*HistoryStore, error) {
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

	return &HistoryStore{db: db}, nil
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// Append durably stores a record under the given room and key. Re-appending
// the same key overwrites, so a replayed write is harmless.
func (s *HistoryStore) Append(ctx context.Context, room, key string, value []byte) error {
	query := `
		INSERT OR REPLACE INTO messages (room_key, msg_key, value)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, room, key, value); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListRecent returns up to limit records for a room, most recent first.
func (s *HistoryStore) ListRecent(ctx context.Context, room string, limit int) ([][]byte, error) {
	query := `
		SELECT value FROM messages
		WHERE room_key = ?
		ORDER BY msg_key DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var values [][]byte
	for rows.Next() {
		var value []byte
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return values, nil
}
