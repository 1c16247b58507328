package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/randalmurphal/studykit/provider"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	session_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_logs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_logs_session ON chat_logs(session_id);
`

// SQLite is a Logger backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the audit database at path.
// Use ":memory:" for an ephemeral database in tests.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Begin implements Logger.
func (s *SQLite) Begin(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chat_sessions (session_id, started_at) VALUES (?, ?)`,
		sessionID, now())
	if err != nil {
		return fmt.Errorf("begin audit session: %w", err)
	}
	return nil
}

// Log implements Logger.
func (s *SQLite) Log(ctx context.Context, sessionID string, role provider.Role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_logs (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, string(role), content, now())
	if err != nil {
		return fmt.Errorf("log audit turn: %w", err)
	}
	return nil
}

// Close implements Logger.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Turns returns the logged turns for a session in insertion order.
func (s *SQLite) Turns(ctx context.Context, sessionID string) ([]provider.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM chat_logs WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query audit turns: %w", err)
	}
	defer rows.Close()

	var turns []provider.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan audit turn: %w", err)
		}
		turns = append(turns, provider.Message{Role: provider.Role(role), Content: content})
	}
	return turns, rows.Err()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
