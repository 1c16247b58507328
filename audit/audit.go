// Package audit persists chat transcripts for later review.
//
// Audit logging is an external collaborator of the chat core: failures
// are reported to the caller but the core only ever logs them, never
// fails a chat turn over them. Two backends are provided, a SQLite
// database and a JSONL file.
package audit

import (
	"context"

	"github.com/randalmurphal/studykit/provider"
)

// Logger records chat turns grouped by session.
type Logger interface {
	// Begin records the start of a session.
	Begin(ctx context.Context, sessionID string) error

	// Log records one turn within a session.
	Log(ctx context.Context, sessionID string, role provider.Role, content string) error

	// Close flushes and releases the backend.
	Close() error
}
