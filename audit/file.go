package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/randalmurphal/studykit/provider"
)

// entry is one JSONL record.
type entry struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	Event     string `json:"event,omitempty"`
	At        string `json:"at"`
}

// File is a Logger that appends JSONL records to a file.
type File struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// OpenFile opens (creating if needed) the JSONL audit log at path.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &File{f: f, enc: json.NewEncoder(f)}, nil
}

// Begin implements Logger.
func (l *File) Begin(_ context.Context, sessionID string) error {
	return l.write(entry{SessionID: sessionID, Event: "session_start", At: now()})
}

// Log implements Logger.
func (l *File) Log(_ context.Context, sessionID string, role provider.Role, content string) error {
	return l.write(entry{SessionID: sessionID, Role: string(role), Content: content, At: now()})
}

// Close implements Logger.
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

func (l *File) write(e entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(e); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}
