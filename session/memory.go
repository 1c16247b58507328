package session

import (
	"context"
	"sync"

	"github.com/randalmurphal/studykit/provider"
)

// Memory is an in-process State for single-node use and tests.
type Memory struct {
	mu    sync.Mutex
	turns []provider.Message
}

// NewMemory creates an empty in-memory conversation state.
func NewMemory() *Memory {
	return &Memory{}
}

// Append implements State.
func (m *Memory) Append(_ context.Context, role provider.Role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, provider.Message{Role: role, Content: content})
	return nil
}

// History implements State.
func (m *Memory) History(_ context.Context) ([]provider.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.Message, len(m.turns))
	copy(out, m.turns)
	return out, nil
}
