// Package session holds per-session conversation state.
//
// A State is an append-only ordered list of turns. It is created per
// session, mutated only by appending, and never truncated by the core;
// size bounds are the store's own concern (the Redis store trims to a
// configured maximum).
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/randalmurphal/studykit/provider"
)

// State is the session handle the delegation engine writes through.
type State interface {
	// Append adds one turn to the end of the conversation.
	Append(ctx context.Context, role provider.Role, content string) error

	// History returns the ordered turn sequence so far.
	History(ctx context.Context) ([]provider.Message, error)
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}
