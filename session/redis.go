package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/randalmurphal/studykit/provider"
)

// Defaults for Redis-backed sessions.
const (
	DefaultMaxTurns = 100
	DefaultTTL      = time.Hour
)

// RedisStore is a Redis-backed State: one list per session, trimmed to a
// maximum turn count, with the key TTL refreshed on every append.
type RedisStore struct {
	rdb      redis.UniversalClient
	id       string
	maxTurns int
	ttl      time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithMaxTurns caps the retained turn count per session.
func WithMaxTurns(n int) RedisOption {
	return func(s *RedisStore) {
		s.maxTurns = n
	}
}

// WithTTL sets the session key time-to-live.
func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = d
	}
}

// NewRedisStore creates the state for one session identified by id.
func NewRedisStore(rdb redis.UniversalClient, id string, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:      rdb,
		id:       id,
		maxTurns: DefaultMaxTurns,
		ttl:      DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key() string {
	return "chat:" + s.id
}

// Append implements State. The turn is pushed, the list trimmed to the
// newest maxTurns entries, and the TTL refreshed, all in one pipeline.
func (s *RedisStore) Append(ctx context.Context, role provider.Role, content string) error {
	data, err := json.Marshal(provider.Message{Role: role, Content: content})
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, s.key(), data)
	pipe.LTrim(ctx, s.key(), int64(-s.maxTurns), -1)
	pipe.Expire(ctx, s.key(), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append turn to session %s: %w", s.id, err)
	}
	return nil
}

// History implements State.
func (s *RedisStore) History(ctx context.Context) ([]provider.Message, error) {
	raw, err := s.rdb.LRange(ctx, s.key(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", s.id, err)
	}
	turns := make([]provider.Message, 0, len(raw))
	for _, item := range raw {
		var msg provider.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode turn in session %s: %w", s.id, err)
		}
		turns = append(turns, msg)
	}
	return turns, nil
}
