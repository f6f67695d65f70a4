package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultSessionTTL is how long an abandoned conversation is kept
const DefaultSessionTTL = 30 * time.Minute

// SessionStore holds conversation state keyed by session id. Loading an
// unknown or expired session yields the Idle state.
type SessionStore interface {
	Load(ctx context.Context, session string) (State, error)
	Save(ctx context.Context, session string, state State) error
	Delete(ctx context.Context, session string) error
}

type memoryEntry struct {
	state   State
	expires time.Time
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an in-memory store. ttl <= 0 uses DefaultSessionTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Load implements SessionStore.Load
func (s *MemoryStore) Load(_ context.Context, session string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[session]
	if !ok {
		return Idle(), nil
	}
	if s.now().After(entry.expires) {
		delete(s.sessions, session)
		return Idle(), nil
	}
	return entry.state, nil
}

// Save implements SessionStore.Save. Saving Idle removes the session.
func (s *MemoryStore) Save(_ context.Context, session string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state.IsIdle() {
		delete(s.sessions, session)
		return nil
	}
	s.sessions[session] = memoryEntry{state: state, expires: s.now().Add(s.ttl)}
	return nil
}

// Delete implements SessionStore.Delete
func (s *MemoryStore) Delete(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, session)
	return nil
}

// Len returns the number of live sessions
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, entry := range s.sessions {
		if !now.After(entry.expires) {
			n++
		}
	}
	return n
}

const redisKeyPrefix = "wifi-registry:enrichment:"

// RedisStore keeps sessions in Redis as JSON values with a TTL, so several
// service instances can serve the same conversation
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a Redis client for the session store
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisStore creates a Redis-backed store. ttl <= 0 uses DefaultSessionTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Ping checks the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Load implements SessionStore.Load
func (s *RedisStore) Load(ctx context.Context, session string) (State, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+session).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Idle(), nil
		}
		return State{}, fmt.Errorf("failed to load session: %w", err)
	}

	var state State
	if err := json.Unmarshal(val, &state); err != nil {
		return State{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return state, nil
}

// Save implements SessionStore.Save. Saving Idle removes the session.
func (s *RedisStore) Save(ctx context.Context, session string, state State) error {
	if state.IsIdle() {
		return s.Delete(ctx, session)
	}

	val, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+session, val, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete implements SessionStore.Delete
func (s *RedisStore) Delete(ctx context.Context, session string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+session).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
