package cache

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Store caches serialized upstream payloads between fetches so slow
// aggregator endpoints are hit at most once per TTL window. Implementations
// are best-effort: a miss or a backend failure just means re-fetching.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
}

// GetJSON decodes a cached JSON payload into out. Undecodable entries
// count as misses so a schema change invalidates stale payloads naturally.
func GetJSON(ctx context.Context, s Store, key string, out any) bool {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// SetJSON stores v as JSON under key. Values that fail to marshal are
// simply not cached.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.Set(ctx, key, raw, ttl)
}

// NewAuto returns a Redis-backed store when REDIS_ADDR is set, otherwise
// the in-memory one.
func NewAuto() Store {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return NewRedis(redis.NewClient(&redis.Options{Addr: addr}))
	}
	return NewMemory()
}

// sweepThreshold bounds how large the memory store grows before Set prunes
// expired entries.
const sweepThreshold = 256

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemory returns an in-process store. Entries are copied in and out, so
// callers cannot alias cached payloads.
func NewMemory() Store {
	return &memoryStore{entries: make(map[string]memoryEntry)}
}

func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		return nil, false
	}
	return append([]byte(nil), e.payload...), true
}

func (s *memoryStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if len(s.entries) >= sweepThreshold {
		for k, e := range s.entries {
			if e.expired(now) {
				delete(s.entries, k)
			}
		}
	}

	e := memoryEntry{payload: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.entries[key] = e
}

type redisStore struct {
	client *redis.Client
}

// NewRedis wraps an existing Redis client as a Store. Errors degrade to
// cache misses; the caller's context bounds every round trip.
func NewRedis(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (s *redisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	_ = s.client.Set(ctx, key, val, ttl).Err()
}
