package store

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"newsroom/internal/logger"
)

// SeenStore remembers which message identifiers have been ingested.
type SeenStore interface {
	// Seen reports whether id was recorded before.
	Seen(ctx context.Context, id string) bool
	// Add records id and reports whether it was new.
	Add(ctx context.Context, id string) bool
	// Len returns how many ids this process knows about.
	Len() int
}

// MemorySeen is an in-process SeenStore.
type MemorySeen struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewMemorySeen creates an empty in-memory store.
func NewMemorySeen() *MemorySeen {
	return &MemorySeen{ids: make(map[string]struct{})}
}

func (m *MemorySeen) Seen(_ context.Context, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ids[id]
	return ok
}

func (m *MemorySeen) Add(_ context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[id]; ok {
		return false
	}
	m.ids[id] = struct{}{}
	return true
}

func (m *MemorySeen) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// RedisSeen keeps the seen set in Redis so it survives restarts.
// A local set sits in front of it; when Redis is unreachable the store
// fails open and relies on the local set alone.
type RedisSeen struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	local  *MemorySeen
}

// NewRedisSeen creates a Redis-backed store. A zero ttl keeps keys forever.
func NewRedisSeen(rdb *redis.Client, prefix string, ttl time.Duration) *RedisSeen {
	return &RedisSeen{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		local:  NewMemorySeen(),
	}
}

// NewRedisSeenFromURL parses a redis:// URL and builds the store.
func NewRedisSeenFromURL(url, prefix string, ttl time.Duration) (*RedisSeen, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisSeen(redis.NewClient(opts), prefix, ttl), nil
}

func (s *RedisSeen) key(id string) string {
	return s.prefix + id
}

func (s *RedisSeen) Seen(ctx context.Context, id string) bool {
	if s.local.Seen(ctx, id) {
		return true
	}
	n, err := s.rdb.Exists(ctx, s.key(id)).Result()
	if err != nil {
		logger.Warn("Redis seen check failed, using local set", "error", err.Error())
		return false
	}
	if n > 0 {
		s.local.Add(ctx, id)
		return true
	}
	return false
}

func (s *RedisSeen) Add(ctx context.Context, id string) bool {
	if !s.local.Add(ctx, id) {
		return false
	}
	ok, err := s.rdb.SetNX(ctx, s.key(id), 1, s.ttl).Result()
	if err != nil {
		logger.Warn("Redis seen write failed, allowing message", "error", err.Error())
		return true
	}
	return ok
}

func (s *RedisSeen) Len() int {
	return s.local.Len()
}

// Close releases the Redis connection.
func (s *RedisSeen) Close() error {
	return s.rdb.Close()
}
