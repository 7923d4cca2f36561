package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	cerrors "github.com/genesis-core/genesis-core/internal/errors"
)

// ScoreMemory is the per-run fingerprint→score cache, keyed by param
// fingerprint. The in-process map backend is the default; an optional
// Redis backend lets a distributed worker pool share score memory
// across processes.
type ScoreMemory interface {
	Get(ctx context.Context, fingerprint string) (float64, bool, error)
	Set(ctx context.Context, fingerprint string, score float64) error
	HitRatio() float64
}

// InProcessScoreMemory is the default backend: a mutex-guarded map.
type InProcessScoreMemory struct {
	mu     sync.Mutex
	scores map[string]float64
	hits   int
	misses int
}

// NewInProcessScoreMemory constructs an empty in-process score cache.
func NewInProcessScoreMemory() *InProcessScoreMemory {
	return &InProcessScoreMemory{scores: make(map[string]float64)}
}

func (m *InProcessScoreMemory) Get(_ context.Context, fingerprint string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score, ok := m.scores[fingerprint]
	if ok {
		m.hits++
	} else {
		m.misses++
	}
	return score, ok, nil
}

func (m *InProcessScoreMemory) Set(_ context.Context, fingerprint string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[fingerprint] = score
	return nil
}

// HitRatio reports the running cache hit ratio, a study-run diagnostic.
func (m *InProcessScoreMemory) HitRatio() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := m.hits + m.misses
	if total == 0 {
		return 0
	}
	return float64(m.hits) / float64(total)
}

// RedisScoreMemory is the optional distributed backend. The optimize
// command always uses InProcessScoreMemory and never constructs this one.
type RedisScoreMemory struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	mu     sync.Mutex
	hits   int
	misses int
}

// NewRedisScoreMemory constructs a score-memory backend over a Redis client.
func NewRedisScoreMemory(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisScoreMemory {
	return &RedisScoreMemory{client: client, prefix: keyPrefix, ttl: ttl}
}

func (m *RedisScoreMemory) Get(ctx context.Context, fingerprint string) (float64, bool, error) {
	val, err := m.client.Get(ctx, m.prefix+fingerprint).Result()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == redis.Nil {
		m.misses++
		return 0, false, nil
	}
	if err != nil {
		return 0, false, cerrors.Transient("redis score-memory get failed", err)
	}
	score, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, cerrors.FatalData("corrupt score-memory value", err)
	}
	m.hits++
	return score, true, nil
}

func (m *RedisScoreMemory) Set(ctx context.Context, fingerprint string, score float64) error {
	err := m.client.Set(ctx, m.prefix+fingerprint, strconv.FormatFloat(score, 'g', -1, 64), m.ttl).Err()
	if err != nil {
		return cerrors.Transient("redis score-memory set failed", err)
	}
	return nil
}

func (m *RedisScoreMemory) HitRatio() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := m.hits + m.misses
	if total == 0 {
		return 0
	}
	return float64(m.hits) / float64(total)
}
