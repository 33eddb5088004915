package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Cache stores parsed blocks by key. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (*Block, bool, error)
	Put(ctx context.Context, b *Block) error
}

var _ Cache = (*Store)(nil)

// Memo is an in-process LRU in front of an optional backing cache. Hits from
// the backing cache are promoted into the LRU.
type Memo struct {
	recent *lru.Cache[string, *Block]
	next   Cache
}

// NewMemo creates a memo holding up to size blocks. next may be nil.
func NewMemo(size int, next Cache) (*Memo, error) {
	recent, err := lru.New[string, *Block](size)
	if err != nil {
		return nil, fmt.Errorf("create block memo: %w", err)
	}
	return &Memo{recent: recent, next: next}, nil
}

func (m *Memo) Get(ctx context.Context, key string) (*Block, bool, error) {
	if b, ok := m.recent.Get(key); ok {
		return b, true, nil
	}
	if m.next == nil {
		return nil, false, nil
	}
	b, ok, err := m.next.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	m.recent.Add(key, b)
	return b, true, nil
}

func (m *Memo) Put(ctx context.Context, b *Block) error {
	m.recent.Add(b.Key, b)
	if m.next == nil {
		return nil
	}
	return m.next.Put(ctx, b)
}

// Len returns the number of blocks held in memory.
func (m *Memo) Len() int { return m.recent.Len() }

const redisKeyPrefix = "lineage:block:"

// RedisCache shares parsed blocks between processes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to url and verifies the connection. A zero ttl keeps
// entries forever.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisCacheFromClient(client, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) (*Block, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, false, fmt.Errorf("unmarshal block %s: %w", key, err)
	}
	return &b, true, nil
}

func (r *RedisCache) Put(ctx context.Context, b *Block) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+b.Key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", b.Key, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
