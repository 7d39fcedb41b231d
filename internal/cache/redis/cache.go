// Package redis provides a Redis-backed cache.Store implementation for
// multi-node deployments, where usage counters and the denylist must be
// shared across processes.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/cache"
)

// Store implements cache.Store on a Redis client.
type Store struct {
	client *redis.Client
	logger zerolog.Logger
}

// Config holds the Redis connection settings the store needs.
type Config struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to Redis")

	return &Store{
		client: client,
		logger: logger.With().Str("component", "redis-cache").Logger(),
	}, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client exposes the underlying connection for collaborators that share
// it, such as the Redis locker.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Set stores a value with an optional TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}
	return n > 0, nil
}

// Delete removes a key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}
	return nil
}

// Increment atomically increments the counter at key. The TTL is
// applied only when the key is created (EXPIRE NX), matching the
// in-memory backend's behavior.
func (s *Store) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if ttl > 0 {
		pipe.ExpireNX(ctx, key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}

	return incr.Val(), nil
}

// Ensure Store implements cache.Store.
var _ cache.Store = (*Store)(nil)
