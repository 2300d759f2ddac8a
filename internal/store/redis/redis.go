// Package redis provides a Redis-backed [store.Store], the recommended
// backend when sessions must survive restarts or be shared across replicas.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/qirat-ai/qirat/internal/store"
)

// Option is a functional option for configuring a [Store].
type Option func(*options)

type options struct {
	password string
	db       int
}

// WithPassword sets the AUTH password. Default: none.
func WithPassword(password string) Option {
	return func(o *options) {
		o.password = password
	}
}

// WithDB selects the logical Redis database. Default: 0.
func WithDB(db int) Option {
	return func(o *options) {
		o.db = db
	}
}

// Store is a [store.Store] backed by a single Redis instance. TTLs are
// enforced by Redis itself.
type Store struct {
	client *goredis.Client
}

// Ensure Store satisfies the store interface at compile time.
var _ store.Store = (*Store)(nil)

// New connects to the Redis instance at addr ("host:port") and verifies the
// connection before returning.
func New(ctx context.Context, addr string, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: o.password,
		DB:       o.db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", addr, err)
	}
	return &Store{client: client}, nil
}

// Set stores value under key with the given TTL (zero means no expiry).
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key, or [store.ErrNotFound].
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return val, nil
}

// Delete removes key and reports whether it existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return n > 0, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Keys returns all keys matching a Redis glob pattern. It scans per keyspace
// page rather than using the blocking KEYS command.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan %s: %w", pattern, err)
	}
	return keys, nil
}

// Ping verifies the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the underlying client connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
