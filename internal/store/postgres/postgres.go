// Package postgres provides a PostgreSQL-backed [store.Store] for
// deployments that already run Postgres and do not want a separate cache.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qirat-ai/qirat/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS kv_entries_expires_at_idx ON kv_entries (expires_at);
`

// globToLike converts the "prefix:*" glob patterns used for keys into SQL
// LIKE syntax, escaping LIKE's own wildcards first.
var globToLike = strings.NewReplacer(
	`\`, `\\`,
	`%`, `\%`,
	`_`, `\_`,
	`*`, `%`,
	`?`, `_`,
)

// Store is a [store.Store] backed by a PostgreSQL table. Expired rows are
// filtered on read and reaped opportunistically during [Store.Keys].
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store satisfies the store interface at compile time.
var _ store.Store = (*Store)(nil)

// New connects to Postgres using connString (a pgx connection string or URL),
// verifies the connection and creates the backing table when missing.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Set upserts value under key. A ttl of zero stores the row without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_entries (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = $3`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: set %s: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key, or [store.ErrNotFound] when the key
// is absent or expired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM kv_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %s: %w", key, err)
	}
	return value, nil
}

// Delete removes key and reports whether an unexpired row existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM kv_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: delete %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Exists reports whether key is present and unexpired.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM kv_entries
			WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
		)`,
		key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: exists %s: %w", key, err)
	}
	return exists, nil
}

// Keys returns all unexpired keys matching pattern, reaping expired rows
// along the way.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= now()`,
	); err != nil {
		return nil, fmt.Errorf("postgres: reap expired: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM kv_entries WHERE key LIKE $1`,
		globToLike.Replace(pattern),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: keys %s: %w", pattern, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: keys %s: %w", pattern, err)
	}
	return keys, nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
