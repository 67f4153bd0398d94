package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mfekete/exfil/backend/internal/config"
)

// NewConnection creates a PostgreSQL connection pool with the given configuration.
func NewConnection(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the settings table when it does not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS settings (
			scope      TEXT        NOT NULL,
			key        TEXT        NOT NULL,
			value      TEXT        NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (scope, key)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}
	return nil
}

// PGStore persists the local, synced and managed scopes in Postgres.
// The session scope lives in memory and dies with the process.
type PGStore struct {
	pool *pgxpool.Pool

	mu      sync.RWMutex
	session map[string]string
}

var _ Store = (*PGStore)(nil)

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{
		pool:    pool,
		session: make(map[string]string),
	}
}

func (s *PGStore) Set(ctx context.Context, scope Scope, key, value string) error {
	if scope == ScopeSession {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.session[key] = value
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (scope, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (scope, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, string(scope), key, value)

	if err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", scope, key, err)
	}

	return nil
}

func (s *PGStore) Get(ctx context.Context, scope Scope, key string) (string, error) {
	if scope == ScopeSession {
		s.mu.RLock()
		defer s.mu.RUnlock()
		value, ok := s.session[key]
		if !ok {
			return "", ErrNotFound
		}
		return value, nil
	}

	var value string
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM settings WHERE scope = $1 AND key = $2
	`, string(scope), key).Scan(&value)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}

	if err != nil {
		return "", fmt.Errorf("failed to get %s/%s: %w", scope, key, err)
	}

	return value, nil
}
