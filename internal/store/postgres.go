package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/clinimatch/clinimatch/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements CacheStore using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS trial_cache (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	search_key TEXT NOT NULL UNIQUE,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trial_cache_expires_at ON trial_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetMatches(ctx context.Context, key string) (*model.MatchingResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT result FROM trial_cache WHERE search_key = $1 AND expires_at > now()`,
		key,
	)

	var resultJSON []byte
	err := row.Scan(&resultJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get matches")
	}

	var result model.MatchingResult
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached result")
	}
	return &result, nil
}

func (s *PostgresStore) PutMatches(ctx context.Context, key string, result *model.MatchingResult, ttl time.Duration) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO trial_cache (id, search_key, result, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (search_key) DO UPDATE SET
		   result = EXCLUDED.result,
		   created_at = EXCLUDED.created_at,
		   expires_at = EXCLUDED.expires_at`,
		uuid.New().String(), key, resultJSON, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: put matches")
}

func (s *PostgresStore) Stats(ctx context.Context) (CacheStats, error) {
	var stats CacheStats

	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN expires_at <= now() THEN 1 ELSE 0 END), 0),
		        COALESCE(MIN(created_at), 'epoch'::timestamptz)
		 FROM trial_cache`,
	)
	if err := row.Scan(&stats.Entries, &stats.Expired, &stats.Oldest); err != nil {
		return stats, eris.Wrap(err, "postgres: cache stats")
	}
	return stats, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trial_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Clear(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trial_cache`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear")
	}
	return tag.RowsAffected(), nil
}
