// Package store persists matching results keyed by search fingerprint, with
// interchangeable SQLite and Postgres backends.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/clinimatch/clinimatch/internal/model"
)

// CacheStats summarizes the cache table for operational tooling.
type CacheStats struct {
	Entries int64     `json:"entries"`
	Expired int64     `json:"expired"`
	Oldest  time.Time `json:"oldest,omitempty"`
}

// CacheStore defines the result-cache persistence interface. Reads and
// writes are best-effort from the matcher's perspective; a miss is
// (nil, nil), never an error.
type CacheStore interface {
	// GetMatches returns the unexpired cached result for key, or nil.
	GetMatches(ctx context.Context, key string) (*model.MatchingResult, error)

	// PutMatches stores a result under key, replacing any previous entry.
	PutMatches(ctx context.Context, key string, result *model.MatchingResult, ttl time.Duration) error

	// Stats reports entry counts for the cache table.
	Stats(ctx context.Context) (CacheStats, error)

	// DeleteExpired removes entries past their TTL, returning the count.
	DeleteExpired(ctx context.Context) (int64, error)

	// Clear removes every entry, returning the count.
	Clear(ctx context.Context) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a CacheStore for the configured driver: "sqlite" with a file
// DSN, or "postgres" with a connection string.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (CacheStore, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
