package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/clinimatch/clinimatch/internal/model"
)

// SQLiteStore implements CacheStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS trial_cache (
	id         TEXT PRIMARY KEY,
	search_key TEXT NOT NULL UNIQUE,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trial_cache_expires_at ON trial_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetMatches(ctx context.Context, key string) (*model.MatchingResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT result FROM trial_cache WHERE search_key = ? AND expires_at > datetime('now')`,
		key,
	)

	var resultJSON string
	err := row.Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get matches")
	}

	var result model.MatchingResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached result")
	}
	return &result, nil
}

func (s *SQLiteStore) PutMatches(ctx context.Context, key string, result *model.MatchingResult, ttl time.Duration) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trial_cache (id, search_key, result, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(search_key) DO UPDATE SET
		   result = excluded.result,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		uuid.New().String(), key, string(resultJSON), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: put matches")
}

func (s *SQLiteStore) Stats(ctx context.Context) (CacheStats, error) {
	var stats CacheStats

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN expires_at <= datetime('now') THEN 1 ELSE 0 END), 0)
		 FROM trial_cache`,
	)
	if err := row.Scan(&stats.Entries, &stats.Expired); err != nil {
		return stats, eris.Wrap(err, "sqlite: cache stats")
	}

	var oldest sql.NullTime
	// Select the column directly instead of MIN(created_at): aggregate
	// expressions carry no declared type, so the driver would return a
	// string that sql.NullTime cannot scan.
	row = s.db.QueryRowContext(ctx, `SELECT created_at FROM trial_cache ORDER BY created_at LIMIT 1`)
	if err := row.Scan(&oldest); err != nil && err != sql.ErrNoRows {
		return stats, eris.Wrap(err, "sqlite: cache stats oldest")
	}
	if oldest.Valid {
		stats.Oldest = oldest.Time
	}
	return stats, nil
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM trial_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired")
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trial_cache`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear")
	}
	return res.RowsAffected()
}
