package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/db"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests).
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	id           UUID PRIMARY KEY,
	address_hash TEXT NOT NULL,
	address      TEXT NOT NULL,
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	confidence   INTEGER NOT NULL,
	provider     TEXT NOT NULL,
	display_name TEXT,
	metadata     JSONB,
	retrieved_at TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_hash ON geocode_cache(address_hash, retrieved_at);
CREATE INDEX IF NOT EXISTS idx_geocode_cache_provider ON geocode_cache(provider);
CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires_at ON geocode_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metadata")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO geocode_cache
			(id, address_hash, address, latitude, longitude, confidence, provider, display_name, metadata, retrieved_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Key, e.Address, e.Latitude, e.Longitude, e.Confidence,
		e.Provider, nilIfEmpty(e.DisplayName), string(metadataJSON),
		e.RetrievedAt.UTC(), e.ExpiresAt.UTC(),
	)
	return eris.Wrap(err, "postgres: save entry")
}

func (s *PostgresStore) Lookup(ctx context.Context, key string, now time.Time) (*Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, address_hash, address, latitude, longitude, confidence, provider, display_name, metadata, retrieved_at, expires_at
		 FROM geocode_cache
		 WHERE address_hash = $1
		 ORDER BY retrieved_at DESC LIMIT 1`,
		key,
	)

	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lookup entry")
	}

	if !e.ExpiresAt.After(now) {
		if _, delErr := s.pool.Exec(ctx, `DELETE FROM geocode_cache WHERE id = $1`, e.ID); delErr != nil {
			return nil, eris.Wrap(delErr, "postgres: delete expired entry")
		}
		return nil, nil
	}
	return e, nil
}

func (s *PostgresStore) Clear(ctx context.Context, f ClearFilter) (int, error) {
	query := `DELETE FROM geocode_cache WHERE 1=1`
	var args []any

	if f.OlderThan > 0 {
		args = append(args, time.Now().UTC().Add(-f.OlderThan))
		query += ` AND retrieved_at <= $1`
	}
	if f.Provider != "" {
		args = append(args, f.Provider)
		if len(args) == 1 {
			query += ` AND provider = $1`
		} else {
			query += ` AND provider = $2`
		}
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear entries")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{PerProvider: make(map[string]int)}

	var oldest, newest *time.Time
	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(retrieved_at), MAX(retrieved_at) FROM geocode_cache`,
	)
	if err := row.Scan(&stats.TotalEntries, &oldest, &newest); err != nil {
		return nil, eris.Wrap(err, "postgres: stats totals")
	}
	if oldest != nil {
		stats.Oldest = *oldest
	}
	if newest != nil {
		stats.Newest = *newest
	}

	rows, err := s.pool.Query(ctx,
		`SELECT provider, COUNT(*) FROM geocode_cache GROUP BY provider`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats per provider")
	}
	defer rows.Close()

	for rows.Next() {
		var provider string
		var count int
		if err := rows.Scan(&provider, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider count")
		}
		stats.PerProvider[provider] = count
	}
	return stats, eris.Wrap(rows.Err(), "postgres: stats iterate")
}

// nilIfEmpty returns nil for empty strings, allowing NULL storage.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
