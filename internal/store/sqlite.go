package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
CREATE TABLE IF NOT EXISTS geocode_cache (
	id           TEXT PRIMARY KEY,
	address_hash TEXT NOT NULL,
	address      TEXT NOT NULL,
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	confidence   INTEGER NOT NULL,
	provider     TEXT NOT NULL,
	display_name TEXT,
	metadata     TEXT,
	retrieved_at DATETIME NOT NULL,
	expires_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_hash ON geocode_cache(address_hash, retrieved_at);
CREATE INDEX IF NOT EXISTS idx_geocode_cache_provider ON geocode_cache(provider);
CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires_at ON geocode_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache
			(id, address_hash, address, latitude, longitude, confidence, provider, display_name, metadata, retrieved_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Key, e.Address, e.Latitude, e.Longitude, e.Confidence,
		e.Provider, e.DisplayName, string(metadataJSON),
		e.RetrievedAt.UTC(), e.ExpiresAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: save entry")
}

func (s *SQLiteStore) Lookup(ctx context.Context, key string, now time.Time) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, address_hash, address, latitude, longitude, confidence, provider, display_name, metadata, retrieved_at, expires_at
		 FROM geocode_cache
		 WHERE address_hash = ?
		 ORDER BY retrieved_at DESC LIMIT 1`,
		key,
	)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lookup entry")
	}

	if !e.ExpiresAt.After(now) {
		// Lazy expiry: delete the stale row and report a miss.
		if _, delErr := s.db.ExecContext(ctx, `DELETE FROM geocode_cache WHERE id = ?`, e.ID); delErr != nil {
			return nil, eris.Wrap(delErr, "sqlite: delete expired entry")
		}
		return nil, nil
	}
	return e, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, f ClearFilter) (int, error) {
	query := `DELETE FROM geocode_cache WHERE 1=1`
	var args []any

	if f.OlderThan > 0 {
		query += ` AND retrieved_at <= ?`
		args = append(args, time.Now().UTC().Add(-f.OlderThan))
	}
	if f.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, f.Provider)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear entries")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{PerProvider: make(map[string]int)}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM geocode_cache`)
	if err := row.Scan(&stats.TotalEntries); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats totals")
	}

	// MIN/MAX strip the column's declared type, so the driver would hand
	// back raw strings; select the column directly instead.
	if stats.TotalEntries > 0 {
		row = s.db.QueryRowContext(ctx,
			`SELECT retrieved_at FROM geocode_cache ORDER BY retrieved_at ASC LIMIT 1`)
		if err := row.Scan(&stats.Oldest); err != nil {
			return nil, eris.Wrap(err, "sqlite: stats oldest")
		}
		row = s.db.QueryRowContext(ctx,
			`SELECT retrieved_at FROM geocode_cache ORDER BY retrieved_at DESC LIMIT 1`)
		if err := row.Scan(&stats.Newest); err != nil {
			return nil, eris.Wrap(err, "sqlite: stats newest")
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, COUNT(*) FROM geocode_cache GROUP BY provider`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats per provider")
	}
	defer rows.Close()

	for rows.Next() {
		var provider string
		var count int
		if err := rows.Scan(&provider, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider count")
		}
		stats.PerProvider[provider] = count
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: stats iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*Entry, error) {
	var e Entry
	var displayName sql.NullString
	var metadataJSON sql.NullString

	err := row.Scan(&e.ID, &e.Key, &e.Address, &e.Latitude, &e.Longitude,
		&e.Confidence, &e.Provider, &displayName, &metadataJSON,
		&e.RetrievedAt, &e.ExpiresAt)
	if err != nil {
		return nil, err
	}

	if displayName.Valid {
		e.DisplayName = displayName.String
	}
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal metadata")
		}
	}
	return &e, nil
}
