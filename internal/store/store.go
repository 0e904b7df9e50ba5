// Package store persists geocode results keyed by normalized address,
// with TTL expiry, filtered bulk invalidation, and aggregate statistics.
package store

import (
	"context"
	"time"
)

// Entry is the persisted form of a geocode candidate. Multiple
// historical rows may exist per key; only the most recent non-expired
// one is authoritative.
type Entry struct {
	ID          string            `json:"id"`
	Key         string            `json:"key"` // sha256 hex of the normalized address
	Address     string            `json:"address"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	Confidence  int               `json:"confidence"`
	Provider    string            `json:"provider"`
	DisplayName string            `json:"display_name,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	RetrievedAt time.Time         `json:"retrieved_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// ClearFilter selects entries for bulk deletion. Zero values match
// everything.
type ClearFilter struct {
	OlderThan time.Duration // entries whose age exceeds this
	Provider  string
}

// CacheStats aggregates over all rows, expired or not. Oldest/Newest
// are zero when the cache is empty.
type CacheStats struct {
	TotalEntries int            `json:"total_entries"`
	PerProvider  map[string]int `json:"per_provider"`
	Oldest       time.Time      `json:"oldest,omitempty"`
	Newest       time.Time      `json:"newest,omitempty"`
}

// Store is the persistence interface for the geocode result cache.
type Store interface {
	// Save appends a new cache row.
	Save(ctx context.Context, e Entry) error

	// Lookup returns the most recent entry for key, or nil on a miss.
	// An expired entry is deleted during the read and reported as a miss.
	Lookup(ctx context.Context, key string, now time.Time) (*Entry, error)

	// Clear deletes entries matching the filter and returns the count.
	Clear(ctx context.Context, f ClearFilter) (int, error)

	// Stats aggregates entry counts and retrieval-time bounds.
	Stats(ctx context.Context) (*CacheStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
