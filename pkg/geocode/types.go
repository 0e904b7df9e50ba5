// Package geocode resolves street addresses to coordinates through a
// prioritized chain of external providers, with per-provider rate
// limiting and a TTL'd result cache.
package geocode

import (
	"context"
	"time"
)

// ProviderID identifies a geocoding backend.
type ProviderID string

// Known providers, in default priority order.
const (
	ProviderNominatim ProviderID = "nominatim"
	ProviderGoogle    ProviderID = "google"
)

// Candidate is a geocode result from a provider or the cache.
type Candidate struct {
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	Confidence  int               `json:"confidence"` // 0-100
	Provider    ProviderID        `json:"provider,omitempty"`
	DisplayName string            `json:"display_name,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	RetrievedAt time.Time         `json:"retrieved_at,omitzero"`
	Matched     bool              `json:"matched"`
}

// Usable reports whether the candidate carries valid coordinates:
// matched, within range, and not null island.
func (c *Candidate) Usable() bool {
	if c == nil || !c.Matched {
		return false
	}
	if c.Latitude == 0 && c.Longitude == 0 {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// QueryOptions carries per-request hints down to a provider adapter.
type QueryOptions struct {
	// Region is a 2-letter country code bias, empty for none.
	Region string
}

// Provider represents a single geocoding backend.
type Provider interface {
	Name() ProviderID
	Available() bool
	Geocode(ctx context.Context, query string, opts QueryOptions) (*Candidate, error)
}
