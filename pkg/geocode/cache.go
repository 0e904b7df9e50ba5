package geocode

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/locator-cli/internal/address"
	"github.com/sells-group/locator-cli/internal/store"
)

// NormalizeKey produces the canonical cache-key form of an address:
// lowercased, whitespace-collapsed, with `,;.:` stripped.
func NormalizeKey(raw string) string {
	s := address.Normalize(raw)
	s = strings.NewReplacer(".", "", ":", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// CacheKey returns the SHA-256 hex of the normalized address, used as
// the stored row key.
func CacheKey(raw string) string {
	h := sha256.Sum256([]byte(NormalizeKey(raw)))
	return fmt.Sprintf("%x", h)
}

// entryToCandidate rehydrates a cached row as a matched candidate.
func entryToCandidate(e *store.Entry) *Candidate {
	return &Candidate{
		Latitude:    e.Latitude,
		Longitude:   e.Longitude,
		Confidence:  e.Confidence,
		Provider:    ProviderID(e.Provider),
		DisplayName: e.DisplayName,
		Metadata:    e.Metadata,
		RetrievedAt: e.RetrievedAt,
		Matched:     true,
	}
}

// candidateToEntry builds the persisted form of a candidate.
func candidateToEntry(c *Candidate, key, normalized string, ttl time.Duration) store.Entry {
	return store.Entry{
		Key:         key,
		Address:     normalized,
		Latitude:    c.Latitude,
		Longitude:   c.Longitude,
		Confidence:  c.Confidence,
		Provider:    string(c.Provider),
		DisplayName: c.DisplayName,
		Metadata:    c.Metadata,
		RetrievedAt: c.RetrievedAt,
		ExpiresAt:   c.RetrievedAt.Add(ttl),
	}
}
