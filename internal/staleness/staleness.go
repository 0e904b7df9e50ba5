// Package staleness flags stored coordinates that resolved only to a
// region centroid rather than a specific address, so callers know to
// re-geocode them even though coordinates technically exist.
package staleness

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/pkg/geocode"
)

// Defaults applied by NewClassifier when the corresponding Config
// field is zero.
const (
	DefaultThresholdDeg         = 0.05
	DefaultFreshWindow          = time.Hour
	DefaultMinTrustedConfidence = 80
)

// Config tunes the classifier. The centroid and threshold are
// deployment-specific and must come from configuration, never
// hard-coded per region.
type Config struct {
	CentroidLat          float64
	CentroidLon          float64
	ThresholdDeg         float64
	FreshWindow          time.Duration
	MinTrustedConfidence int
	TrustedProviders     []geocode.ProviderID
}

// Record is the stored coordinate under evaluation.
type Record struct {
	Latitude    float64
	Longitude   float64
	Confidence  int
	Provider    geocode.ProviderID
	RetrievedAt time.Time
}

// Source looks coordinate records up by host-side identifiers.
type Source interface {
	CoordinateRecord(ctx context.Context, setID, entityID string) (*Record, error)
}

// Classifier applies the too-generic heuristic against one configured
// region centroid.
type Classifier struct {
	cfg     Config
	trusted map[geocode.ProviderID]bool
	source  Source
	now     func() time.Time
}

// Option customizes a Classifier.
type Option func(*Classifier)

// WithSource attaches a record lookup used by IsTooGeneric.
func WithSource(s Source) Option {
	return func(c *Classifier) { c.source = s }
}

// WithClock overrides the freshness clock.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// NewClassifier builds a classifier, filling zero Config fields with
// defaults. The default trusted provider list contains the commercial
// geocoder.
func NewClassifier(cfg Config, opts ...Option) *Classifier {
	if cfg.ThresholdDeg <= 0 {
		cfg.ThresholdDeg = DefaultThresholdDeg
	}
	if cfg.FreshWindow <= 0 {
		cfg.FreshWindow = DefaultFreshWindow
	}
	if cfg.MinTrustedConfidence <= 0 {
		cfg.MinTrustedConfidence = DefaultMinTrustedConfidence
	}
	if cfg.TrustedProviders == nil {
		cfg.TrustedProviders = []geocode.ProviderID{geocode.ProviderGoogle}
	}

	c := &Classifier{
		cfg:     cfg,
		trusted: make(map[geocode.ProviderID]bool, len(cfg.TrustedProviders)),
		now:     time.Now,
	}
	for _, p := range cfg.TrustedProviders {
		c.trusted[p] = true
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TooGeneric reports whether rec looks like a centroid fallback. The
// rules short-circuit in order: a recently retrieved record is fresh,
// a high-confidence record is trusted, a record from a trusted
// provider is trusted, and only then is centroid proximity checked.
func (c *Classifier) TooGeneric(rec Record) bool {
	if !rec.RetrievedAt.IsZero() && c.now().Sub(rec.RetrievedAt) < c.cfg.FreshWindow {
		return false
	}
	if rec.Confidence >= c.cfg.MinTrustedConfidence {
		return false
	}
	if c.trusted[rec.Provider] {
		return false
	}
	dLat := abs(rec.Latitude - c.cfg.CentroidLat)
	dLon := abs(rec.Longitude - c.cfg.CentroidLon)
	return dLat < c.cfg.ThresholdDeg && dLon < c.cfg.ThresholdDeg
}

// IsTooGeneric looks the record up through the attached Source and
// classifies it, substituting lat for the stored latitude. A missing
// record is not stale.
func (c *Classifier) IsTooGeneric(ctx context.Context, lat float64, setID, entityID string) (bool, error) {
	if c.source == nil {
		return false, eris.New("staleness: no record source configured")
	}
	rec, err := c.source.CoordinateRecord(ctx, setID, entityID)
	if err != nil {
		return false, eris.Wrapf(err, "staleness: lookup record %s/%s", setID, entityID)
	}
	if rec == nil {
		return false, nil
	}
	r := *rec
	r.Latitude = lat
	return c.TooGeneric(r), nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
