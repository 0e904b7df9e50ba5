package geocode

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/locator-cli/internal/store"
)

// DefaultCacheTTL is how long a cached result stays authoritative.
const DefaultCacheTTL = 30 * 24 * time.Hour

// Orchestrator tries geocode providers in priority order until one
// returns a usable candidate, consulting and populating the result
// cache around the provider calls.
type Orchestrator struct {
	providers    []Provider
	store        store.Store
	pacer        *Pacer
	cacheEnabled bool
	cacheTTL     time.Duration
	timeout      time.Duration
	region       string
	now          func() time.Time
	flight       singleflight.Group
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithStore attaches the result cache backend.
func WithStore(s store.Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithPacer attaches per-provider rate limiting.
func WithPacer(p *Pacer) Option {
	return func(o *Orchestrator) { o.pacer = p }
}

// WithCacheEnabled enables or disables cache consultation.
func WithCacheEnabled(enabled bool) Option {
	return func(o *Orchestrator) { o.cacheEnabled = enabled }
}

// WithCacheTTL overrides the default entry lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.cacheTTL = ttl
		}
	}
}

// WithTimeout sets the per-provider request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRegion sets the default 2-letter region bias.
func WithRegion(cc string) Option {
	return func(o *Orchestrator) { o.region = cc }
}

// WithClock sets a fixed time source for testing.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an Orchestrator over providers in priority
// order.
func NewOrchestrator(providers []Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers:    providers,
		pacer:        NewPacer(),
		cacheEnabled: true,
		cacheTTL:     DefaultCacheTTL,
		timeout:      30 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CallOption adjusts a single Geocode call.
type CallOption func(*callConfig)

type callConfig struct {
	providers []Provider
	useCache  bool
	ttl       time.Duration
	region    string
	timeout   time.Duration
}

// WithProviderOrder restricts and reorders the providers tried by one
// call. Unknown identifiers are ignored.
func WithProviderOrder(ids ...ProviderID) CallOption {
	return func(c *callConfig) {
		byID := make(map[ProviderID]Provider, len(c.providers))
		for _, p := range c.providers {
			byID[p.Name()] = p
		}
		var ordered []Provider
		for _, id := range ids {
			if p, ok := byID[id]; ok {
				ordered = append(ordered, p)
			}
		}
		c.providers = ordered
	}
}

// WithoutCache disables cache consultation and population for one call.
func WithoutCache() CallOption {
	return func(c *callConfig) { c.useCache = false }
}

// WithCallTTL overrides the cache TTL for the result of one call.
func WithCallTTL(ttl time.Duration) CallOption {
	return func(c *callConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRegionBias sets the 2-letter region bias for one call.
func WithRegionBias(cc string) CallOption {
	return func(c *callConfig) { c.region = cc }
}

// WithCallTimeout overrides the per-provider timeout for one call.
func WithCallTimeout(d time.Duration) CallOption {
	return func(c *callConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Geocode resolves an address to the first usable candidate. All
// provider and cache failures are contained: the caller sees either a
// usable candidate or Matched=false, never a transport error. The
// returned error is non-nil only when the context is cancelled while
// waiting on the rate limiter.
func (o *Orchestrator) Geocode(ctx context.Context, addr string, opts ...CallOption) (*Candidate, error) {
	cfg := callConfig{
		providers: o.providers,
		useCache:  o.cacheEnabled && o.store != nil,
		ttl:       o.cacheTTL,
		region:    o.region,
		timeout:   o.timeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if strings.TrimSpace(addr) == "" {
		return &Candidate{Matched: false}, nil
	}

	key := CacheKey(addr)
	normalized := NormalizeKey(addr)

	if cfg.useCache {
		if cached := o.checkCache(ctx, key); cached != nil {
			return cached, nil
		}
	}

	// Concurrent lookups for the same normalized address collapse
	// into one provider cascade.
	v, err, _ := o.flight.Do(key+"|"+cfg.region, func() (any, error) {
		return o.resolve(ctx, addr, key, normalized, cfg)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Candidate), nil
}

// resolve runs the provider cascade for one address.
func (o *Orchestrator) resolve(ctx context.Context, addr, key, normalized string, cfg callConfig) (*Candidate, error) {
	for _, p := range cfg.providers {
		if !p.Available() {
			zap.L().Debug("geocode: provider unavailable, skipping",
				zap.String("provider", string(p.Name())),
			)
			continue
		}

		if err := o.pacer.Wait(ctx, p.Name()); err != nil {
			return nil, eris.Wrapf(err, "geocode: rate limit wait for %s", p.Name())
		}

		cand := o.callProvider(ctx, p, addr, cfg)
		if !cand.Usable() {
			continue
		}

		cand.Provider = p.Name()
		cand.RetrievedAt = o.now().UTC()

		if cfg.useCache {
			if err := o.store.Save(ctx, candidateToEntry(cand, key, normalized, cfg.ttl)); err != nil {
				// A cache write failure must not fail the geocode.
				zap.L().Warn("geocode: cache write failed",
					zap.String("provider", string(p.Name())),
					zap.Error(err),
				)
			}
		}
		return cand, nil
	}

	return &Candidate{Matched: false}, nil
}

// checkCache returns a cached candidate or nil. Read failures are
// misses.
func (o *Orchestrator) checkCache(ctx context.Context, key string) *Candidate {
	entry, err := o.store.Lookup(ctx, key, o.now().UTC())
	if err != nil {
		zap.L().Debug("geocode: cache read failed, treating as miss", zap.Error(err))
		return nil
	}
	if entry == nil {
		return nil
	}
	zap.L().Debug("geocode: cache hit",
		zap.String("key", keyPrefix(key)),
		zap.String("provider", entry.Provider),
	)
	return entryToCandidate(entry)
}

// callProvider invokes one adapter under the per-request timeout,
// converting any error into an unmatched candidate.
func (o *Orchestrator) callProvider(ctx context.Context, p Provider, addr string, cfg callConfig) *Candidate {
	cctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	cand, err := p.Geocode(cctx, addr, QueryOptions{Region: cfg.region})
	if err != nil {
		zap.L().Debug("geocode: provider failed, trying next",
			zap.String("provider", string(p.Name())),
			zap.String("address", truncate(addr, 48)),
			zap.Error(err),
		)
		return &Candidate{Matched: false}
	}
	return cand
}

// BatchGeocode resolves addresses sequentially, preserving provider
// ordering guarantees per call. shouldContinue, when non-nil, is
// checked before each address so a batch caller can stop cleanly
// between items; results cover only the processed prefix. Call options
// apply to every address in the batch.
func (o *Orchestrator) BatchGeocode(ctx context.Context, addrs []string, shouldContinue func() bool, opts ...CallOption) ([]Candidate, error) {
	results := make([]Candidate, 0, len(addrs))
	for _, addr := range addrs {
		if shouldContinue != nil && !shouldContinue() {
			break
		}
		cand, err := o.Geocode(ctx, addr, opts...)
		if err != nil {
			return results, err
		}
		results = append(results, *cand)
	}
	return results, nil
}

// CacheStats reports cache observability counters.
func (o *Orchestrator) CacheStats(ctx context.Context) (*store.CacheStats, error) {
	if o.store == nil {
		return nil, eris.New("geocode: cache not configured")
	}
	return o.store.Stats(ctx)
}

// ClearCache deletes cache entries matching the filter and returns the
// count removed.
func (o *Orchestrator) ClearCache(ctx context.Context, f store.ClearFilter) (int, error) {
	if o.store == nil {
		return 0, eris.New("geocode: cache not configured")
	}
	return o.store.Clear(ctx, f)
}

func keyPrefix(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
