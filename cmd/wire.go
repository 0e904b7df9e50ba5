package main

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/config"
	"github.com/sells-group/locator-cli/internal/store"
	"github.com/sells-group/locator-cli/pkg/geocode"
)

// openStore builds the cache backend named by cache.driver.
func openStore(ctx context.Context, c config.CacheConfig) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch c.Driver {
	case "sqlite":
		s, err = store.NewSQLite(c.DSN)
	case "postgres":
		s, err = store.NewPostgres(ctx, c.DSN)
	default:
		return nil, eris.Errorf("cache: unknown driver %q", c.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// buildOrchestrator wires providers, pacer, and cache from config.
// The returned cleanup closes the store and must be called even when
// the command fails.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*geocode.Orchestrator, func(), error) {
	httpClient := &http.Client{Timeout: time.Duration(cfg.Geocode.TimeoutSecs) * time.Second}

	type ranked struct {
		provider geocode.Provider
		priority int
		rps      float64
	}
	var providers []ranked
	if cfg.Providers.Nominatim.Enabled {
		p := geocode.NewNominatimProvider(httpClient, cfg.Providers.Nominatim.BaseURL, cfg.Providers.Nominatim.UserAgent)
		providers = append(providers, ranked{p, cfg.Providers.Nominatim.Priority, cfg.Providers.Nominatim.RPS})
	}
	if cfg.Providers.Google.APIKey != "" {
		p := geocode.NewGoogleProvider(httpClient, cfg.Providers.Google.BaseURL, cfg.Providers.Google.APIKey)
		providers = append(providers, ranked{p, cfg.Providers.Google.Priority, cfg.Providers.Google.RPS})
	}
	if len(providers) == 0 {
		return nil, nil, eris.New("geocode: no providers configured")
	}
	sort.SliceStable(providers, func(i, j int) bool { return providers[i].priority < providers[j].priority })

	pacer := geocode.NewPacer()
	ordered := make([]geocode.Provider, 0, len(providers))
	for _, r := range providers {
		pacer.Set(r.provider.Name(), r.rps)
		ordered = append(ordered, r.provider)
	}

	opts := []geocode.Option{
		geocode.WithPacer(pacer),
		geocode.WithTimeout(time.Duration(cfg.Geocode.TimeoutSecs) * time.Second),
		geocode.WithRegion(cfg.Geocode.Region),
		geocode.WithCacheTTL(time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour),
		geocode.WithCacheEnabled(cfg.Cache.Enabled),
	}

	cleanup := func() {}
	if cfg.Cache.Enabled {
		s, err := openStore(ctx, cfg.Cache)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, geocode.WithStore(s))
		cleanup = func() { _ = s.Close() }
	}

	return geocode.NewOrchestrator(ordered, opts...), cleanup, nil
}
