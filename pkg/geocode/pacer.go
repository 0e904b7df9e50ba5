package geocode

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between requests per provider.
// Each provider gets one rate.Limiter with burst 1, so a limiter
// configured at N requests/second admits a call at most every 1/N
// seconds. Limiters are internally synchronized; concurrent callers
// share the interval guarantee.
type Pacer struct {
	mu       sync.RWMutex
	limiters map[ProviderID]*rate.Limiter
}

// NewPacer creates an empty Pacer. Providers without a configured rate
// are not limited.
func NewPacer() *Pacer {
	return &Pacer{limiters: make(map[ProviderID]*rate.Limiter)}
}

// Set configures the requests-per-second budget for a provider.
// Non-positive rps removes the limit.
func (p *Pacer) Set(id ProviderID, rps float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rps <= 0 {
		delete(p.limiters, id)
		return
	}
	p.limiters[id] = rate.NewLimiter(rate.Limit(rps), 1)
}

// Wait blocks until the provider's minimum interval has elapsed, or
// the context is done.
func (p *Pacer) Wait(ctx context.Context, id ProviderID) error {
	p.mu.RLock()
	limiter := p.limiters[id]
	p.mu.RUnlock()
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
