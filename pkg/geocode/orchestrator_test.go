package geocode

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locator-cli/internal/store"
)

// mockProvider implements Provider and counts invocations.
type mockProvider struct {
	name      ProviderID
	available bool
	cand      *Candidate
	err       error
	calls     int
}

func (m *mockProvider) Name() ProviderID { return m.name }
func (m *mockProvider) Available() bool  { return m.available }
func (m *mockProvider) Geocode(_ context.Context, _ string, _ QueryOptions) (*Candidate, error) {
	m.calls++
	return m.cand, m.err
}

func matchedCandidate(lat, lon float64, conf int) *Candidate {
	return &Candidate{Latitude: lat, Longitude: lon, Confidence: conf, Matched: true}
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOrchestrator_EmptyAddress(t *testing.T) {
	p := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(1, 1, 50)}
	o := NewOrchestrator([]Provider{p})

	for _, addr := range []string{"", "   "} {
		cand, err := o.Geocode(context.Background(), addr)
		require.NoError(t, err)
		assert.False(t, cand.Matched, addr)
	}
	assert.Zero(t, p.calls, "no provider calls for empty input")
}

func TestOrchestrator_FirstUsableWins(t *testing.T) {
	p1 := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(45.5, -73.6, 70)}
	p2 := &mockProvider{name: ProviderGoogle, available: true, cand: matchedCandidate(46.8, -71.2, 90)}
	o := NewOrchestrator([]Provider{p1, p2}, WithCacheEnabled(false))

	cand, err := o.Geocode(context.Background(), "123 Main St")
	require.NoError(t, err)
	assert.Equal(t, ProviderNominatim, cand.Provider)
	assert.InDelta(t, 45.5, cand.Latitude, 0.001)
	assert.Equal(t, 1, p1.calls)
	assert.Zero(t, p2.calls, "second provider must not be tried")
}

func TestOrchestrator_UnavailableProviderSkipped(t *testing.T) {
	p1 := &mockProvider{name: ProviderGoogle, available: false, cand: matchedCandidate(1, 1, 99)}
	p2 := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(45.5, -73.6, 70)}
	o := NewOrchestrator([]Provider{p1, p2}, WithCacheEnabled(false))

	cand, err := o.Geocode(context.Background(), "123 Main St")
	require.NoError(t, err)
	assert.Equal(t, ProviderNominatim, cand.Provider)
	assert.Zero(t, p1.calls)
	assert.Equal(t, 1, p2.calls)
}

func TestOrchestrator_ProviderErrorFallsThrough(t *testing.T) {
	p1 := &mockProvider{name: ProviderNominatim, available: true, err: eris.New("connection refused")}
	p2 := &mockProvider{name: ProviderGoogle, available: true, cand: matchedCandidate(46.8, -71.2, 90)}
	o := NewOrchestrator([]Provider{p1, p2}, WithCacheEnabled(false))

	cand, err := o.Geocode(context.Background(), "123 Main St")
	require.NoError(t, err)
	assert.True(t, cand.Matched)
	assert.Equal(t, ProviderGoogle, cand.Provider)
}

func TestOrchestrator_UnusableCandidateFallsThrough(t *testing.T) {
	// Out-of-range and null-island results must never be returned.
	p1 := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(120.0, 10.0, 80)}
	p2 := &mockProvider{name: ProviderGoogle, available: true, cand: &Candidate{Matched: true}}
	o := NewOrchestrator([]Provider{p1, p2}, WithCacheEnabled(false))

	cand, err := o.Geocode(context.Background(), "123 Main St")
	require.NoError(t, err)
	assert.False(t, cand.Matched)
}

func TestOrchestrator_AllExhaustedReturnsNotFound(t *testing.T) {
	p1 := &mockProvider{name: ProviderNominatim, available: true, cand: &Candidate{Matched: false}}
	p2 := &mockProvider{name: ProviderGoogle, available: true, cand: &Candidate{Matched: false}}
	o := NewOrchestrator([]Provider{p1, p2}, WithCacheEnabled(false))

	cand, err := o.Geocode(context.Background(), "999 Fake Ave")
	require.NoError(t, err)
	assert.False(t, cand.Matched)
	assert.Equal(t, 1, p1.calls)
	assert.Equal(t, 1, p2.calls)
}

func TestOrchestrator_CacheHitSkipsProviders(t *testing.T) {
	p := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(45.5, -73.6, 70)}
	o := NewOrchestrator([]Provider{p}, WithStore(newTestStore(t)))

	first, err := o.Geocode(context.Background(), "123 Main St, Springfield")
	require.NoError(t, err)
	require.True(t, first.Matched)
	assert.Equal(t, 1, p.calls)

	second, err := o.Geocode(context.Background(), "123 Main St, Springfield")
	require.NoError(t, err)
	require.True(t, second.Matched)
	assert.Equal(t, 1, p.calls, "second call must be served from cache")
	assert.InDelta(t, first.Latitude, second.Latitude, 1e-9)
	assert.Equal(t, first.Provider, second.Provider)
	assert.Equal(t, first.Confidence, second.Confidence)
}

func TestOrchestrator_CacheKeyNormalization(t *testing.T) {
	p := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(45.5, -73.6, 70)}
	o := NewOrchestrator([]Provider{p}, WithStore(newTestStore(t)))

	_, err := o.Geocode(context.Background(), "123 Main St. Springfield")
	require.NoError(t, err)

	// Differing punctuation and case normalize to the same key.
	_, err = o.Geocode(context.Background(), "  123  MAIN st, Springfield ")
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestOrchestrator_ExpiredEntryRefetched(t *testing.T) {
	p := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(45.5, -73.6, 70)}
	s := newTestStore(t)

	base := time.Now().UTC()
	clock := base
	o := NewOrchestrator([]Provider{p},
		WithStore(s),
		WithCacheTTL(time.Hour),
		WithClock(func() time.Time { return clock }),
	)

	_, err := o.Geocode(context.Background(), "123 Main St")
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)

	clock = base.Add(2 * time.Hour)
	_, err = o.Geocode(context.Background(), "123 Main St")
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls, "expired entry must trigger a refetch")
}

func TestOrchestrator_NoCacheOption(t *testing.T) {
	p := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(45.5, -73.6, 70)}
	o := NewOrchestrator([]Provider{p}, WithStore(newTestStore(t)))

	_, err := o.Geocode(context.Background(), "123 Main St", WithoutCache())
	require.NoError(t, err)
	_, err = o.Geocode(context.Background(), "123 Main St", WithoutCache())
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestOrchestrator_ProviderOrderOption(t *testing.T) {
	p1 := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(1, 2, 50)}
	p2 := &mockProvider{name: ProviderGoogle, available: true, cand: matchedCandidate(3, 4, 90)}
	o := NewOrchestrator([]Provider{p1, p2}, WithCacheEnabled(false))

	cand, err := o.Geocode(context.Background(), "123 Main St", WithProviderOrder(ProviderGoogle))
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, cand.Provider)
	assert.Zero(t, p1.calls)
}

// failingStore simulates a broken persistence layer.
type failingStore struct{}

func (failingStore) Save(context.Context, store.Entry) error { return eris.New("disk full") }
func (failingStore) Lookup(context.Context, string, time.Time) (*store.Entry, error) {
	return nil, eris.New("disk broken")
}
func (failingStore) Clear(context.Context, store.ClearFilter) (int, error) {
	return 0, eris.New("disk broken")
}
func (failingStore) Stats(context.Context) (*store.CacheStats, error) {
	return nil, eris.New("disk broken")
}
func (failingStore) Migrate(context.Context) error { return nil }
func (failingStore) Close() error                  { return nil }

func TestOrchestrator_CacheFailuresDoNotFailGeocode(t *testing.T) {
	p := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(45.5, -73.6, 70)}
	o := NewOrchestrator([]Provider{p}, WithStore(failingStore{}))

	cand, err := o.Geocode(context.Background(), "123 Main St")
	require.NoError(t, err)
	assert.True(t, cand.Matched)
}

func TestOrchestrator_BatchGeocodeStopsBetweenAddresses(t *testing.T) {
	p := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(45.5, -73.6, 70)}
	o := NewOrchestrator([]Provider{p}, WithCacheEnabled(false))

	remaining := 2
	results, err := o.BatchGeocode(context.Background(),
		[]string{"1 First St", "2 Second St", "3 Third St"},
		func() bool { remaining--; return remaining >= 0 },
	)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 2, p.calls)
}

func TestOrchestrator_BatchGeocodeForwardsCallOptions(t *testing.T) {
	p := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(45.5, -73.6, 70)}
	o := NewOrchestrator([]Provider{p}, WithStore(newTestStore(t)))

	results, err := o.BatchGeocode(context.Background(),
		[]string{"1 First St", "1 First St"}, nil, WithoutCache())
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 2, p.calls, "cache bypass must apply to every address")
}

// slowProvider counts invocations under concurrency.
type slowProvider struct {
	calls atomic.Int32
	delay time.Duration
}

func (s *slowProvider) Name() ProviderID { return ProviderNominatim }
func (s *slowProvider) Available() bool  { return true }
func (s *slowProvider) Geocode(_ context.Context, _ string, _ QueryOptions) (*Candidate, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	return matchedCandidate(45.5, -73.6, 70), nil
}

func TestOrchestrator_ConcurrentIdenticalLookupsCollapse(t *testing.T) {
	p := &slowProvider{delay: 100 * time.Millisecond}
	o := NewOrchestrator([]Provider{p}, WithCacheEnabled(false))

	var wg sync.WaitGroup
	results := make([]*Candidate, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = o.Geocode(context.Background(), "123 Main St")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load(), "in-flight duplicates share one cascade")
	for i, cand := range results {
		require.NoError(t, errs[i])
		require.NotNil(t, cand)
		assert.True(t, cand.Matched)
	}
}

func TestOrchestrator_ReturnedCandidateAlwaysUsable(t *testing.T) {
	p := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(45.5, -73.6, 70)}
	o := NewOrchestrator([]Provider{p}, WithCacheEnabled(false))

	cand, err := o.Geocode(context.Background(), "123 Main St")
	require.NoError(t, err)
	require.True(t, cand.Usable())
	assert.False(t, cand.RetrievedAt.IsZero())
}

func TestOrchestrator_CacheStatsAndClear(t *testing.T) {
	p := &mockProvider{name: ProviderNominatim, available: true, cand: matchedCandidate(45.5, -73.6, 70)}
	o := NewOrchestrator([]Provider{p}, WithStore(newTestStore(t)))

	_, err := o.Geocode(context.Background(), "123 Main St")
	require.NoError(t, err)

	stats, err := o.CacheStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 1, stats.PerProvider[string(ProviderNominatim)])

	n, err := o.ClearCache(context.Background(), store.ClearFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOrchestrator_NoStoreConfigured(t *testing.T) {
	o := NewOrchestrator(nil)

	_, err := o.CacheStats(context.Background())
	require.Error(t, err)
	_, err = o.ClearCache(context.Background(), store.ClearFilter{})
	require.Error(t, err)
}
