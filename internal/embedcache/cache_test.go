package embedcache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nephrag/nephrag/internal/core/domain"
)

// countingProvider returns a fixed vector and counts how often it is called.
type countingProvider struct {
	calls  int
	vector []float32
	err    error
}

func (p *countingProvider) fn(_ context.Context, _ string) ([]float32, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.vector, nil
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	ctx := context.Background()
	stub := &countingProvider{vector: []float32{0.1, 0.2, 0.3}}
	cache := New()

	first, err := cache.GetOrCompute(ctx, "What is CKD?", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)

	second, err := cache.GetOrCompute(ctx, "What is CKD?", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)

	assert.Equal(t, 1, stub.calls, "provider should be called exactly once")
	assert.Equal(t, first, second)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.Size)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestGetOrCompute_NormalisedKey(t *testing.T) {
	ctx := context.Background()
	stub := &countingProvider{vector: []float32{1}}
	cache := New()

	_, err := cache.GetOrCompute(ctx, "What is CKD?", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)

	// Case and surrounding whitespace variants hit the same entry.
	_, err = cache.GetOrCompute(ctx, "  WHAT IS ckd?  ", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)

	assert.Equal(t, 1, stub.calls)
}

func TestGetOrCompute_SpacesAreSeparate(t *testing.T) {
	ctx := context.Background()
	stub := &countingProvider{vector: []float32{1}}
	cache := New()

	_, err := cache.GetOrCompute(ctx, "query", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)
	_, err = cache.GetOrCompute(ctx, "query", domain.SpaceLocal, stub.fn)
	require.NoError(t, err)

	assert.Equal(t, 2, stub.calls, "same text in different spaces must not share an entry")
	assert.Equal(t, 2, cache.Stats().Size)
}

func TestGetOrCompute_ProviderErrorNotCached(t *testing.T) {
	ctx := context.Background()
	stub := &countingProvider{err: errors.New("rate limited")}
	cache := New()

	_, err := cache.GetOrCompute(ctx, "query", domain.SpaceRemote, stub.fn)
	require.Error(t, err)
	assert.Equal(t, 0, cache.Stats().Size)

	// A later successful call reaches the provider again.
	stub.err = nil
	stub.vector = []float32{1}
	_, err = cache.GetOrCompute(ctx, "query", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls)
	assert.Equal(t, 1, cache.Stats().Size)
}

func TestGetOrCompute_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	stub := &countingProvider{vector: []float32{1}}
	cache := New(WithTTL(time.Hour), WithClock(clock.now))

	_, err := cache.GetOrCompute(ctx, "query", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)

	// Within TTL: still a hit.
	clock.advance(30 * time.Minute)
	_, err = cache.GetOrCompute(ctx, "query", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)

	// Past TTL (age from creation): treated as a miss and removed.
	clock.advance(31 * time.Minute)
	_, err = cache.GetOrCompute(ctx, "query", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Evictions, "lazy expiry counts as an eviction")
	assert.Equal(t, 1, stats.Size)
}

func TestGetOrCompute_LRUEviction(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	stub := &countingProvider{vector: []float32{1}}
	cache := New(WithMaxSize(3), WithClock(clock.now))

	for i := 0; i < 3; i++ {
		_, err := cache.GetOrCompute(ctx, fmt.Sprintf("query-%d", i), domain.SpaceRemote, stub.fn)
		require.NoError(t, err)
		clock.advance(time.Second)
	}

	// Touch query-0 so query-1 becomes least recently accessed.
	_, err := cache.GetOrCompute(ctx, "query-0", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)
	clock.advance(time.Second)

	// Inserting a fourth entry evicts exactly one, the LRU.
	_, err = cache.GetOrCompute(ctx, "query-3", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)

	stats := cache.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, 1, stats.Evictions)

	// query-1 was evicted; re-requesting it calls the provider again.
	before := stub.calls
	_, err = cache.GetOrCompute(ctx, "query-1", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)
	assert.Equal(t, before+1, stub.calls)

	// query-0 survived the eviction.
	before = stub.calls
	_, err = cache.GetOrCompute(ctx, "query-0", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)
	assert.Equal(t, before, stub.calls)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	stub := &countingProvider{vector: []float32{1}}
	cache := New()

	_, err := cache.GetOrCompute(ctx, "query", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)
	_, err = cache.GetOrCompute(ctx, "query", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)

	cache.Clear()

	stats := cache.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.Evictions)
	assert.Zero(t, stats.Size)
	assert.Zero(t, stats.HitRate)
}

func TestGetOrCompute_DefensiveCopy(t *testing.T) {
	ctx := context.Background()
	stub := &countingProvider{vector: []float32{1, 2, 3}}
	cache := New()

	vec, err := cache.GetOrCompute(ctx, "query", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)
	vec[0] = 99

	again, err := cache.GetOrCompute(ctx, "query", domain.SpaceRemote, stub.fn)
	require.NoError(t, err)
	assert.Equal(t, float32(1), again[0], "caller mutation must not corrupt the cached vector")
}
