// Package embedcache memoizes query embeddings per embedding space, with
// TTL expiry and size-bounded least-recently-used eviction. It wraps
// whichever provider function the caller passes in and never reaches the
// provider on a hit.
package embedcache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nephrag/nephrag/internal/core/domain"
	"github.com/nephrag/nephrag/internal/logger"
)

// DefaultMaxSize is the default maximum number of cached embeddings.
const DefaultMaxSize = 1000

// DefaultTTL is the default time-to-live for a cached embedding,
// measured from creation.
const DefaultTTL = 24 * time.Hour

// ProviderFunc computes an embedding on a cache miss.
type ProviderFunc func(ctx context.Context, text string) ([]float32, error)

// entry is a cached embedding with its access bookkeeping.
type entry struct {
	vector       []float32
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  int
}

// Stats are the cache's monotonically accumulating counters. They reset
// only on Clear.
type Stats struct {
	Hits      int
	Misses    int
	Evictions int
	Size      int
	HitRate   float64
}

// Cache is a process-wide query embedding cache. Construct one at process
// start and inject it wherever query embeddings are needed; all mutation
// is confined to its own methods.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits      int
	misses    int
	evictions int

	group singleflight.Group
}

// Option configures the cache.
type Option func(*Cache)

// WithMaxSize sets the maximum number of entries.
func WithMaxSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithTTL sets the entry time-to-live.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d >= 0 {
			c.ttl = d
		}
	}
}

// WithClock sets the time source. Useful for testing expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an embedding cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		maxSize: DefaultMaxSize,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// key builds the cache key from the embedding space and a hash of the
// normalised query, so whitespace and case variants share an entry.
func key(text string, space domain.EmbeddingSpace) string {
	normalised := strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalised))
	return fmt.Sprintf("%s:%x", space, sum)
}

// GetOrCompute returns the cached embedding for (text, space), computing
// and caching it via provider on a miss. A provider failure propagates
// and caches nothing. Concurrent misses for the same key share one
// provider call.
func (c *Cache) GetOrCompute(ctx context.Context, text string, space domain.EmbeddingSpace, provider ProviderFunc) ([]float32, error) {
	k := key(text, space)

	if vec, ok := c.lookup(k); ok {
		return vec, nil
	}

	v, err, _ := c.group.Do(k, func() (any, error) {
		// Re-check under the flight: another caller may have stored
		// the entry between our miss and this call. The outer lookup
		// already counted the miss, so this check skips the counters.
		if vec, ok := c.peek(k); ok {
			return vec, nil
		}

		start := c.now()
		vec, err := provider(ctx, text)
		if err != nil {
			return nil, err
		}
		logger.Debug("computed %s embedding in %s (%d dimensions)", space, c.now().Sub(start), len(vec))

		c.store(k, vec)
		return copyVector(vec), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// lookup returns a copy of a live entry, refreshing its access
// bookkeeping. Expired entries are removed immediately and counted as a
// miss plus an eviction.
func (c *Cache) lookup(k string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		c.misses++
		return nil, false
	}

	if c.expired(e) {
		delete(c.entries, k)
		c.misses++
		c.evictions++
		return nil, false
	}

	e.lastAccessed = c.now()
	e.accessCount++
	c.hits++
	return copyVector(e.vector), true
}

// peek returns a live entry without touching the hit/miss counters or
// the access bookkeeping.
func (c *Cache) peek(k string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok || c.expired(e) {
		return nil, false
	}
	return copyVector(e.vector), true
}

// store inserts a computed embedding and sweeps the cache.
func (c *Cache) store(k string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[k] = &entry{
		vector:       copyVector(vec),
		createdAt:    now,
		lastAccessed: now,
	}
	c.sweep()
}

// expired reports whether the entry's age exceeds the TTL. Age is
// measured from creation, not last access.
func (c *Cache) expired(e *entry) bool {
	return c.now().Sub(e.createdAt) > c.ttl
}

// sweep removes expired entries, then evicts least-recently-accessed
// entries until the cache is at or under capacity. Callers must hold mu.
func (c *Cache) sweep() {
	evicted := 0

	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			evicted++
		}
	}

	if len(c.entries) > c.maxSize {
		type keyed struct {
			k string
			e *entry
		}
		ordered := make([]keyed, 0, len(c.entries))
		for k, e := range c.entries {
			ordered = append(ordered, keyed{k, e})
		}
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].e.lastAccessed.Before(ordered[j].e.lastAccessed)
		})

		for _, ke := range ordered[:len(c.entries)-c.maxSize] {
			delete(c.entries, ke.k)
			evicted++
		}
	}

	if evicted > 0 {
		c.evictions += evicted
		logger.Debug("embedding cache: evicted %d entries", evicted)
	}
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Clear resets storage and all counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
