package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nephrag/nephrag/internal/core/domain"
	"github.com/nephrag/nephrag/internal/core/ports/driven"
	"github.com/nephrag/nephrag/internal/core/ports/driving"
	"github.com/nephrag/nephrag/internal/logger"
)

// Ensure RegistryService implements the interface.
var _ driving.Registry = (*RegistryService)(nil)

// DefaultRegistryTTL is how long a loaded registry snapshot stays fresh.
const DefaultRegistryTTL = 5 * time.Minute

// registrySnapshot is an immutable view of the active document set. It
// is replaced atomically, never mutated in place.
type registrySnapshot struct {
	docs     []domain.Document
	bySlug   map[string]int
	loadedAt time.Time
}

// RegistryService caches the active document set in front of the
// registry store. A stale snapshot is served when a refresh fails, so a
// transient store outage does not take retrieval down with it.
type RegistryService struct {
	store driven.RegistryStore
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	snapshot *registrySnapshot
}

// RegistryOption configures the registry service.
type RegistryOption func(*RegistryService)

// WithRegistryTTL sets the snapshot time-to-live.
func WithRegistryTTL(d time.Duration) RegistryOption {
	return func(s *RegistryService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithRegistryClock sets the time source. Useful for testing expiry.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(s *RegistryService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRegistryService creates a registry service backed by store.
func NewRegistryService(store driven.RegistryStore, opts ...RegistryOption) *RegistryService {
	s := &RegistryService{
		store: store,
		ttl:   DefaultRegistryTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetActive returns all active documents, loading from the store when
// the cached snapshot is missing or stale.
func (s *RegistryService) GetActive(ctx context.Context) ([]domain.Document, error) {
	snap, err := s.current(ctx, false)
	if err != nil {
		return nil, err
	}
	return copyDocuments(snap.docs), nil
}

// GetBySlug returns the active document with the given slug.
func (s *RegistryService) GetBySlug(ctx context.Context, slug string) (*domain.Document, error) {
	snap, err := s.current(ctx, false)
	if err != nil {
		return nil, err
	}

	i, ok := snap.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", slug, domain.ErrNotFound)
	}
	doc := cloneDocument(snap.docs[i])
	return &doc, nil
}

// IsValid reports whether slug names an active document.
func (s *RegistryService) IsValid(ctx context.Context, slug string) (bool, error) {
	snap, err := s.current(ctx, false)
	if err != nil {
		return false, err
	}
	_, ok := snap.bySlug[slug]
	return ok, nil
}

// Refresh reloads the registry from the backing store. When force is
// false a fresh cached snapshot is returned as-is.
func (s *RegistryService) Refresh(ctx context.Context, force bool) ([]domain.Document, error) {
	snap, err := s.current(ctx, force)
	if err != nil {
		return nil, err
	}
	return copyDocuments(snap.docs), nil
}

// current returns a usable snapshot, reloading when stale or forced.
// A failed reload falls back to the previous snapshot with a warning;
// only a cold-start failure propagates the error.
func (s *RegistryService) current(ctx context.Context, force bool) (*registrySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot != nil && !force && s.now().Sub(s.snapshot.loadedAt) <= s.ttl {
		return s.snapshot, nil
	}

	docs, err := s.store.ListActive(ctx)
	if err != nil {
		if s.snapshot != nil {
			logger.Warn("document registry refresh failed, serving stale snapshot from %s: %v",
				s.snapshot.loadedAt.Format(time.RFC3339), err)
			return s.snapshot, nil
		}
		return nil, fmt.Errorf("loading document registry: %w", err)
	}

	bySlug := make(map[string]int, len(docs))
	for i, doc := range docs {
		bySlug[doc.Slug] = i
	}
	s.snapshot = &registrySnapshot{
		docs:     docs,
		bySlug:   bySlug,
		loadedAt: s.now(),
	}
	logger.Debug("document registry refreshed: %d active documents", len(docs))
	return s.snapshot, nil
}

// cloneDocument copies a document including its metadata map, so a
// caller mutating the result cannot reach back into the snapshot.
func cloneDocument(doc domain.Document) domain.Document {
	if doc.Metadata != nil {
		meta := make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		doc.Metadata = meta
	}
	return doc
}

func copyDocuments(docs []domain.Document) []domain.Document {
	out := make([]domain.Document, len(docs))
	for i := range docs {
		out[i] = cloneDocument(docs[i])
	}
	return out
}
