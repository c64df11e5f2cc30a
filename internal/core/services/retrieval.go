package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/nephrag/nephrag/internal/core/domain"
	"github.com/nephrag/nephrag/internal/core/ports/driven"
	"github.com/nephrag/nephrag/internal/core/ports/driving"
	"github.com/nephrag/nephrag/internal/embedcache"
	"github.com/nephrag/nephrag/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService embeds queries and ranks a document's chunks by
// cosine similarity. Query embeddings go through the cache; chunk
// embeddings were stored at ingestion time.
type RetrievalService struct {
	registry   driving.Registry
	store      driven.ChunkStore
	cache      *embedcache.Cache
	providers  map[domain.EmbeddingSpace]driven.EmbeddingService
	thresholds map[domain.EmbeddingSpace]float64
}

// RetrievalOption configures the retrieval service.
type RetrievalOption func(*RetrievalService)

// WithSpaceThreshold overrides the default minimum similarity for one
// embedding space. A per-call threshold still takes precedence.
func WithSpaceThreshold(space domain.EmbeddingSpace, threshold float64) RetrievalOption {
	return func(s *RetrievalService) {
		s.thresholds[space] = threshold
	}
}

// NewRetrievalService creates a retrieval service. providers maps each
// embedding space to its embedding service; a document whose space has
// no provider fails at query time, not at construction.
func NewRetrievalService(
	registry driving.Registry,
	store driven.ChunkStore,
	cache *embedcache.Cache,
	providers map[domain.EmbeddingSpace]driven.EmbeddingService,
	opts ...RetrievalOption,
) *RetrievalService {
	s := &RetrievalService{
		registry:   registry,
		store:      store,
		cache:      cache,
		providers:  providers,
		thresholds: make(map[domain.EmbeddingSpace]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve embeds the query in the document's embedding space and
// returns the most similar stored chunks. An empty result is valid.
func (s *RetrievalService) Retrieve(
	ctx context.Context, query, documentSlug string, opts domain.RetrievalOptions,
) ([]domain.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}

	doc, err := s.registry.GetBySlug(ctx, documentSlug)
	if err != nil {
		return nil, err
	}

	provider, ok := s.providers[doc.EmbeddingSpace]
	if !ok || provider == nil {
		return nil, fmt.Errorf("no embedding provider for space %q: %w",
			doc.EmbeddingSpace, domain.ErrProviderUnavailable)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	minSimilarity := domain.DefaultThreshold(doc.EmbeddingSpace)
	if t, ok := s.thresholds[doc.EmbeddingSpace]; ok {
		minSimilarity = t
	}
	if opts.MinSimilarity != nil {
		minSimilarity = *opts.MinSimilarity
	}
	logger.Debug("retrieve: doc=%s space=%s topK=%d threshold=%.2f",
		doc.Slug, doc.EmbeddingSpace, topK, minSimilarity)

	vec, err := s.cache.GetOrCompute(ctx, query, doc.EmbeddingSpace, provider.Embed)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.store.Search(ctx, vec, doc.Slug, doc.EmbeddingSpace, topK, minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	logger.Debug("retrieve: %d chunks above threshold", len(results))
	return results, nil
}
