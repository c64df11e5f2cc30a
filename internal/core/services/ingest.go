package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nephrag/nephrag/internal/chunker"
	"github.com/nephrag/nephrag/internal/core/domain"
	"github.com/nephrag/nephrag/internal/core/ports/driven"
	"github.com/nephrag/nephrag/internal/core/ports/driving"
	"github.com/nephrag/nephrag/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// DefaultEmbedBatchSize is how many chunks are embedded per provider
// call during ingestion.
const DefaultEmbedBatchSize = 50

// IngestService runs the offline pipeline: load cleaned text, chunk it,
// embed the chunks in batches, and replace the stored set atomically.
type IngestService struct {
	registry  driving.Registry
	loader    driven.CorpusLoader
	chunker   *chunker.Chunker
	store     driven.ChunkStore
	providers map[domain.EmbeddingSpace]driven.EmbeddingService

	batchSize int
	limiter   *rate.Limiter
}

// IngestOption configures the ingest service.
type IngestOption func(*IngestService)

// WithEmbedBatchSize sets how many chunks are embedded per batch.
func WithEmbedBatchSize(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithEmbedRateLimit caps embedding batch calls at n per second, to stay
// inside remote provider quotas during large ingests. Zero disables the
// limit.
func WithEmbedRateLimit(n float64) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(n), 1)
		}
	}
}

// NewIngestService creates an ingest service.
func NewIngestService(
	registry driving.Registry,
	loader driven.CorpusLoader,
	ch *chunker.Chunker,
	store driven.ChunkStore,
	providers map[domain.EmbeddingSpace]driven.EmbeddingService,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		registry:  registry,
		loader:    loader,
		chunker:   ch,
		store:     store,
		providers: providers,
		batchSize: DefaultEmbedBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest fully replaces the stored chunk set for a registered document.
// A batch whose embedding call fails is dropped and logged; the rest of
// the document still lands. Safe to re-run at any time.
func (s *IngestService) Ingest(ctx context.Context, documentSlug string) (*domain.IngestSummary, error) {
	start := time.Now()
	logger.Section("Ingest " + documentSlug)

	doc, err := s.registry.GetBySlug(ctx, documentSlug)
	if err != nil {
		return nil, err
	}

	provider, ok := s.providers[doc.EmbeddingSpace]
	if !ok || provider == nil {
		return nil, fmt.Errorf("no embedding provider for space %q: %w",
			doc.EmbeddingSpace, domain.ErrProviderUnavailable)
	}

	text, err := s.loader.Load(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("loading corpus text: %w", err)
	}

	chunks := s.chunker.Chunk(text)
	logger.Info("Chunked %q into %d chunks (%d chars)", doc.Slug, len(chunks), len(text))

	summary := &domain.IngestSummary{
		DocumentSlug:  doc.Slug,
		ChunksCreated: len(chunks),
	}

	if len(chunks) == 0 {
		if err := s.store.UpsertChunks(ctx, doc.Slug, doc.EmbeddingSpace, nil, nil); err != nil {
			return nil, fmt.Errorf("storing chunks: %w", err)
		}
		summary.Duration = time.Since(start)
		return summary, nil
	}

	for i := range chunks {
		chunks[i].ID = uuid.New().String()
		chunks[i].DocumentSlug = doc.Slug
		chunks[i].ContentHash = fmt.Sprintf("%x", sha256.Sum256([]byte(chunks[i].Content)))
	}

	embedded, vectors, err := s.embedAll(ctx, provider, chunks)
	if err != nil {
		return nil, err
	}
	summary.EmbeddingsSucceeded = len(embedded)

	if err := s.store.UpsertChunks(ctx, doc.Slug, doc.EmbeddingSpace, embedded, vectors); err != nil {
		return nil, fmt.Errorf("storing chunks: %w", err)
	}
	summary.RowsStored = len(embedded)
	summary.Duration = time.Since(start)

	logger.Info("Ingested %q: %d/%d chunks stored in %s",
		doc.Slug, summary.RowsStored, summary.ChunksCreated, summary.Duration.Round(time.Millisecond))
	return summary, nil
}

// embedAll embeds chunks in batches. A failed batch drops its chunks
// from the result; only a context cancellation aborts the whole run.
func (s *IngestService) embedAll(
	ctx context.Context, provider driven.EmbeddingService, chunks []domain.Chunk,
) ([]domain.Chunk, [][]float32, error) {
	embedded := make([]domain.Chunk, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))

	for lo := 0; lo < len(chunks); lo += s.batchSize {
		hi := lo + s.batchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}
		batch := chunks[lo:hi]

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, nil, err
			}
		}

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Content
		}

		vecs, err := provider.EmbedBatch(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			logger.Warn("embedding batch %d-%d failed, dropping %d chunks: %v",
				batch[0].Index, batch[len(batch)-1].Index, len(batch), err)
			continue
		}

		if len(vecs) != len(batch) {
			logger.Warn("embedding batch %d-%d returned %d vectors for %d chunks, dropping batch",
				batch[0].Index, batch[len(batch)-1].Index, len(vecs), len(batch))
			continue
		}

		embedded = append(embedded, batch...)
		vectors = append(vectors, vecs...)
		logger.Debug("embedded chunks %d-%d", batch[0].Index, batch[len(batch)-1].Index)
	}

	return embedded, vectors, nil
}
