package driven

import (
	"context"

	"github.com/nephrag/nephrag/internal/core/domain"
)

// ChunkStore persists (document, chunk, embedding) rows and performs
// similarity search over them. Backed by SQLite.
type ChunkStore interface {
	// UpsertChunks replaces all prior chunks for (documentSlug, space)
	// with the given set. vectors[i] is the embedding for chunks[i].
	// The replacement is atomic: a failure leaves the prior set intact,
	// never a partial or duplicate-index state.
	UpsertChunks(ctx context.Context, documentSlug string, space domain.EmbeddingSpace, chunks []domain.Chunk, vectors [][]float32) error

	// Search returns chunks for (documentSlug, space) with cosine
	// similarity to query of at least minSimilarity, sorted descending
	// by similarity with ties broken by ascending chunk index, truncated
	// to topK. An unknown (document, space) pair yields an empty result,
	// not an error.
	Search(ctx context.Context, query []float32, documentSlug string, space domain.EmbeddingSpace, topK int, minSimilarity float64) ([]domain.RetrievedChunk, error)

	// CountChunks returns the number of stored chunks for the pair.
	CountChunks(ctx context.Context, documentSlug string, space domain.EmbeddingSpace) (int, error)
}

// RegistryStore persists document metadata. The registry service caches
// its results in-process; this interface is the durable backing.
type RegistryStore interface {
	// SaveDocument stores or updates a document record.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by slug.
	GetDocument(ctx context.Context, slug string) (*domain.Document, error)

	// ListActive returns all active documents ordered by creation time.
	ListActive(ctx context.Context) ([]domain.Document, error)
}

// CorpusLoader loads a document's cleaned text from its storage location.
type CorpusLoader interface {
	// Load returns the cleaned text for the document.
	Load(ctx context.Context, doc *domain.Document) (string, error)
}
