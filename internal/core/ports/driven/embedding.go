package driven

import (
	"context"

	"github.com/nephrag/nephrag/internal/core/domain"
)

// EmbeddingService generates vector embeddings from text for exactly one
// embedding space. The output dimensionality is fixed per implementation
// and is never mixed across spaces.
//
// Implementations may include:
//   - Remote embedding APIs (text-embedding-3-small, 1536 dimensions)
//   - Local models (all-MiniLM-L6-v2, 384 dimensions)
//
// Every call must be boundable by the context's deadline; on timeout the
// call fails with a retryable provider error rather than hanging.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Describe returns the provider's identity and fixed output
	// dimensionality, used for cache keying and logging.
	Describe() domain.ProviderInfo

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
