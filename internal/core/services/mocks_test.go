package services

import (
	"context"
	"fmt"

	"github.com/nephrag/nephrag/internal/core/domain"
	"github.com/nephrag/nephrag/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockRegistryStore implements driven.RegistryStore for testing.
type mockRegistryStore struct {
	docs      []domain.Document
	listErr   error
	listCalls int
}

func (m *mockRegistryStore) SaveDocument(_ context.Context, _ *domain.Document) error {
	return nil
}

func (m *mockRegistryStore) GetDocument(_ context.Context, slug string) (*domain.Document, error) {
	for _, doc := range m.docs {
		if doc.Slug == slug {
			d := doc
			return &d, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockRegistryStore) ListActive(_ context.Context) ([]domain.Document, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Document, len(m.docs))
	copy(out, m.docs)
	return out, nil
}

// mockChunkStore implements driven.ChunkStore for testing.
type mockChunkStore struct {
	results []domain.RetrievedChunk

	searchErr error
	upsertErr error

	upsertedChunks  []domain.Chunk
	upsertedVectors [][]float32
	lastTopK        int
	lastThreshold   float64
	lastSpace       domain.EmbeddingSpace
}

func (m *mockChunkStore) UpsertChunks(_ context.Context, _ string, space domain.EmbeddingSpace, chunks []domain.Chunk, vectors [][]float32) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.lastSpace = space
	m.upsertedChunks = chunks
	m.upsertedVectors = vectors
	return nil
}

func (m *mockChunkStore) Search(_ context.Context, _ []float32, _ string, space domain.EmbeddingSpace, topK int, minSimilarity float64) ([]domain.RetrievedChunk, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	m.lastSpace = space
	m.lastTopK = topK
	m.lastThreshold = minSimilarity
	return m.results, nil
}

func (m *mockChunkStore) CountChunks(_ context.Context, _ string, _ domain.EmbeddingSpace) (int, error) {
	return len(m.upsertedChunks), nil
}

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	vector []float32
	dims   int

	embedErr   error
	batchErr   error
	embedCalls int
	batchCalls int

	// failBatches marks 0-based batch ordinals whose EmbedBatch call fails.
	failBatches map[int]bool

	// truncateBatches marks batch ordinals that return one vector too few.
	truncateBatches map[int]bool
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	m.embedCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector, nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	ordinal := m.batchCalls
	m.batchCalls++
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	if m.failBatches[ordinal] {
		return nil, fmt.Errorf("batch %d failed", ordinal)
	}
	n := len(texts)
	if m.truncateBatches[ordinal] && n > 0 {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = m.vector
	}
	return out, nil
}

func (m *mockEmbeddingService) Describe() domain.ProviderInfo {
	return domain.ProviderInfo{Name: "mock", Dimensions: m.dims}
}

func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

// mockCorpusLoader implements driven.CorpusLoader for testing.
type mockCorpusLoader struct {
	text    string
	loadErr error
}

func (m *mockCorpusLoader) Load(_ context.Context, _ *domain.Document) (string, error) {
	if m.loadErr != nil {
		return "", m.loadErr
	}
	return m.text, nil
}

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	reply    string
	chatErr  error
	lastUser string
}

func (m *mockLLMService) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	if m.chatErr != nil {
		return "", m.chatErr
	}
	for _, msg := range messages {
		if msg.Role == "user" {
			m.lastUser = msg.Content
		}
	}
	return m.reply, nil
}

func (m *mockLLMService) ModelName() string            { return "mock-model" }
func (m *mockLLMService) Ping(_ context.Context) error { return nil }
func (m *mockLLMService) Close() error                 { return nil }
