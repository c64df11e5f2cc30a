package cli

import (
	"context"

	"github.com/nephrag/nephrag/internal/core/domain"
	"github.com/nephrag/nephrag/internal/core/ports/driving"
	"github.com/nephrag/nephrag/internal/embedcache"
)

// stubRetrieval implements driving.RetrievalService for testing.
type stubRetrieval struct {
	results []domain.RetrievedChunk
	err     error
}

func (s *stubRetrieval) Retrieve(_ context.Context, _, _ string, _ domain.RetrievalOptions) ([]domain.RetrievedChunk, error) {
	return s.results, s.err
}

// stubAnswer implements driving.AnswerService for testing.
type stubAnswer struct {
	answer driving.Answer
	err    error
}

func (s *stubAnswer) Ask(_ context.Context, _, _ string) (driving.Answer, error) {
	return s.answer, s.err
}

// stubIngest implements driving.IngestService for testing.
type stubIngest struct {
	summary *domain.IngestSummary
	err     error
}

func (s *stubIngest) Ingest(_ context.Context, slug string) (*domain.IngestSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *s.summary
	out.DocumentSlug = slug
	return &out, nil
}

// stubRegistry implements driving.Registry for testing.
type stubRegistry struct {
	docs []domain.Document
}

func (s *stubRegistry) GetActive(_ context.Context) ([]domain.Document, error) { return s.docs, nil }

func (s *stubRegistry) GetBySlug(_ context.Context, slug string) (*domain.Document, error) {
	for _, doc := range s.docs {
		if doc.Slug == slug {
			d := doc
			return &d, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubRegistry) Refresh(_ context.Context, _ bool) ([]domain.Document, error) {
	return s.docs, nil
}

func (s *stubRegistry) IsValid(_ context.Context, slug string) (bool, error) {
	_, err := s.GetBySlug(context.Background(), slug)
	return err == nil, nil
}

// setupTestServices wires stub services into the command tree and
// returns a cleanup that restores the previous wiring.
func setupTestServices() func() {
	prev := Services{
		Retrieval:     retrievalService,
		Answer:        answerService,
		Ingest:        ingestService,
		Registry:      documentRegistry,
		RegistryStore: registryStore,
		Cache:         embeddingCache,
		Watcher:       corpusWatcher,
	}

	Setup(Services{
		Retrieval: &stubRetrieval{results: []domain.RetrievedChunk{
			{Index: 2, Content: "Hold ACE inhibitors when potassium exceeds 5.5 mEq/L.", Similarity: 0.81},
		}},
		Answer: &stubAnswer{answer: driving.Answer{
			Text: "Hold ACE inhibitors above 5.5 mEq/L [1].",
			Sources: []domain.RetrievedChunk{
				{Index: 2, Similarity: 0.81},
			},
		}},
		Ingest: &stubIngest{summary: &domain.IngestSummary{
			ChunksCreated:       12,
			EmbeddingsSucceeded: 12,
			RowsStored:          12,
		}},
		Registry: &stubRegistry{docs: []domain.Document{
			{Slug: "smh-manual", Title: "SMH Housestaff Manual", EmbeddingSpace: domain.SpaceRemote, Active: true},
		}},
		Cache: embedcache.New(),
	})

	return func() { Setup(prev) }
}
