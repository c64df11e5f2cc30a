package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nephrag/nephrag/internal/core/domain"
	"github.com/nephrag/nephrag/internal/core/ports/driven"
	"github.com/nephrag/nephrag/internal/embedcache"
)

func newAnswerFixture(store *mockChunkStore, llm driven.LLMService) *AnswerService {
	registry := NewRegistryService(&mockRegistryStore{docs: testDocs()})
	providers := map[domain.EmbeddingSpace]driven.EmbeddingService{
		domain.SpaceRemote: &mockEmbeddingService{vector: []float32{1, 0}},
		domain.SpaceLocal:  &mockEmbeddingService{vector: []float32{1, 0}},
	}
	retrieval := NewRetrievalService(registry, store, embedcache.New(), providers)
	return NewAnswerService(retrieval, llm)
}

func TestAsk_GeneratesCitedAnswer(t *testing.T) {
	store := &mockChunkStore{results: []domain.RetrievedChunk{
		{Index: 3, Content: "Hold ACE inhibitors when potassium exceeds 5.5 mEq/L.", Similarity: 0.81},
		{Index: 7, Content: "Recheck potassium within 24 hours of binder initiation.", Similarity: 0.64},
	}}
	llm := &mockLLMService{reply: "Hold ACE inhibitors above 5.5 mEq/L [1] and recheck within 24 hours [2]."}
	svc := newAnswerFixture(store, llm)

	answer, err := svc.Ask(context.Background(), "when should ACE inhibitors be held?", "smh-manual")
	require.NoError(t, err)

	assert.Contains(t, answer.Text, "[1]")
	assert.Len(t, answer.Sources, 2)

	// The prompt carries the numbered excerpts and the question.
	assert.Contains(t, llm.lastUser, "[1] (similarity 0.81)")
	assert.Contains(t, llm.lastUser, "[2] (similarity 0.64)")
	assert.Contains(t, llm.lastUser, "when should ACE inhibitors be held?")
}

func TestAsk_NoChunksAboveThreshold(t *testing.T) {
	svc := newAnswerFixture(&mockChunkStore{}, &mockLLMService{reply: "should not be called"})

	answer, err := svc.Ask(context.Background(), "off-topic question", "smh-manual")
	require.NoError(t, err)

	assert.Equal(t, noContextAnswer, answer.Text)
	assert.Empty(t, answer.Sources)
}

func TestAsk_WithoutLLMReturnsExcerpts(t *testing.T) {
	store := &mockChunkStore{results: []domain.RetrievedChunk{
		{Index: 0, Content: "Target dry weight is reassessed monthly.", Similarity: 0.55},
	}}
	svc := newAnswerFixture(store, nil)

	answer, err := svc.Ask(context.Background(), "how often is dry weight reassessed?", "smh-manual")
	require.NoError(t, err)

	assert.Contains(t, answer.Text, "Target dry weight")
	assert.Len(t, answer.Sources, 1)
}

func TestAsk_LLMFailurePropagates(t *testing.T) {
	store := &mockChunkStore{results: []domain.RetrievedChunk{
		{Index: 0, Content: "some excerpt", Similarity: 0.9},
	}}
	llm := &mockLLMService{chatErr: errors.New("model overloaded")}
	svc := newAnswerFixture(store, llm)

	_, err := svc.Ask(context.Background(), "anything", "smh-manual")
	assert.Error(t, err)
}

func TestAsk_RetrievalFailurePropagates(t *testing.T) {
	svc := newAnswerFixture(&mockChunkStore{}, nil)

	_, err := svc.Ask(context.Background(), "anything", "ghost")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
