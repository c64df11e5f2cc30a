package driving

import (
	"context"

	"github.com/nephrag/nephrag/internal/core/domain"
)

// RetrievalService answers similarity queries against one document.
type RetrievalService interface {
	// Retrieve embeds the query and returns the document's most similar
	// chunks. An empty result is valid and not an error; an unknown
	// document slug is an error.
	Retrieve(ctx context.Context, query, documentSlug string, opts domain.RetrievalOptions) ([]domain.RetrievedChunk, error)
}

// AnswerService produces a citation-annotated answer for a question.
type AnswerService interface {
	// Ask retrieves context for the question and generates an answer.
	// When no chunk meets the threshold it answers from the fallback
	// wording rather than failing.
	Ask(ctx context.Context, question, documentSlug string) (Answer, error)
}

// Answer is a generated reply plus the excerpts that informed it.
type Answer struct {
	// Text is the generated answer.
	Text string

	// Sources are the retrieved chunks the answer cites.
	Sources []domain.RetrievedChunk
}
