package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/nephrag/nephrag/internal/core/domain"
	"github.com/nephrag/nephrag/internal/core/ports/driven"
	"github.com/nephrag/nephrag/internal/core/ports/driving"
	"github.com/nephrag/nephrag/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// answerSystemPrompt instructs the model to stay inside the retrieved
// excerpts and cite them by number.
const answerSystemPrompt = `You are a clinical reference assistant for nephrology housestaff.
Answer the question using ONLY the numbered excerpts provided. Cite the
excerpts you rely on as [1], [2], and so on. If the excerpts do not
contain the answer, say so plainly instead of guessing. Never invent
dosages, thresholds, or protocols.`

// noContextAnswer is returned when no chunk clears the similarity
// threshold, so the caller gets a definite reply instead of an error.
const noContextAnswer = "No relevant excerpts were found in this document for that question."

// AnswerService generates a citation-annotated answer from retrieved
// chunks. The LLM service is optional; without it Ask returns the raw
// excerpts as the answer text.
type AnswerService struct {
	retrieval driving.RetrievalService
	llm       driven.LLMService
	maxTokens int
}

// NewAnswerService creates an answer service. llm may be nil.
func NewAnswerService(retrieval driving.RetrievalService, llm driven.LLMService) *AnswerService {
	return &AnswerService{
		retrieval: retrieval,
		llm:       llm,
		maxTokens: 1024,
	}
}

// Ask retrieves context for the question and generates an answer. When
// no chunk meets the threshold it answers with the fallback wording
// rather than failing.
func (s *AnswerService) Ask(ctx context.Context, question, documentSlug string) (driving.Answer, error) {
	chunks, err := s.retrieval.Retrieve(ctx, question, documentSlug, domain.RetrievalOptions{})
	if err != nil {
		return driving.Answer{}, err
	}

	if len(chunks) == 0 {
		logger.Debug("ask: no chunks above threshold for %q", documentSlug)
		return driving.Answer{Text: noContextAnswer}, nil
	}

	if s.llm == nil {
		logger.Debug("ask: no LLM configured, returning raw excerpts")
		return driving.Answer{Text: formatExcerpts(chunks), Sources: chunks}, nil
	}

	messages := []driven.ChatMessage{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Excerpts:\n\n%s\nQuestion: %s", formatExcerpts(chunks), question)},
	}

	text, err := s.llm.Chat(ctx, messages, driven.ChatOptions{
		MaxTokens:   s.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		return driving.Answer{}, fmt.Errorf("generating answer: %w", err)
	}

	return driving.Answer{Text: text, Sources: chunks}, nil
}

// formatExcerpts numbers the retrieved chunks for citation.
func formatExcerpts(chunks []domain.RetrievedChunk) string {
	var b strings.Builder
	for i, ch := range chunks {
		fmt.Fprintf(&b, "[%d] (similarity %.2f)\n%s\n\n", i+1, ch.Similarity, strings.TrimSpace(ch.Content))
	}
	return b.String()
}
