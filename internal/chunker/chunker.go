// Package chunker splits cleaned document text into overlapping
// fixed-size windows, the atomic unit of retrieval.
//
// Sizes are expressed in tokens and converted to characters with a fixed
// characters-per-token ratio. The ratio is a deliberate approximation
// inherited from the corpus format: replacing it with exact tokenization
// would move chunk boundaries and invalidate previously stored embeddings.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nephrag/nephrag/internal/core/domain"
)

// DefaultChunkTokens is the default chunk size in approximate tokens.
const DefaultChunkTokens = 500

// DefaultOverlapTokens is the default overlap between consecutive chunks.
const DefaultOverlapTokens = 100

// DefaultCharsPerToken is the character-per-token estimate used to
// convert token sizes into character spans.
const DefaultCharsPerToken = 4

// Chunker produces overlapping windows of a fixed character span.
type Chunker struct {
	chunkTokens   int
	overlapTokens int
	charsPerToken int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkTokens sets the chunk size in tokens.
func WithChunkTokens(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.chunkTokens = n
		}
	}
}

// WithOverlapTokens sets the overlap between chunks in tokens.
func WithOverlapTokens(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlapTokens = n
		}
	}
}

// WithCharsPerToken sets the characters-per-token ratio.
func WithCharsPerToken(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.charsPerToken = n
		}
	}
}

// New creates a chunker with the given options. It fails when the
// overlap span meets or exceeds the chunk span: the window would never
// advance, so the configuration is rejected up front instead of looping
// forever at chunk time.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		chunkTokens:   DefaultChunkTokens,
		overlapTokens: DefaultOverlapTokens,
		charsPerToken: DefaultCharsPerToken,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.overlapTokens >= c.chunkTokens {
		return nil, fmt.Errorf("%w: overlap (%d tokens) must be smaller than chunk size (%d tokens)",
			domain.ErrConfiguration, c.overlapTokens, c.chunkTokens)
	}

	return c, nil
}

// ChunkSpan returns the window width in characters.
func (c *Chunker) ChunkSpan() int {
	return c.chunkTokens * c.charsPerToken
}

// OverlapSpan returns the overlap width in characters.
func (c *Chunker) OverlapSpan() int {
	return c.overlapTokens * c.charsPerToken
}

// Chunk splits text into overlapping windows. It is a pure function:
// identical input yields identical output, and there are no side effects.
//
// The window slides forward by (chunk span - overlap span) characters
// starting at offset 0 until its start reaches the text length. Window
// edges landing inside a multi-byte rune advance to the next rune start
// so every chunk holds valid UTF-8. Whitespace-only windows are dropped;
// indices stay sequential over the retained chunks.
func (c *Chunker) Chunk(text string) []domain.Chunk {
	if text == "" {
		return nil
	}

	span := c.ChunkSpan()
	step := span - c.OverlapSpan()

	chunks := make([]domain.Chunk, 0, len(text)/step+1)
	index := 0

	for start := 0; start < len(text); start += step {
		lo := runeAlign(text, start)
		hi := start + span
		if hi > len(text) {
			hi = len(text)
		} else {
			hi = runeAlign(text, hi)
		}
		if lo >= hi {
			continue
		}

		content := text[lo:hi]
		if strings.TrimSpace(content) == "" {
			continue
		}

		chunks = append(chunks, domain.Chunk{
			Index:         index,
			Content:       content,
			CharStart:     lo,
			CharEnd:       hi,
			TokenEstimate: (len(content) + c.charsPerToken/2) / c.charsPerToken,
		})
		index++
	}

	return chunks
}

// runeAlign advances offset to the nearest rune start at or after it.
func runeAlign(text string, offset int) int {
	for offset < len(text) && !utf8.RuneStart(text[offset]) {
		offset++
	}
	return offset
}
