package domain

import "time"

// Default retrieval tuning. The per-space thresholds reflect the different
// similarity-score distributions of the two embedding spaces. Both are
// empirically tuned defaults, overridable per call and via configuration.
const (
	// DefaultTopK is the default number of chunks returned.
	DefaultTopK = 5

	// DefaultRemoteThreshold is the minimum cosine similarity for the
	// remote embedding space.
	DefaultRemoteThreshold = 0.3

	// DefaultLocalThreshold is the minimum cosine similarity for the
	// local embedding space, which scores lower for relevant matches.
	DefaultLocalThreshold = 0.05
)

// DefaultThreshold returns the default minimum similarity for a space.
func DefaultThreshold(space EmbeddingSpace) float64 {
	if space == SpaceLocal {
		return DefaultLocalThreshold
	}
	return DefaultRemoteThreshold
}

// RetrievalOptions tunes a retrieval call.
type RetrievalOptions struct {
	// TopK is the maximum number of chunks to return. Zero means
	// DefaultTopK.
	TopK int

	// MinSimilarity overrides the space's default threshold when
	// non-nil.
	MinSimilarity *float64
}

// RetrievedChunk is a chunk ranked by similarity to a query vector.
type RetrievedChunk struct {
	// Index is the chunk's ordinal position within the document.
	Index int

	// Content is the chunk text.
	Content string

	// Similarity is the cosine similarity to the query vector.
	Similarity float64

	// CharStart and CharEnd are the chunk's character offsets.
	CharStart int
	CharEnd   int
}

// ProviderInfo describes an embedding provider's identity and output,
// used for cache keying, threshold selection and logging.
type ProviderInfo struct {
	// Name is a human-readable model identity.
	Name string

	// Dimensions is the fixed output vector size.
	Dimensions int
}

// IngestSummary reports the outcome of ingesting one document, so that
// per-chunk degradation is visible rather than silent.
type IngestSummary struct {
	// DocumentSlug identifies the ingested document.
	DocumentSlug string

	// ChunksCreated is the number of chunks produced by the chunker.
	ChunksCreated int

	// EmbeddingsSucceeded is the number of chunks embedded successfully.
	EmbeddingsSucceeded int

	// RowsStored is the number of chunk rows written to the store.
	RowsStored int

	// Duration is the wall-clock time for the whole document.
	Duration time.Duration
}
