package domain

import "time"

// EmbeddingSpace identifies the vector representation a document's chunks
// are stored under. Vectors from different spaces are never compared.
type EmbeddingSpace string

const (
	// SpaceRemote is the remote embedding API space (1536 dimensions).
	SpaceRemote EmbeddingSpace = "remote"

	// SpaceLocal is the local model space (384 dimensions).
	SpaceLocal EmbeddingSpace = "local"
)

// Valid reports whether the space is one of the known embedding spaces.
func (s EmbeddingSpace) Valid() bool {
	return s == SpaceRemote || s == SpaceLocal
}

// Document represents a registered reference document.
// It is created by an administrative process and read-mostly afterwards.
type Document struct {
	// Slug is the stable external identifier. Unique and immutable
	// once chunks reference it.
	Slug string

	// Title is the human-readable title.
	Title string

	// StoragePath locates the document's cleaned text, relative to
	// the corpus directory.
	StoragePath string

	// EmbeddingSpace designates which vector space this document's
	// chunks are embedded in.
	EmbeddingSpace EmbeddingSpace

	// Active indicates the document is available for retrieval.
	Active bool

	// Metadata contains arbitrary key-value pairs (external identifier,
	// publication year, etc).
	Metadata map[string]any

	// CreatedAt is when the document was registered.
	CreatedAt time.Time

	// UpdatedAt is when the document record was last updated.
	UpdatedAt time.Time
}

// Chunk represents a contiguous window of a document's cleaned text,
// identified by (document slug, index). Chunk content is never re-split
// once stored; re-ingestion replaces the whole set.
type Chunk struct {
	// ID is the unique row identifier.
	ID string

	// DocumentSlug links to the owning Document.
	DocumentSlug string

	// Index is the ordinal position within the document, sequential
	// over retained chunks.
	Index int

	// Content is the window's text.
	Content string

	// CharStart is the window's starting character offset.
	CharStart int

	// CharEnd is the window's ending character offset (exclusive).
	CharEnd int

	// TokenEstimate approximates the token count via a fixed
	// characters-per-token ratio.
	TokenEstimate int

	// ContentHash is the hex SHA-256 of Content, recorded so stored
	// embeddings can be traced back to the exact source text.
	ContentHash string
}
