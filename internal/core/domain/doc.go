// Package domain defines the core business entities for the retrieval system.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A registered reference document
//   - Chunk: A fixed-size, overlapping unit of a document's text
//   - RetrievedChunk: A chunk ranked by similarity to a query
//   - EmbeddingSpace: A named vector representation from one provider
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
