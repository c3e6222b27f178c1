// Package domain defines the core entities of the ingestion and retrieval engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: an uploaded file and its ingestion lifecycle
//   - Section: transient structural text produced by extraction
//   - Chunk: a bounded passage, the unit of indexing and citation
//   - Embedding: the vector for exactly one Chunk
//   - IngestionJob: progress record for one ingestion run
//   - RetrievalCandidate, Citation, AnswerResult: query-time values
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
