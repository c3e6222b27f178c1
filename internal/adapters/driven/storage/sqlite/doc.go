// Package sqlite implements the persistence ports on SQLite.
//
// One Store owns the database handle and hands out wrapper types for each
// port (DocumentStore, ChunkStore, JobStore). Chunks carry a lexical index
// in chunk_terms, scored with BM25 in Go, and embeddings are stored as
// little-endian float32 blobs compared by cosine similarity.
//
// Every query joins documents on owner_id. Rows of another owner are
// never read, updated or deleted.
package sqlite
