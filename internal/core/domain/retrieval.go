package domain

// ScoredChunk is a chunk returned by one retrieval channel.
type ScoredChunk struct {
	Chunk Chunk

	// Score is normalised to [0,1], higher is better.
	Score float64
}

// RetrievalCandidate is a chunk after hybrid fusion.
type RetrievalCandidate struct {
	Chunk        Chunk
	LexicalScore float64
	VectorScore  float64
	FusedScore   float64

	// Rank is the 1-based position in the fused list.
	Rank int
}
