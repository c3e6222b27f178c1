package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOpenAI is the OpenAI API or any OpenAI-compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGemini is Google's Gemini API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderOllama is a local Ollama server.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderAnthropic is the Anthropic Messages API. Generation only.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderGemini, AIProviderOllama, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// SupportsEmbeddings reports whether the provider offers an embedding API.
func (p AIProvider) SupportsEmbeddings() bool {
	return p.IsValid() && p != AIProviderAnthropic
}

// RequiresAPIKey returns false for providers that run locally.
func (p AIProvider) RequiresAPIKey() bool {
	return p != AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOpenAI:
		return "OpenAI (cloud or compatible)"
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	case AIProviderOllama:
		return "Ollama (local, no API key)"
	case AIProviderAnthropic:
		return "Anthropic Claude (cloud, answers only)"
	default:
		return unknownDescription
	}
}

// ChunkingSettings controls the chunker.
type ChunkingSettings struct {
	// TargetTokens is the target chunk size.
	TargetTokens int

	// Overlap is the fraction of TargetTokens repeated between chunks.
	Overlap float64

	// MinTokens is the smallest chunk emitted for a short section.
	MinTokens int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Provider   AIProvider
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int

	// BatchSize is the provider-imposed request size limit.
	BatchSize int

	// MaxRetries bounds retries of a failed batch.
	MaxRetries int

	// BackoffBase is the first retry delay, doubled per attempt.
	BackoffBase time.Duration

	// BatchTimeout bounds one batch including retries.
	BatchTimeout time.Duration

	// Concurrency is the number of batches in flight per job.
	Concurrency int

	// RequestsPerSecond is the client-side rate limit. Zero disables it.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	return e.Provider.SupportsEmbeddings() && (e.APIKey != "" || !e.Provider.RequiresAPIKey())
}

// LLMSettings holds generation model configuration.
type LLMSettings struct {
	Provider    AIProvider
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float32
	MaxTokens   int

	// RequestsPerSecond is the client-side rate limit. Zero disables it.
	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	return l.Provider.IsValid() && (l.APIKey != "" || !l.Provider.RequiresAPIKey())
}

// RetrievalSettings controls query-time retrieval, fusion and citation.
type RetrievalSettings struct {
	LexicalK int
	VectorK  int

	LexicalWeight float64
	VectorWeight  float64

	// MaxContextChunks caps the fused list after diversity filtering.
	MaxContextChunks int

	// MinRelevance is the fused score below which a candidate is not a source.
	MinRelevance float64

	MaxCitations  int
	SnippetLength int

	// Timeout bounds both retrieval channels.
	Timeout time.Duration
}

// IngestionSettings controls the orchestrator.
type IngestionSettings struct {
	// Workers bounds concurrent document ingestions.
	Workers int

	// QueueSize bounds jobs waiting for a worker.
	QueueSize int

	ExtractionTimeout time.Duration

	// JobTimeout bounds a whole job. Processing jobs older than this are reaped.
	JobTimeout time.Duration

	// MaxFileBytes rejects larger files at extraction.
	MaxFileBytes int64
}

// Default values.
const (
	DefaultChunkTokens      = 500
	DefaultChunkOverlap     = 0.15
	DefaultMinChunkTokens   = 50
	DefaultTopK             = 20
	DefaultLexicalWeight    = 0.4
	DefaultVectorWeight     = 0.6
	DefaultMaxContextChunks = 10
	DefaultMinRelevance     = 0.1
	DefaultMaxCitations     = 5
	DefaultSnippetLength    = 200
	DefaultWorkers          = 3
	DefaultEmbeddingBatch   = 100
	DefaultMaxRetries       = 3
	DefaultMaxFileBytes     = 100 << 20
)

// DefaultChunkingSettings returns the chunker defaults.
func DefaultChunkingSettings() ChunkingSettings {
	return ChunkingSettings{
		TargetTokens: DefaultChunkTokens,
		Overlap:      DefaultChunkOverlap,
		MinTokens:    DefaultMinChunkTokens,
	}
}

// DefaultRetrievalSettings returns the retrieval defaults.
func DefaultRetrievalSettings() RetrievalSettings {
	return RetrievalSettings{
		LexicalK:         DefaultTopK,
		VectorK:          DefaultTopK,
		LexicalWeight:    DefaultLexicalWeight,
		VectorWeight:     DefaultVectorWeight,
		MaxContextChunks: DefaultMaxContextChunks,
		MinRelevance:     DefaultMinRelevance,
		MaxCitations:     DefaultMaxCitations,
		SnippetLength:    DefaultSnippetLength,
		Timeout:          10 * time.Second,
	}
}

// DefaultIngestionSettings returns the orchestrator defaults.
func DefaultIngestionSettings() IngestionSettings {
	return IngestionSettings{
		Workers:           DefaultWorkers,
		QueueSize:         256,
		ExtractionTimeout: 2 * time.Minute,
		JobTimeout:        30 * time.Minute,
		MaxFileBytes:      DefaultMaxFileBytes,
	}
}

// DefaultEmbeddingSettings returns the embedding defaults for OpenAI.
func DefaultEmbeddingSettings() EmbeddingSettings {
	return EmbeddingSettings{
		Provider:     AIProviderOpenAI,
		Model:        "text-embedding-3-small",
		Dimensions:   1536,
		BatchSize:    DefaultEmbeddingBatch,
		MaxRetries:   DefaultMaxRetries,
		BackoffBase:  time.Second,
		BatchTimeout: 2 * time.Minute,
		Concurrency:  2,
	}
}

// DefaultLLMSettings returns the generation defaults for OpenAI.
func DefaultLLMSettings() LLMSettings {
	return LLMSettings{
		Provider:    AIProviderOpenAI,
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   1024,
	}
}
