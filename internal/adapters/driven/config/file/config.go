package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	kfile "github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates sections: STUDYRAG_RETRIEVAL__MIN_RELEVANCE=0.2.
const EnvPrefix = "STUDYRAG_"

// Config is the on-disk configuration, mirrored in config.toml.
// Durations are Go duration strings such as "30s".
type Config struct {
	Owner     string          `koanf:"owner" toml:"owner" comment:"Owner id used by local CLI commands"`
	PromptDir string          `koanf:"prompt_dir" toml:"prompt_dir" comment:"Directory of editable prompt templates (default: ~/.studyrag/prompts)"`
	Chunking  ChunkingConfig  `koanf:"chunking" toml:"chunking"`
	Embedding EmbeddingConfig `koanf:"embedding" toml:"embedding"`
	LLM       LLMConfig       `koanf:"llm" toml:"llm"`
	Retrieval RetrievalConfig `koanf:"retrieval" toml:"retrieval"`
	Ingestion IngestionConfig `koanf:"ingestion" toml:"ingestion"`
	Storage   StorageConfig   `koanf:"storage" toml:"storage"`
	Server    ServerConfig    `koanf:"server" toml:"server"`
	Queue     QueueConfig     `koanf:"queue" toml:"queue"`
	Telemetry TelemetryConfig `koanf:"telemetry" toml:"telemetry"`
}

// ChunkingConfig controls how extracted text is split.
type ChunkingConfig struct {
	Size      int     `koanf:"size" toml:"size" comment:"Target chunk size in tokens"`
	Overlap   float64 `koanf:"overlap" toml:"overlap" comment:"Fraction of a chunk repeated in the next one"`
	MinTokens int     `koanf:"min_tokens" toml:"min_tokens" comment:"Smallest chunk emitted for a short section"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider          string  `koanf:"provider" toml:"provider" comment:"openai, gemini or ollama"`
	Model             string  `koanf:"model" toml:"model"`
	BaseURL           string  `koanf:"base_url" toml:"base_url" comment:"Endpoint override, e.g. an Ollama server"`
	APIKey            string  `koanf:"api_key" toml:"api_key" comment:"Falls back to OPENAI_API_KEY or GEMINI_API_KEY"`
	Dimensions        int     `koanf:"dimensions" toml:"dimensions"`
	BatchSize         int     `koanf:"batch_size" toml:"batch_size"`
	MaxRetries        int     `koanf:"max_retries" toml:"max_retries"`
	Backoff           string  `koanf:"backoff" toml:"backoff" comment:"First retry delay, doubled per attempt"`
	BatchTimeout      string  `koanf:"batch_timeout" toml:"batch_timeout"`
	Concurrency       int     `koanf:"concurrency" toml:"concurrency" comment:"Batches in flight per ingestion job"`
	RequestsPerSecond float64 `koanf:"requests_per_second" toml:"requests_per_second" comment:"Client-side rate limit, 0 disables"`
}

// LLMConfig selects the generation provider.
type LLMConfig struct {
	Provider          string  `koanf:"provider" toml:"provider" comment:"openai, gemini, ollama or anthropic"`
	Model             string  `koanf:"model" toml:"model"`
	BaseURL           string  `koanf:"base_url" toml:"base_url"`
	APIKey            string  `koanf:"api_key" toml:"api_key" comment:"Falls back to the provider's *_API_KEY variable"`
	Temperature       float64 `koanf:"temperature" toml:"temperature"`
	MaxTokens         int     `koanf:"max_tokens" toml:"max_tokens"`
	RequestsPerSecond float64 `koanf:"requests_per_second" toml:"requests_per_second"`
}

// RetrievalConfig tunes hybrid retrieval and citations.
type RetrievalConfig struct {
	LexicalK         int     `koanf:"lexical_k" toml:"lexical_k"`
	VectorK          int     `koanf:"vector_k" toml:"vector_k"`
	LexicalWeight    float64 `koanf:"lexical_weight" toml:"lexical_weight"`
	VectorWeight     float64 `koanf:"vector_weight" toml:"vector_weight"`
	MaxContextChunks int     `koanf:"max_context_chunks" toml:"max_context_chunks"`
	MinRelevance     float64 `koanf:"min_relevance" toml:"min_relevance" comment:"Fused score below which a passage is not cited"`
	MaxCitations     int     `koanf:"max_citations" toml:"max_citations"`
	SnippetLength    int     `koanf:"snippet_length" toml:"snippet_length"`
	Timeout          string  `koanf:"timeout" toml:"timeout"`
}

// IngestionConfig tunes the ingestion pipeline.
type IngestionConfig struct {
	Workers           int    `koanf:"workers" toml:"workers"`
	QueueSize         int    `koanf:"queue_size" toml:"queue_size"`
	ExtractionTimeout string `koanf:"extraction_timeout" toml:"extraction_timeout"`
	JobTimeout        string `koanf:"job_timeout" toml:"job_timeout" comment:"Jobs idle for longer are failed by the reaper"`
	ReapInterval      string `koanf:"reap_interval" toml:"reap_interval"`
	MaxFileBytes      int64  `koanf:"max_file_bytes" toml:"max_file_bytes"`
}

// StorageConfig selects persistence.
type StorageConfig struct {
	Driver  string `koanf:"driver" toml:"driver" comment:"sqlite or memory"`
	DataDir string `koanf:"data_dir" toml:"data_dir" comment:"Directory holding studyrag.db (default: ~/.studyrag/data)"`
	BlobDir string `koanf:"blob_dir" toml:"blob_dir" comment:"Root that storage locators resolve against"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string   `koanf:"addr" toml:"addr"`
	CORSOrigins []string `koanf:"cors_origins" toml:"cors_origins"`
	JWTSecret   string   `koanf:"jwt_secret" toml:"jwt_secret" comment:"HS256 secret; the token subject is the owner id"`
}

// QueueConfig selects the job queue.
type QueueConfig struct {
	Driver    string `koanf:"driver" toml:"driver" comment:"local or asynq"`
	RedisAddr string `koanf:"redis_addr" toml:"redis_addr"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled" toml:"enabled"`
	Endpoint    string  `koanf:"endpoint" toml:"endpoint" comment:"OTLP gRPC collector address"`
	Insecure    bool    `koanf:"insecure" toml:"insecure"`
	ServiceName string  `koanf:"service_name" toml:"service_name"`
	SampleRatio float64 `koanf:"sample_ratio" toml:"sample_ratio" comment:"Fraction of traces kept, 0 to 1"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	chunking := domain.DefaultChunkingSettings()
	embedding := domain.DefaultEmbeddingSettings()
	llm := domain.DefaultLLMSettings()
	retrieval := domain.DefaultRetrievalSettings()
	ingestion := domain.DefaultIngestionSettings()

	return &Config{
		Owner: "local",
		Chunking: ChunkingConfig{
			Size:      chunking.TargetTokens,
			Overlap:   chunking.Overlap,
			MinTokens: chunking.MinTokens,
		},
		Embedding: EmbeddingConfig{
			Provider:     string(embedding.Provider),
			Model:        embedding.Model,
			Dimensions:   embedding.Dimensions,
			BatchSize:    embedding.BatchSize,
			MaxRetries:   embedding.MaxRetries,
			Backoff:      embedding.BackoffBase.String(),
			BatchTimeout: embedding.BatchTimeout.String(),
			Concurrency:  embedding.Concurrency,
		},
		LLM: LLMConfig{
			Provider:    string(llm.Provider),
			Model:       llm.Model,
			Temperature: float64(llm.Temperature),
			MaxTokens:   llm.MaxTokens,
		},
		Retrieval: RetrievalConfig{
			LexicalK:         retrieval.LexicalK,
			VectorK:          retrieval.VectorK,
			LexicalWeight:    retrieval.LexicalWeight,
			VectorWeight:     retrieval.VectorWeight,
			MaxContextChunks: retrieval.MaxContextChunks,
			MinRelevance:     retrieval.MinRelevance,
			MaxCitations:     retrieval.MaxCitations,
			SnippetLength:    retrieval.SnippetLength,
			Timeout:          retrieval.Timeout.String(),
		},
		Ingestion: IngestionConfig{
			Workers:           ingestion.Workers,
			QueueSize:         ingestion.QueueSize,
			ExtractionTimeout: ingestion.ExtractionTimeout.String(),
			JobTimeout:        ingestion.JobTimeout.String(),
			ReapInterval:      time.Minute.String(),
			MaxFileBytes:      ingestion.MaxFileBytes,
		},
		Storage: StorageConfig{Driver: "sqlite"},
		Server:  ServerConfig{Addr: ":8080"},
		Queue:   QueueConfig{Driver: "local", RedisAddr: "localhost:6379"},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "studyrag",
			SampleRatio: 1,
		},
	}
}

// DefaultDir returns ~/.studyrag.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".studyrag"), nil
}

// DefaultPath returns ~/.studyrag/config.toml.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load builds the configuration from defaults, the TOML file at path
// (skipped when missing), a .env file in the working directory and
// STUDYRAG_ environment variables, in increasing precedence.
// An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	k := koanf.New(".")
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(kfile.Provider(path), tomlParser{}); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.fillAPIKeys()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps STUDYRAG_RETRIEVAL__MIN_RELEVANCE to retrieval.min_relevance.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func (c *Config) fillAPIKeys() {
	providerKey := func(provider string) string {
		switch domain.AIProvider(provider) {
		case domain.AIProviderOpenAI:
			return os.Getenv("OPENAI_API_KEY")
		case domain.AIProviderGemini:
			return os.Getenv("GEMINI_API_KEY")
		case domain.AIProviderAnthropic:
			return os.Getenv("ANTHROPIC_API_KEY")
		}
		return ""
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = providerKey(c.Embedding.Provider)
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = providerKey(c.LLM.Provider)
	}
}

// WriteDefault writes the default configuration as commented TOML.
// An existing file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	return Write(path, DefaultConfig(), force)
}

// Write saves c as TOML with 0600 permissions.
func Write(path string, c *Config, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks ranges and parses durations.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Chunking.Size > 0, "chunking.size must be positive")
	check(c.Chunking.Overlap >= 0 && c.Chunking.Overlap < 1, "chunking.overlap must be in [0,1)")
	check(c.Chunking.MinTokens >= 0, "chunking.min_tokens must be non-negative")
	check(c.Embedding.BatchSize > 0, "embedding.batch_size must be positive")
	check(c.Embedding.MaxRetries >= 0, "embedding.max_retries must be non-negative")
	check(c.Retrieval.LexicalWeight >= 0 && c.Retrieval.VectorWeight >= 0, "retrieval weights must be non-negative")
	check(c.Retrieval.MinRelevance >= 0 && c.Retrieval.MinRelevance <= 1, "retrieval.min_relevance must be in [0,1]")
	check(c.Retrieval.MaxCitations > 0, "retrieval.max_citations must be positive")
	check(c.Retrieval.SnippetLength > 0, "retrieval.snippet_length must be positive")
	check(c.Ingestion.Workers > 0, "ingestion.workers must be positive")
	check(c.Ingestion.MaxFileBytes > 0, "ingestion.max_file_bytes must be positive")
	check(c.Storage.Driver == "sqlite" || c.Storage.Driver == "memory", "storage.driver must be sqlite or memory, got %q", c.Storage.Driver)
	check(c.Queue.Driver == "local" || c.Queue.Driver == "asynq", "queue.driver must be local or asynq, got %q", c.Queue.Driver)
	emb := domain.AIProvider(c.Embedding.Provider)
	check(emb == "" || emb.SupportsEmbeddings(), "embedding.provider %q has no embedding API", emb)
	check(c.LLM.Provider == "" || domain.AIProvider(c.LLM.Provider).IsValid(), "unknown llm.provider %q", c.LLM.Provider)

	for name, value := range c.durations() {
		d, err := time.ParseDuration(value)
		check(err == nil && d > 0, "%s must be a positive duration, got %q", name, value)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

func (c *Config) durations() map[string]string {
	return map[string]string{
		"embedding.backoff":            c.Embedding.Backoff,
		"embedding.batch_timeout":      c.Embedding.BatchTimeout,
		"retrieval.timeout":            c.Retrieval.Timeout,
		"ingestion.extraction_timeout": c.Ingestion.ExtractionTimeout,
		"ingestion.job_timeout":        c.Ingestion.JobTimeout,
		"ingestion.reap_interval":      c.Ingestion.ReapInterval,
	}
}

// duration parses a validated duration string.
func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ChunkingSettings converts to domain settings.
func (c *Config) ChunkingSettings() domain.ChunkingSettings {
	return domain.ChunkingSettings{
		TargetTokens: c.Chunking.Size,
		Overlap:      c.Chunking.Overlap,
		MinTokens:    c.Chunking.MinTokens,
	}
}

// EmbeddingSettings converts to domain settings.
func (c *Config) EmbeddingSettings() domain.EmbeddingSettings {
	return domain.EmbeddingSettings{
		Provider:          domain.AIProvider(c.Embedding.Provider),
		Model:             c.Embedding.Model,
		BaseURL:           c.Embedding.BaseURL,
		APIKey:            c.Embedding.APIKey,
		Dimensions:        c.Embedding.Dimensions,
		BatchSize:         c.Embedding.BatchSize,
		MaxRetries:        c.Embedding.MaxRetries,
		BackoffBase:       duration(c.Embedding.Backoff),
		BatchTimeout:      duration(c.Embedding.BatchTimeout),
		Concurrency:       c.Embedding.Concurrency,
		RequestsPerSecond: c.Embedding.RequestsPerSecond,
	}
}

// LLMSettings converts to domain settings.
func (c *Config) LLMSettings() domain.LLMSettings {
	return domain.LLMSettings{
		Provider:          domain.AIProvider(c.LLM.Provider),
		Model:             c.LLM.Model,
		BaseURL:           c.LLM.BaseURL,
		APIKey:            c.LLM.APIKey,
		Temperature:       float32(c.LLM.Temperature),
		MaxTokens:         c.LLM.MaxTokens,
		RequestsPerSecond: c.LLM.RequestsPerSecond,
	}
}

// RetrievalSettings converts to domain settings.
func (c *Config) RetrievalSettings() domain.RetrievalSettings {
	return domain.RetrievalSettings{
		LexicalK:         c.Retrieval.LexicalK,
		VectorK:          c.Retrieval.VectorK,
		LexicalWeight:    c.Retrieval.LexicalWeight,
		VectorWeight:     c.Retrieval.VectorWeight,
		MaxContextChunks: c.Retrieval.MaxContextChunks,
		MinRelevance:     c.Retrieval.MinRelevance,
		MaxCitations:     c.Retrieval.MaxCitations,
		SnippetLength:    c.Retrieval.SnippetLength,
		Timeout:          duration(c.Retrieval.Timeout),
	}
}

// IngestionSettings converts to domain settings.
func (c *Config) IngestionSettings() domain.IngestionSettings {
	return domain.IngestionSettings{
		Workers:           c.Ingestion.Workers,
		QueueSize:         c.Ingestion.QueueSize,
		ExtractionTimeout: duration(c.Ingestion.ExtractionTimeout),
		JobTimeout:        duration(c.Ingestion.JobTimeout),
		MaxFileBytes:      c.Ingestion.MaxFileBytes,
	}
}

// ReapInterval is how often stale jobs are checked for.
func (c *Config) ReapInterval() time.Duration {
	return duration(c.Ingestion.ReapInterval)
}

// DataDir returns the SQLite data directory, defaulting under ~/.studyrag.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir, nil
	}
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// tomlParser is a koanf.Parser backed by go-toml.
type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]interface{}) ([]byte, error) {
	return toml.Marshal(m)
}
