// Package gemini provides an embedding service adapter using the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "text-embedding-004"
	DefaultDimensions = 768
)

// Config holds configuration for the Gemini embedding service.
type Config struct {
	APIKey     string
	Model      string
	Dimensions int

	// Endpoint overrides the API endpoint, mostly for tests and proxies.
	Endpoint string
}

// EmbeddingService generates embeddings using the Gemini API.
type EmbeddingService struct {
	client     *genai.Client
	model      *genai.EmbeddingModel
	name       string
	dimensions int
}

// NewEmbeddingService creates a new Gemini embedding service.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &EmbeddingService{
		client:     client,
		model:      client.EmbeddingModel(cfg.Model),
		name:       cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, Classify(err)
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("gemini: no embedding returned")
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch embeds all texts in one batch request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := s.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	resp, err := s.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, Classify(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: returned %d embeddings, expected %d", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("gemini: embedding %d missing", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.name
}

// Ping fetches model metadata, which validates the key without inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.model.Info(ctx); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", Classify(err))
	}
	return nil
}

// Close releases the client connection.
func (s *EmbeddingService) Close() error {
	return s.client.Close()
}

// Classify maps API status codes onto domain errors so callers can
// tell permanent failures from transient ones.
func Classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: gemini: %v", domain.ErrUnauthorized, err)
		case http.StatusBadRequest, http.StatusNotFound:
			return fmt.Errorf("%w: gemini: %v", domain.ErrInvalidInput, err)
		}
	}
	return fmt.Errorf("gemini: %w", err)
}
