// Package ai builds the embedding and generation adapters named by settings,
// wrapped with rate limiting and a circuit breaker.
package ai

import (
	"context"
	"fmt"
	"time"

	geminiembed "github.com/custodia-labs/studyrag/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/custodia-labs/studyrag/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/studyrag/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/studyrag/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/custodia-labs/studyrag/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/custodia-labs/studyrag/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/studyrag/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/studyrag/internal/adapters/driven/resilience"
	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService // Nil when generation is not configured.
	Warnings         []string          // Non-fatal issues.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init creates both services. Embeddings are required: ingestion and
// semantic retrieval cannot run without them. A missing or unreachable LLM
// only produces a warning; answers then fail with ErrLLMUnavailable.
func Init(ctx context.Context, emb domain.EmbeddingSettings, llm domain.LLMSettings) (*InitResult, error) {
	embedder, err := CreateAndValidateEmbeddingService(ctx, emb)
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: no API key for %s embeddings", domain.ErrEmbeddingUnavailable, emb.Provider)
	}

	res := &InitResult{EmbeddingService: embedder}
	generator, err := CreateAndValidateLLMService(ctx, llm)
	switch {
	case err != nil:
		res.Warnings = append(res.Warnings, err.Error())
	case generator == nil:
		res.Warnings = append(res.Warnings, fmt.Sprintf("no API key for %s generation, answers are disabled", llm.Provider))
	default:
		res.LLMService = generator
	}
	return res, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns nil without error if the provider is not configured.
func CreateAndValidateEmbeddingService(ctx context.Context, settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(pctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns nil without error if the provider is not configured.
func CreateAndValidateLLMService(ctx context.Context, settings domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(pctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}
	return svc, nil
}

// CreateEmbeddingService creates the embedding service named by settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(ctx context.Context, settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !settings.IsConfigured() {
		if !settings.Provider.SupportsEmbeddings() {
			return nil, fmt.Errorf("unsupported embedding provider: %q", settings.Provider)
		}
		return nil, nil
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		svc, err = openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})
	case domain.AIProviderGemini:
		svc, err = geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
			APIKey:     settings.APIKey,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
			Endpoint:   settings.BaseURL,
		})
	case domain.AIProviderOllama:
		svc, err = ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})
	}
	if err != nil {
		return nil, err
	}
	return resilience.WrapEmbedder(svc, resilience.Options{RequestsPerSecond: settings.RequestsPerSecond}), nil
}

// CreateLLMService creates the generation service named by settings.
// Returns nil if the provider is not configured.
func CreateLLMService(ctx context.Context, settings domain.LLMSettings) (driven.LLMService, error) {
	if !settings.IsConfigured() {
		if !settings.Provider.IsValid() {
			return nil, fmt.Errorf("unsupported LLM provider: %q", settings.Provider)
		}
		return nil, nil
	}

	var (
		svc driven.LLMService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		svc, err = openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	case domain.AIProviderGemini:
		svc, err = geminillm.NewLLMService(ctx, geminillm.Config{
			APIKey:   settings.APIKey,
			Model:    settings.Model,
			Endpoint: settings.BaseURL,
		})
	case domain.AIProviderOllama:
		svc, err = ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	case domain.AIProviderAnthropic:
		svc, err = anthropic.NewLLMService(anthropic.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	}
	if err != nil {
		return nil, err
	}
	return resilience.WrapLLM(svc, resilience.Options{RequestsPerSecond: settings.RequestsPerSecond}), nil
}
