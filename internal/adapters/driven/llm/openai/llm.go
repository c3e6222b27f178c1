// Package openai provides an LLM service adapter using the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig holds configuration for the OpenAI LLM service.
type LLMConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL. Empty means the public OpenAI endpoint.
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the LLM model to use (default: gpt-4o-mini).
	Model string

	// Timeout bounds a non-streaming request (default: 120s).
	// Streams are bounded by their context only.
	Timeout time.Duration
}

// LLMService provides chat generation using the OpenAI API.
type LLMService struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewLLMService creates a new OpenAI LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &LLMService{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

func (s *LLMService) request(messages []driven.ChatMessage, opts driven.ChatOptions) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}
	return req
}

// Complete returns the full response to a conversation.
func (s *LLMService) Complete(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, s.request(messages, opts))
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no response choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Stream returns the response as incremental fragments.
func (s *LLMService) Stream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (driven.TextStream, error) {
	req := s.request(messages, opts)
	req.Stream = true

	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	return &textStream{stream: stream}, nil
}

// textStream adapts an OpenAI completion stream to driven.TextStream.
type textStream struct {
	stream *openai.ChatCompletionStream
}

func (t *textStream) Recv() (string, error) {
	for {
		resp, err := t.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", classify(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
		if resp.Choices[0].FinishReason != "" {
			return "", io.EOF
		}
	}
}

func (t *textStream) Close() error {
	return t.stream.Close()
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the API key by listing models, without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai: ping failed: %w", classify(err))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}

func classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: openai: %v", domain.ErrUnauthorized, err)
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: openai: %v", domain.ErrInvalidInput, err)
	default:
		return fmt.Errorf("openai: %w", err)
	}
}
