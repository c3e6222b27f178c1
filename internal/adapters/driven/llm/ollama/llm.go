// Package ollama provides an LLM service adapter using a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the LLM model to use (default: llama3.2).
	Model string

	// Timeout bounds a non-streaming completion (default: 120s).
	Timeout time.Duration
}

// LLMService provides generation using Ollama's chat API.
type LLMService struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base URL %q: %w", cfg.BaseURL, err)
	}

	// Streams are bounded by their context, so the HTTP client has no timeout.
	return &LLMService{
		client:  api.NewClient(base, http.DefaultClient),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

func (s *LLMService) request(messages []driven.ChatMessage, opts driven.ChatOptions, stream bool) *api.ChatRequest {
	req := &api.ChatRequest{
		Model:    s.model,
		Messages: make([]api.Message, len(messages)),
		Stream:   &stream,
		Options:  map[string]any{"temperature": opts.Temperature},
	}
	if opts.MaxTokens > 0 {
		req.Options["num_predict"] = opts.MaxTokens
	}
	for i, msg := range messages {
		req.Messages[i] = api.Message{Role: msg.Role, Content: msg.Content}
	}
	return req
}

// Complete returns the full response to a conversation.
func (s *LLMService) Complete(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var b strings.Builder
	err := s.client.Chat(ctx, s.request(messages, opts, false), func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", classify(err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Stream returns the response as incremental fragments.
func (s *LLMService) Stream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (driven.TextStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	t := &textStream{items: make(chan streamItem), ctx: ctx, cancel: cancel}

	req := s.request(messages, opts, true)
	go func() {
		defer close(t.items)
		err := s.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			return t.send(streamItem{text: resp.Message.Content})
		})
		if err != nil && ctx.Err() == nil {
			_ = t.send(streamItem{err: classify(err)})
		}
	}()
	return t, nil
}

type streamItem struct {
	text string
	err  error
}

// textStream turns the client's callback into pull-based fragments.
type textStream struct {
	items  chan streamItem
	ctx    context.Context
	cancel context.CancelFunc
}

func (t *textStream) send(it streamItem) error {
	select {
	case t.items <- it:
		return nil
	case <-t.ctx.Done():
		return t.ctx.Err()
	}
}

func (t *textStream) Recv() (string, error) {
	it, ok := <-t.items
	if !ok {
		if err := t.ctx.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	if it.err != nil {
		return "", it.err
	}
	return it.text, nil
}

func (t *textStream) Close() error {
	t.cancel()
	return nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks the server is up by listing local models.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.List(ctx); err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}

func classify(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusBadRequest, http.StatusNotFound:
			return fmt.Errorf("%w: ollama: %v", domain.ErrInvalidInput, err)
		}
	}
	return fmt.Errorf("ollama: %w", err)
}
