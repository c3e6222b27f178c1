// Package gemini provides an LLM service adapter using the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	embedgemini "github.com/custodia-labs/studyrag/internal/adapters/driven/embedding/gemini"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-1.5-flash"

// Config holds configuration for the Gemini LLM service.
type Config struct {
	APIKey string
	Model  string

	// Endpoint overrides the API endpoint, mostly for tests and proxies.
	Endpoint string
}

// LLMService provides chat generation using the Gemini API.
type LLMService struct {
	client *genai.Client
	model  string
}

// NewLLMService creates a new Gemini LLM service.
func NewLLMService(ctx context.Context, cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &LLMService{client: client, model: cfg.Model}, nil
}

// session turns a conversation into a chat session plus the final user turn.
// System messages become the system instruction.
func (s *LLMService) session(messages []driven.ChatMessage, opts driven.ChatOptions) (*genai.ChatSession, []genai.Part, error) {
	model := s.client.GenerativeModel(s.model)
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxTokens))
	}
	model.SetTemperature(opts.Temperature)

	var system []string
	var turns []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case driven.RoleSystem:
			system = append(system, msg.Content)
		case driven.RoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != "user" {
		return nil, nil, fmt.Errorf("gemini: conversation must end with a user message")
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}

	cs := model.StartChat()
	cs.History = turns[:len(turns)-1]
	return cs, turns[len(turns)-1].Parts, nil
}

// Complete returns the full response to a conversation.
func (s *LLMService) Complete(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	cs, parts, err := s.session(messages, opts)
	if err != nil {
		return "", err
	}
	resp, err := cs.SendMessage(ctx, parts...)
	if err != nil {
		return "", embedgemini.Classify(err)
	}
	return strings.TrimSpace(text(resp)), nil
}

// Stream returns the response as incremental fragments.
func (s *LLMService) Stream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (driven.TextStream, error) {
	cs, parts, err := s.session(messages, opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	return &textStream{iter: cs.SendMessageStream(ctx, parts...), cancel: cancel}, nil
}

type textStream struct {
	iter   *genai.GenerateContentResponseIterator
	cancel context.CancelFunc
}

func (t *textStream) Recv() (string, error) {
	for {
		resp, err := t.iter.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", embedgemini.Classify(err)
		}
		if fragment := text(resp); fragment != "" {
			return fragment, nil
		}
	}
}

func (t *textStream) Close() error {
	t.cancel()
	return nil
}

func text(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	return b.String()
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping fetches model metadata, which validates the key without inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.GenerativeModel(s.model).Info(ctx); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", embedgemini.Classify(err))
	}
	return nil
}

// Close releases the client connection.
func (s *LLMService) Close() error {
	return s.client.Close()
}
