// Package anthropic provides an LLM service adapter using the Anthropic Messages API.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultTimeout   = 120 * time.Second
	defaultMaxTokens = 1024

	// anthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic LLM service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the LLM model to use.
	Model string

	// Timeout bounds a non-streaming completion (default: 120s).
	Timeout time.Duration
}

// LLMService provides generation using the Anthropic API.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature float32           `json:"temperature"`
	Stream      bool              `json:"stream,omitempty"`
}

type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string    `json:"stop_reason"`
	Error      *apiError `json:"error,omitempty"`
}

// streamEvent is the data payload of one server-sent event.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *apiError `json:"error,omitempty"`
}

// NewLLMService creates a new Anthropic LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &LLMService{
		client:  &http.Client{},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Complete returns the full response to a conversation.
func (s *LLMService) Complete(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.send(ctx, messages, opts, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	if msgResp.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", msgResp.Error.Message)
	}

	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	if result.Len() == 0 {
		return "", fmt.Errorf("anthropic: no response content returned")
	}
	return strings.TrimSpace(result.String()), nil
}

// Stream returns the response as incremental fragments.
func (s *LLMService) Stream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (driven.TextStream, error) {
	resp, err := s.send(ctx, messages, opts, true)
	if err != nil {
		return nil, err
	}
	return &textStream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

// send posts the conversation. System messages become the system prompt.
func (s *LLMService) send(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions, stream bool) (*http.Response, error) {
	reqBody := messagesRequest{
		Model:       s.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      stream,
	}
	if reqBody.MaxTokens <= 0 {
		reqBody.MaxTokens = defaultMaxTokens
	}
	var system []string
	for _, msg := range messages {
		if msg.Role == driven.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		reqBody.Messages = append(reqBody.Messages, messagesMessage{Role: msg.Role, Content: msg.Content})
	}
	reqBody.System = strings.Join(system, "\n\n")

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorise(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

func (s *LLMService) authorise(req *http.Request) {
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}

// statusError reads an error response and classifies it by status.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(body))
	var msgResp messagesResponse
	if json.Unmarshal(body, &msgResp) == nil && msgResp.Error != nil {
		msg = msgResp.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: anthropic: %s", domain.ErrUnauthorized, msg)
	case http.StatusBadRequest, http.StatusNotFound:
		return fmt.Errorf("%w: anthropic: %s", domain.ErrInvalidInput, msg)
	default:
		return fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, msg)
	}
}

// textStream reads text deltas from the server-sent event stream.
type textStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (t *textStream) Recv() (string, error) {
	for t.scanner.Scan() {
		data, ok := strings.CutPrefix(t.scanner.Text(), "data:")
		if !ok {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &ev); err != nil {
			return "", fmt.Errorf("anthropic: decode event: %w", err)
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				return ev.Delta.Text, nil
			}
		case "message_stop":
			return "", io.EOF
		case "error":
			if ev.Error != nil {
				return "", fmt.Errorf("anthropic error: %s", ev.Error.Message)
			}
			return "", errors.New("anthropic: stream error")
		}
	}
	if err := t.scanner.Err(); err != nil {
		return "", fmt.Errorf("anthropic: read stream: %w", err)
	}
	return "", io.EOF
}

func (t *textStream) Close() error {
	return t.body.Close()
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the API key by listing models, without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("anthropic: failed to create ping request: %w", err)
	}
	s.authorise(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
