package driven

import "context"

// LLMService provides chat-style generation.
//
// Implementations may include:
//   - OpenAI (gpt-4o, gpt-4o-mini) or compatible endpoints
//   - Gemini (gemini-1.5-flash)
//   - Ollama (llama3.2, qwen2.5) running locally
//   - Anthropic (claude-3-5-haiku)
type LLMService interface {
	// Complete returns the full response to a conversation.
	Complete(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// Stream returns the response as incremental fragments.
	// Cancelling ctx or calling Close on the stream stops the upstream call.
	Stream(ctx context.Context, messages []ChatMessage, opts ChatOptions) (TextStream, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// TextStream yields generated fragments.
type TextStream interface {
	// Recv returns the next fragment, or io.EOF when generation finished.
	Recv() (string, error)

	// Close releases the underlying connection.
	Close() error
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float32
}
