package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Excerpt is a cited chunk as shown to the model.
type Excerpt struct {
	Citation domain.Citation
	Content  string
}

// AnswerGenerator builds grounded prompts and calls the generation model.
type AnswerGenerator struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	opts    driven.ChatOptions
}

// NewAnswerGenerator creates a generator. llm may be nil, in which case
// every generation fails with domain.ErrLLMUnavailable.
func NewAnswerGenerator(llm driven.LLMService, prompts driven.PromptStore, settings domain.LLMSettings) *AnswerGenerator {
	return &AnswerGenerator{
		llm:     llm,
		prompts: prompts,
		opts: driven.ChatOptions{
			MaxTokens:   settings.MaxTokens,
			Temperature: settings.Temperature,
		},
	}
}

// Messages builds the conversation for a question over the excerpts.
// Each excerpt is labelled [Citation N] with N matching its citation number.
func (g *AnswerGenerator) Messages(title, question string, excerpts []Excerpt) ([]driven.ChatMessage, error) {
	system, err := g.prompts.Load(driven.PromptAnswerSystem)
	if err != nil {
		return nil, fmt.Errorf("load prompt %s: %w", driven.PromptAnswerSystem, err)
	}
	user, err := g.prompts.Load(driven.PromptAnswerUser)
	if err != nil {
		return nil, fmt.Errorf("load prompt %s: %w", driven.PromptAnswerUser, err)
	}

	var b strings.Builder
	for i, ex := range excerpts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Citation %d]", ex.Citation.Number)
		if ex.Citation.Page > 0 {
			fmt.Fprintf(&b, " (Page %d)", ex.Citation.Page)
		}
		if ex.Citation.Section != "" {
			fmt.Fprintf(&b, " - %s", ex.Citation.Section)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(ex.Content))
	}

	return []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: fmt.Sprintf(system, domain.NoAnswerFallback)},
		{Role: driven.RoleUser, Content: fmt.Sprintf(user, title, b.String(), strings.TrimSpace(question))},
	}, nil
}

// Generate returns the complete answer text.
func (g *AnswerGenerator) Generate(ctx context.Context, title, question string, excerpts []Excerpt) (string, error) {
	if g.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	messages, err := g.Messages(title, question, excerpts)
	if err != nil {
		return "", err
	}
	answer, err := g.llm.Complete(ctx, messages, g.opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = domain.NoAnswerFallback
	}
	return answer, nil
}

// Stream starts a streaming generation. The caller closes the stream.
func (g *AnswerGenerator) Stream(ctx context.Context, title, question string, excerpts []Excerpt) (driven.TextStream, error) {
	if g.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	messages, err := g.Messages(title, question, excerpts)
	if err != nil {
		return nil, err
	}
	stream, err := g.llm.Stream(ctx, messages, g.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return stream, nil
}
