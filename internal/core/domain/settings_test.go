package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAIProvider_Capabilities(t *testing.T) {
	tests := []struct {
		provider   AIProvider
		valid      bool
		embeddings bool
		needsKey   bool
	}{
		{AIProviderOpenAI, true, true, true},
		{AIProviderGemini, true, true, true},
		{AIProviderOllama, true, true, false},
		{AIProviderAnthropic, true, false, true},
		{AIProvider("mistral"), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.provider.String(), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.provider.IsValid())
			assert.Equal(t, tt.embeddings, tt.provider.SupportsEmbeddings())
			assert.Equal(t, tt.needsKey, tt.provider.RequiresAPIKey())
		})
	}
	assert.Equal(t, unknownDescription, AIProvider("mistral").Description())
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	assert.False(t, EmbeddingSettings{}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "k"}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderAnthropic, APIKey: "k"}.IsConfigured())
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	assert.False(t, LLMSettings{Provider: AIProviderGemini}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderAnthropic, APIKey: "k"}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())
}
