package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/studyrag/internal/adapters/driven/resilience"
	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// modelsServer answers the model listing used by Ping.
func modelsServer(t *testing.T, status int) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(server.Close)
	return server.URL + "/v1"
}

func TestInitResult_Close(t *testing.T) {
	result := &InitResult{}
	result.Close()
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings domain.EmbeddingSettings
		wantNil  bool
		wantErr  bool
	}{
		{
			name:     "missing key returns nil",
			settings: domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
			wantNil:  true,
		},
		{
			name:     "unknown provider is an error",
			settings: domain.EmbeddingSettings{Provider: "mistral", APIKey: "k"},
			wantNil:  true,
			wantErr:  true,
		},
		{
			name:     "provider without embeddings is an error",
			settings: domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"},
			wantNil:  true,
			wantErr:  true,
		},
		{
			name:     "ollama needs no key",
			settings: domain.EmbeddingSettings{Provider: domain.AIProviderOllama},
		},
		{
			name: "openai",
			settings: domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "k",
				Model:    "text-embedding-3-small",
			},
		},
		{
			name: "gemini",
			settings: domain.EmbeddingSettings{
				Provider: domain.AIProviderGemini,
				APIKey:   "k",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(context.Background(), tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.IsType(t, &resilience.Embedder{}, svc)
			svc.Close()
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	svc, err := CreateLLMService(context.Background(), domain.LLMSettings{Provider: domain.AIProviderGemini})
	require.NoError(t, err)
	assert.Nil(t, svc)

	_, err = CreateLLMService(context.Background(), domain.LLMSettings{Provider: "mistral", APIKey: "k"})
	assert.Error(t, err)

	svc, err = CreateLLMService(context.Background(), domain.LLMSettings{Provider: domain.AIProviderAnthropic})
	require.NoError(t, err)
	assert.Nil(t, svc)

	svc, err = CreateLLMService(context.Background(), domain.LLMSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.Equal(t, "claude-3-5-haiku-latest", svc.ModelName())

	svc, err = CreateLLMService(context.Background(), domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "qwen2.5"})
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.Equal(t, "qwen2.5", svc.ModelName())

	svc, err = CreateLLMService(context.Background(), domain.LLMSettings{
		Provider: domain.AIProviderOpenAI,
		APIKey:   "k",
		Model:    "gpt-4o-mini",
	})
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.IsType(t, &resilience.LLM{}, svc)
	assert.Equal(t, "gpt-4o-mini", svc.ModelName())
}

func TestInit(t *testing.T) {
	ok := modelsServer(t, http.StatusOK)
	emb := domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, APIKey: "k", BaseURL: ok}

	t.Run("both reachable", func(t *testing.T) {
		res, err := Init(context.Background(), emb, domain.LLMSettings{
			Provider: domain.AIProviderOpenAI, APIKey: "k", BaseURL: ok,
		})
		require.NoError(t, err)
		defer res.Close()
		assert.NotNil(t, res.EmbeddingService)
		assert.NotNil(t, res.LLMService)
		assert.Empty(t, res.Warnings)
	})

	t.Run("llm missing key warns", func(t *testing.T) {
		res, err := Init(context.Background(), emb, domain.LLMSettings{Provider: domain.AIProviderOpenAI})
		require.NoError(t, err)
		defer res.Close()
		assert.Nil(t, res.LLMService)
		assert.Len(t, res.Warnings, 1)
	})

	t.Run("llm unreachable warns", func(t *testing.T) {
		res, err := Init(context.Background(), emb, domain.LLMSettings{
			Provider: domain.AIProviderOpenAI, APIKey: "k", BaseURL: modelsServer(t, http.StatusUnauthorized),
		})
		require.NoError(t, err)
		defer res.Close()
		assert.Nil(t, res.LLMService)
		require.Len(t, res.Warnings, 1)
	})

	t.Run("embedding is required", func(t *testing.T) {
		_, err := Init(context.Background(), domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI}, domain.LLMSettings{})
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

		bad := emb
		bad.BaseURL = modelsServer(t, http.StatusUnauthorized)
		_, err = Init(context.Background(), bad, domain.LLMSettings{})
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}
