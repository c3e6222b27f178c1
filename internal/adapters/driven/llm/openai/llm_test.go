package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewLLMService(LLMConfig{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)
	return svc
}

var conversation = []driven.ChatMessage{
	{Role: driven.RoleSystem, Content: "Answer from the excerpts."},
	{Role: driven.RoleUser, Content: "What is the refund policy?"},
}

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.Error(t, err)

	svc, err := NewLLMService(LLMConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
}

func TestComplete(t *testing.T) {
	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens int `json:"max_tokens"`
	}
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"gpt-4o-mini","choices":[
			{"index":0,"message":{"role":"assistant","content":"  Full refund within 14 days [Citation 1]. "},"finish_reason":"stop"}
		]}`))
	})

	answer, err := svc.Complete(context.Background(), conversation, driven.ChatOptions{MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, "Full refund within 14 days [Citation 1].", answer)
	assert.Equal(t, DefaultLLMModel, body.Model)
	assert.Equal(t, 256, body.MaxTokens)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0].Role)
}

func TestComplete_Unauthorized(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})
	_, err := svc.Complete(context.Background(), conversation, driven.ChatOptions{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestStream(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, piece := range []string{"Full ", "refund ", "[Citation 1]."} {
			fmt.Fprintf(w, "data: {\"id\":\"x\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", piece)
		}
		fmt.Fprint(w, "data: {\"id\":\"x\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := svc.Stream(context.Background(), conversation, driven.ChatOptions{})
	require.NoError(t, err)
	defer stream.Close()

	var b strings.Builder
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		b.WriteString(fragment)
	}
	assert.Equal(t, "Full refund [Citation 1].", b.String())
}

func TestPing(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"forbidden"}}`))
	})
	assert.ErrorIs(t, svc.Ping(context.Background()), domain.ErrUnauthorized)
}
