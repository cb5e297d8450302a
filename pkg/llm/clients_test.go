package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenAIClient_GenerateResponse(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "SELECT 1"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(&Config{Endpoint: srv.URL, Model: "gpt-4o", MaxTokens: 100}, zap.NewNop())
	require.NoError(t, err)

	result, err := client.GenerateResponse(context.Background(), "how many users", "you write SQL", 0.1)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", result.Content)
	assert.Equal(t, 12, result.PromptTokens)
	assert.Equal(t, 3, result.CompletionTokens)
	assert.Equal(t, "gpt-4o", got["model"])
	assert.Len(t, got["messages"], 2)
}

func TestOpenAIClient_ClassifiesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(&Config{Endpoint: srv.URL, Model: "gpt-4o"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GenerateResponse(context.Background(), "q", "s", 0)
	require.Error(t, err)
	assert.Equal(t, ErrorTypeAuth, GetErrorType(err))
	assert.False(t, IsRetryable(err))
}

func TestAnthropicClient_GenerateResponse(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-opus-20240229",
			"content": [{"type": "text", "text": "SELECT count(*) FROM users"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 7}
		}`))
	}))
	defer srv.Close()

	client, err := NewAnthropicClient(&Config{
		Endpoint:  srv.URL,
		Model:     "claude-3-opus-20240229",
		APIKey:    "sk-ant-test",
		MaxTokens: 4000,
	}, zap.NewNop())
	require.NoError(t, err)

	result, err := client.GenerateResponse(context.Background(), "how many users", "you write SQL", 0.1)
	require.NoError(t, err)
	assert.Equal(t, "SELECT count(*) FROM users", result.Content)
	assert.Equal(t, 20, result.PromptTokens)
	assert.Equal(t, 7, result.CompletionTokens)
	assert.Equal(t, "you write SQL", got["system"])
}

func TestNewAnthropicClient_RequiresKey(t *testing.T) {
	_, err := NewAnthropicClient(&Config{Model: "claude"}, zap.NewNop())
	assert.Error(t, err)
}
