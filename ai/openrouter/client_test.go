package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qtest "github.com/teranos/vgate/internal/testing"
)

func newTestClient(t *testing.T, server *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = server.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	client := NewClient(cfg)
	client.SetHTTPClient(server.Client())
	return client
}

func completion(content string) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:    "test-id",
		Model: "test-model",
		Choices: []Choice{{
			Message:      Message{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

func TestClient_Configuration(t *testing.T) {
	client := NewClient(Config{APIKey: "test-key"})

	assert.Equal(t, DefaultModel, client.config.Model)
	require.NotNil(t, client.config.Temperature)
	assert.Equal(t, 0.1, *client.config.Temperature)
	require.NotNil(t, client.config.MaxTokens)
	assert.Equal(t, 1000, *client.config.MaxTokens)
	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.True(t, client.IsConfigured())
	assert.False(t, NewClient(Config{}).IsConfigured())
}

func TestClient_Chat(t *testing.T) {
	var got ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "vgate/csv_analysis", r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion("  {\"content\": \"ok\"}  "))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	temp := 0.3
	resp, err := client.Chat(context.Background(), ChatRequest{
		SystemPrompt:  "You are a CSV analyst.",
		UserPrompt:    "Analyze.",
		Temperature:   &temp,
		OperationType: "csv_analysis",
	})
	require.NoError(t, err)

	assert.Equal(t, `{"content": "ok"}`, resp.Content)
	assert.Equal(t, 30, resp.Usage.TotalTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Analyze.", got.Messages[1].Content)
	assert.Equal(t, 0.3, got.Temperature)
	assert.Equal(t, DefaultModel, got.Model)
}

func TestClient_ChatWithoutAPIKey(t *testing.T) {
	_, err := NewClient(Config{}).Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not configured")
}

func TestClient_ChatRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream overloaded", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(completion("recovered"))
	}))
	defer server.Close()

	resp, err := newTestClient(t, server, Config{}).Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ChatDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(t, server, Config{}).Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ChatNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatCompletionResponse{ID: "empty"})
	}))
	defer server.Close()

	_, err := newTestClient(t, server, Config{}).Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response choices")
}

func TestClient_ChatTracksUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completion("tracked"))
	}))
	defer server.Close()

	db := qtest.CreateTestDB(t)
	client := newTestClient(t, server, Config{DB: db, Model: "openai/gpt-4o-mini"})

	_, err := client.Chat(context.Background(), ChatRequest{
		UserPrompt:    "hi",
		OperationType: "security",
		EntityType:    "workflow",
		EntityID:      "wf_42",
	})
	require.NoError(t, err)

	var entityID, operation string
	var tokens int
	err = db.QueryRow("SELECT entity_id, operation_type, tokens_used FROM ai_model_usage").Scan(&entityID, &operation, &tokens)
	require.NoError(t, err)
	assert.Equal(t, "wf_42", entityID)
	assert.Equal(t, "security", operation)
	assert.Equal(t, 30, tokens)
}

func TestClient_ChatHonorsCancellationBetweenRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestClient(t, server, Config{}).Chat(ctx, ChatRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
