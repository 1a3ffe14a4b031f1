package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vgate/ai/openrouter"
)

func TestClient_Chat(t *testing.T) {
	var got MessagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(MessagesResponse{
			ID: "msg_1",
			Content: []ContentBlock{
				{Type: "text", Text: `{"content":"low risk",`},
				{Type: "text", Text: `"confidence":0.9}`},
			},
			Usage: Usage{InputTokens: 12, OutputTokens: 8},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	client.SetHTTPClient(server.Client())

	resp, err := client.Chat(context.Background(), openrouter.ChatRequest{
		SystemPrompt: "You are a risk assessor.",
		UserPrompt:   "Assess.",
	})
	require.NoError(t, err)

	assert.Equal(t, `{"content":"low risk","confidence":0.9}`, resp.Content)
	assert.Equal(t, 20, resp.Usage.TotalTokens)
	assert.Equal(t, "You are a risk assessor.", got.System)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, 1000, got.MaxTokens)
}

func TestClient_ChatRetriesOverload(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(529)
			return
		}
		json.NewEncoder(w).Encode(MessagesResponse{Content: []ContentBlock{{Type: "text", Text: "ok"}}})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	client.SetHTTPClient(server.Client())

	resp, err := client.Chat(context.Background(), openrouter.ChatRequest{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ChatWithoutAPIKey(t *testing.T) {
	_, err := NewClient(Config{}).Chat(context.Background(), openrouter.ChatRequest{UserPrompt: "hi"})
	assert.Error(t, err)
}

func TestCalculateCost(t *testing.T) {
	// ($0.80 * 1000/1M) + ($4.00 * 500/1M)
	assert.InDelta(t, 0.0028, CalculateCost("claude-3-5-haiku-latest", 1000, 500), 1e-9)
	// Unknown models use sonnet rates
	assert.InDelta(t, 0.0105, CalculateCost("claude-next", 1000, 500), 1e-9)
}
