package provider

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/vgate/ai/openrouter"
	"github.com/teranos/vgate/ai/tracker"
	"github.com/teranos/vgate/db"
	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/internal/httpclient"
)

// LocalClientConfig holds configuration for local inference client
type LocalClientConfig struct {
	BaseURL        string
	Model          string
	TimeoutSeconds int
	DB             *sql.DB
	Logger         *zap.SugaredLogger
	Verbosity      int
}

// LocalClient talks to Ollama, LocalAI or any OpenAI-compatible local endpoint
type LocalClient struct {
	config       LocalClientConfig
	httpClient   *httpclient.SaferClient
	usageTracker *tracker.UsageTracker
	logger       *zap.SugaredLogger
}

// NewLocalClient creates a local inference client
func NewLocalClient(cfg LocalClientConfig) *LocalClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	var usageTracker *tracker.UsageTracker
	if cfg.DB != nil {
		usageTracker = tracker.NewUsageTracker(cfg.DB, cfg.Verbosity)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &LocalClient{
		config: cfg,
		// Local servers live on localhost by definition
		httpClient:   httpclient.New(timeout, httpclient.Options{AllowPrivateIP: true}),
		usageTracker: usageTracker,
		logger:       logger,
	}
}

// localChatRequest matches OpenAI API format (Ollama is compatible)
type localChatRequest struct {
	Model       string               `json:"model"`
	Messages    []openrouter.Message `json:"messages"`
	Stream      bool                 `json:"stream"`
	Temperature *float64             `json:"temperature,omitempty"`
	MaxTokens   *int                 `json:"max_tokens,omitempty"`
}

// Chat implements the AIClient interface for local inference
func (lc *LocalClient) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	model := lc.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	messages := []openrouter.Message{{Role: "user", Content: req.UserPrompt}}
	if req.SystemPrompt != "" {
		messages = append([]openrouter.Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	body, err := json.Marshal(localChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	endpoint := strings.TrimRight(lc.config.BaseURL, "/") + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	requestTime := time.Now()
	result, err := lc.do(httpReq)
	lc.track(req, model, requestTime, result, err)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "local inference at %s", lc.config.BaseURL),
			"start the local model server or set local_inference.enabled=false")
	}
	return result, nil
}

func (lc *LocalClient) do(httpReq *http.Request) (*openrouter.ChatResponse, error) {
	resp, err := lc.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("local inference returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var completion openrouter.ChatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("no response choices from local inference")
	}

	return &openrouter.ChatResponse{
		Content: strings.TrimSpace(completion.Choices[0].Message.Content),
		Model:   completion.Model,
		Usage:   completion.Usage,
	}, nil
}

// track records the call; local inference is free, so cost is always zero
func (lc *LocalClient) track(req openrouter.ChatRequest, model string, requestTime time.Time, resp *openrouter.ChatResponse, callErr error) {
	if lc.usageTracker == nil {
		return
	}

	responseTime := time.Now()
	cost := 0.0
	record := &tracker.ModelUsage{
		OperationType:     req.OperationType,
		EntityType:        req.EntityType,
		EntityID:          req.EntityID,
		ModelName:         model,
		ModelProvider:     "local",
		RequestTimestamp:  requestTime,
		ResponseTimestamp: &responseTime,
		Cost:              &cost,
		Success:           callErr == nil,
	}
	if resp != nil {
		tokens := resp.Usage.TotalTokens
		record.TokensUsed = &tokens
	}
	if callErr != nil {
		msg := fmt.Sprint(callErr)
		record.ErrorMessage = &msg
	}

	if err := lc.usageTracker.TrackUsage(record); err != nil {
		if db.IsDatabaseClosed(err) {
			// The CLI closes the database while batch runs may still be finishing
			lc.logger.Debugw("Usage not tracked, database closed", "model", model)
			return
		}
		lc.logger.Warnw("Failed to track usage", "error", err, "model", model)
	}
}
