package anthropic

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

const (
	// DefaultModel is the default Claude model
	DefaultModel = "claude-3-5-haiku-latest"

	// BaseURL is the Anthropic API endpoint
	BaseURL = "https://api.anthropic.com/v1"

	// APIVersion is the required Anthropic API version header
	APIVersion = "2023-06-01"

	maxRetries = 3
)

// Client represents an Anthropic API client
type Client struct {
	baseURL      string
	httpClient   *httpclient.SaferClient
	config       Config
	usageTracker *tracker.UsageTracker
	logger       *zap.SugaredLogger
}

// Config holds Anthropic client configuration
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string   // "" = BaseURL
	Temperature *float64 // nil = 0.1
	MaxTokens   *int     // nil = 1000
	Logger      *zap.SugaredLogger
	DB          *sql.DB // Database for usage tracking (nil = disabled)
	Verbosity   int
}

// NewClient creates a new Anthropic API client
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Temperature == nil {
		t := 0.1
		config.Temperature = &t
	}
	if config.MaxTokens == nil {
		n := 1000
		config.MaxTokens = &n
	}
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}

	var usageTracker *tracker.UsageTracker
	if config.DB != nil {
		usageTracker = tracker.NewUsageTracker(config.DB, config.Verbosity)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Client{
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		httpClient:   httpclient.New(120*time.Second, httpclient.Options{}),
		config:       config,
		usageTracker: usageTracker,
		logger:       logger,
	}
}

// MessagesRequest represents a request to the Anthropic Messages API
type MessagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
}

// Message represents a message in the conversation
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// MessagesResponse represents the response from the Messages API
type MessagesResponse struct {
	ID         string         `json:"id"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage represents token usage information
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// statusError is a non-200 answer from the API
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.code, e.body)
}

// retryable: rate limits, server errors and Anthropic's 529 overload
func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// Chat implements the provider AIClient interface for Anthropic
func (c *Client) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	if c.config.APIKey == "" {
		return nil, errors.WithHint(
			errors.New("Anthropic API key not configured"),
			"set ANTHROPIC_API_KEY or anthropic.api_key")
	}

	temperature := *c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := *c.config.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	model := c.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	messagesReq := MessagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      req.SystemPrompt,
		Messages:    []Message{{Role: "user", Content: req.UserPrompt}},
	}

	c.logger.Debugw("Anthropic request", "model", model, "operation", req.OperationType)

	requestTime := time.Now()
	var resp *MessagesResponse
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				c.track(req, model, temperature, maxTokens, requestTime, nil, err)
				return nil, errors.Wrap(err, "Anthropic request cancelled")
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		resp, err = c.createMessages(ctx, messagesReq)
		if err == nil {
			break
		}

		c.logger.Warnw("Anthropic API error", "attempt", attempt+1, "error", err, "model", model)

		var se *statusError
		if !errors.As(err, &se) || !se.retryable() {
			break
		}
	}

	if err != nil {
		c.track(req, model, temperature, maxTokens, requestTime, nil, err)
		return nil, errors.Wrap(err, "Anthropic API error")
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	c.track(req, model, temperature, maxTokens, requestTime, &resp.Usage, nil)

	return &openrouter.ChatResponse{
		Content: strings.TrimSpace(content.String()),
		Model:   model,
		Usage: openrouter.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// createMessages sends a request to the Anthropic Messages API
func (c *Client) createMessages(ctx context.Context, req MessagesRequest) (*MessagesResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	var messagesResp MessagesResponse
	if err := json.Unmarshal(respBody, &messagesResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	return &messagesResp, nil
}

// track records one request outcome; usage is nil for failures
func (c *Client) track(req openrouter.ChatRequest, model string, temperature float64, maxTokens int, requestTime time.Time, usage *Usage, callErr error) {
	if c.usageTracker == nil {
		return
	}

	responseTime := time.Now()
	record := &tracker.ModelUsage{
		OperationType:     req.OperationType,
		EntityType:        req.EntityType,
		EntityID:          req.EntityID,
		ModelName:         model,
		ModelProvider:     "anthropic",
		ModelConfig:       tracker.NewModelConfig(&temperature, &maxTokens),
		RequestTimestamp:  requestTime,
		ResponseTimestamp: &responseTime,
		Success:           callErr == nil,
	}
	if usage != nil {
		total := usage.InputTokens + usage.OutputTokens
		cost := CalculateCost(model, usage.InputTokens, usage.OutputTokens)
		record.TokensUsed = &total
		record.Cost = &cost
	}
	if callErr != nil {
		msg := callErr.Error()
		record.ErrorMessage = &msg
	}

	if err := c.usageTracker.TrackUsage(record); err != nil {
		if db.IsDatabaseClosed(err) {
			// The CLI closes the database while batch runs may still be finishing
			c.logger.Debugw("Usage not tracked, database closed", "model", model)
			return
		}
		c.logger.Warnw("Failed to track usage", "error", err, "model", model)
	}
}

// SetHTTPClient allows overriding the HTTP client for testing
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}
