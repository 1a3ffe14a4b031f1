// Package agent is the LLM capability consumed by workflow stages.
//
// A stage builds a Prompt (persona, system role, user prompt, temperature)
// and receives an Answer. Answers are parsed from the structured JSON shape
// every persona is asked to reply with:
//
//	{"content": "...", "reasoning": "...", "confidence": 0.9, "next_actions": ["..."]}
//
// Extra keys (quality_score, risk_level, ...) are kept in Answer.Fields.
// Any failure to obtain an answer is marked errors.ErrStageUnavailable.
package agent

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/vgate/ai/openrouter"
	"github.com/teranos/vgate/ai/provider"
	"github.com/teranos/vgate/ai/tracker"
	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/logger"
)

// Prompt is one question put to a persona
type Prompt struct {
	Stage       string // Stage asking; used for usage tracking and scripted lookup
	Persona     string // e.g. "csv_analyzer", "risk_assessor"
	SystemRole  string
	UserPrompt  string
	Temperature float64
	WorkflowID  string
}

// Answer is the parsed reply
type Answer struct {
	Text        string         `json:"content" toml:"content"`
	Confidence  *float64       `json:"confidence,omitempty" toml:"confidence"`
	Rationale   string         `json:"reasoning,omitempty" toml:"reasoning"`
	NextActions []string       `json:"next_actions,omitempty" toml:"next_actions"`
	Fields      map[string]any `json:"fields,omitempty" toml:"fields"`
}

// Asker is the LLM capability
type Asker interface {
	Ask(ctx context.Context, p Prompt) (*Answer, error)
}

// ProviderAsker asks a provider client, pacing requests with a token bucket
type ProviderAsker struct {
	client  provider.AIClient
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// Config configures a ProviderAsker
type Config struct {
	RequestsPerMinute int // 0 = unlimited
	Burst             int
	Logger            *zap.SugaredLogger
}

// NewProviderAsker wraps a provider client.
// The limiter is shared by every run using this asker, so batch runs are paced together.
func NewProviderAsker(client provider.AIClient, cfg Config) *ProviderAsker {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &ProviderAsker{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.OrNop(cfg.Logger),
	}
}

// Ask implements Asker
func (a *ProviderAsker) Ask(ctx context.Context, p Prompt) (*Answer, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, errors.StageUnavailable(errors.Wrap(err, "rate limiter"), p.Stage)
	}

	temperature := p.Temperature
	start := time.Now()
	resp, err := a.client.Chat(ctx, openrouter.ChatRequest{
		SystemPrompt:  p.SystemRole,
		UserPrompt:    p.UserPrompt,
		Temperature:   &temperature,
		OperationType: p.Stage,
		EntityType:    tracker.EntityWorkflow,
		EntityID:      p.WorkflowID,
	})
	if err != nil {
		return nil, errors.StageUnavailable(errors.Wrapf(err, "ask %s", p.Persona), p.Stage)
	}

	a.logger.Debugw("LLM answer",
		logger.FieldStage, p.Stage,
		logger.FieldPersona, p.Persona,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)

	return ParseAnswer(resp.Content), nil
}
