package provider

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/teranos/vgate/ai/anthropic"
	"github.com/teranos/vgate/ai/openrouter"
	"github.com/teranos/vgate/am"
	"github.com/teranos/vgate/errors"
)

// Provider represents an LLM provider type
type Provider string

const (
	// ProviderLocal uses local inference (Ollama, LocalAI)
	ProviderLocal Provider = "local"
	// ProviderOpenRouter uses OpenRouter.ai API
	ProviderOpenRouter Provider = "openrouter"
	// ProviderAnthropic uses direct Anthropic API
	ProviderAnthropic Provider = "anthropic"
	// ProviderAuto automatically selects based on configuration
	ProviderAuto Provider = "auto"
)

// AIClient interface for all LLM providers
type AIClient interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
}

// ClientConfig holds common configuration for creating AI clients
type ClientConfig struct {
	DB        *sql.DB // nil disables usage tracking
	Logger    *zap.SugaredLogger
	Verbosity int
}

// NewAIClient creates an AI client for the provider named in cfg.LLM.Provider
func NewAIClient(cfg *am.Config, clientCfg ClientConfig) (AIClient, error) {
	p, err := ParseProvider(cfg.LLM.Provider)
	if err != nil {
		return nil, err
	}
	return NewAIClientWithProvider(cfg, p, clientCfg), nil
}

// NewAIClientWithProvider creates an AI client for a specific provider
// Use ProviderAuto to let the factory decide based on configuration
func NewAIClientWithProvider(cfg *am.Config, provider Provider, clientCfg ClientConfig) AIClient {
	switch provider {
	case ProviderLocal:
		return newLocalClient(cfg, clientCfg)
	case ProviderAnthropic:
		return newAnthropicClient(cfg, clientCfg)
	case ProviderOpenRouter:
		return newOpenRouterClient(cfg, clientCfg)
	default:
		return autoSelectClient(cfg, clientCfg)
	}
}

// SelectProvider resolves ProviderAuto to a concrete provider.
// Priority: LocalInference (if enabled) → Anthropic (if API key set) → OpenRouter
func SelectProvider(cfg *am.Config) Provider {
	if cfg.LocalInference.Enabled && cfg.LocalInference.BaseURL != "" {
		return ProviderLocal
	}
	if cfg.Anthropic.APIKey != "" {
		return ProviderAnthropic
	}
	return ProviderOpenRouter
}

func autoSelectClient(cfg *am.Config, clientCfg ClientConfig) AIClient {
	return NewAIClientWithProvider(cfg, SelectProvider(cfg), clientCfg)
}

func newLocalClient(cfg *am.Config, clientCfg ClientConfig) AIClient {
	return NewLocalClient(LocalClientConfig{
		BaseURL:        cfg.LocalInference.BaseURL,
		Model:          cfg.LocalInference.Model,
		TimeoutSeconds: cfg.LocalInference.TimeoutSeconds,
		DB:             clientCfg.DB,
		Logger:         clientCfg.Logger,
		Verbosity:      clientCfg.Verbosity,
	})
}

func newAnthropicClient(cfg *am.Config, clientCfg ClientConfig) AIClient {
	return anthropic.NewClient(anthropic.Config{
		APIKey:      cfg.Anthropic.APIKey,
		Model:       cfg.Anthropic.Model,
		Temperature: cfg.Anthropic.Temperature,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Logger:      clientCfg.Logger,
		DB:          clientCfg.DB,
		Verbosity:   clientCfg.Verbosity,
	})
}

func newOpenRouterClient(cfg *am.Config, clientCfg ClientConfig) AIClient {
	return openrouter.NewClient(openrouter.Config{
		APIKey:      cfg.OpenRouter.APIKey,
		Model:       cfg.OpenRouter.Model,
		Temperature: cfg.OpenRouter.Temperature,
		MaxTokens:   cfg.OpenRouter.MaxTokens,
		Logger:      clientCfg.Logger,
		DB:          clientCfg.DB,
		Verbosity:   clientCfg.Verbosity,
	})
}

// GetAvailableProviders returns a list of configured/available providers
func GetAvailableProviders(cfg *am.Config) []Provider {
	var providers []Provider
	if cfg.LocalInference.Enabled {
		providers = append(providers, ProviderLocal)
	}
	if cfg.Anthropic.APIKey != "" {
		providers = append(providers, ProviderAnthropic)
	}
	if cfg.OpenRouter.APIKey != "" {
		providers = append(providers, ProviderOpenRouter)
	}
	return providers
}

// ParseProvider converts a string to a Provider type
func ParseProvider(s string) (Provider, error) {
	switch s {
	case "local", "ollama", "localai":
		return ProviderLocal, nil
	case "openrouter", "or":
		return ProviderOpenRouter, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "auto", "":
		return ProviderAuto, nil
	default:
		return "", errors.Newf("unknown provider: %s (valid: local, openrouter, anthropic, auto)", s)
	}
}

// Verify interfaces are implemented
var _ AIClient = (*openrouter.Client)(nil)
var _ AIClient = (*anthropic.Client)(nil)
var _ AIClient = (*LocalClient)(nil)
