package am

import "fmt"

// Config represents the vgate configuration
type Config struct {
	Verifier       VerifierConfig       `mapstructure:"verifier"`
	Workflow       WorkflowConfig       `mapstructure:"workflow"`
	Decision       DecisionConfig       `mapstructure:"decision"`
	StageDefaults  StageDefaultsConfig  `mapstructure:"stage_defaults"`
	LLM            LLMConfig            `mapstructure:"llm"`
	LocalInference LocalInferenceConfig `mapstructure:"local_inference"`
	OpenRouter     OpenRouterConfig     `mapstructure:"openrouter"`
	Anthropic      AnthropicConfig      `mapstructure:"anthropic"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Log            LogConfig            `mapstructure:"log"`
}

// VerifierConfig configures the external deterministic verifier process
type VerifierConfig struct {
	Command        string   `mapstructure:"command"`         // Executable plus fixed args, shell-quoted (e.g., "cargo run --release --")
	Args           []string `mapstructure:"args"`            // Argument templates: {input}, {threshold}, {workdir}
	TimeoutSeconds int      `mapstructure:"timeout_seconds"` // Wall-clock bound per invocation
	DevMode        bool     `mapstructure:"dev_mode"`        // Sets RISC0_DEV_MODE=1 for the process
	Exclusive      bool     `mapstructure:"exclusive"`       // Serialize invocations (verifier not reentrant)
	// Refuse proving runs below this much available memory; 0 disables
	MinAvailableMemoryMB int `mapstructure:"min_available_memory_mb"`
}

// WorkflowConfig configures workflow runs
type WorkflowConfig struct {
	Threshold        int64    `mapstructure:"threshold"`         // Business rule: aggregate must be <= threshold
	Type             string   `mapstructure:"type"`              // "enhanced" (all optional stages) or "basic"
	OptionalStages   []string `mapstructure:"optional_stages"`   // Overrides Type when non-empty
	BatchConcurrency int      `mapstructure:"batch_concurrency"` // Parallel runs for batch/watch
	Temperature      float64  `mapstructure:"temperature"`       // Sampling temperature for stage prompts
	ResponsesFile    string   `mapstructure:"responses_file"`    // Scripted answers (TOML) instead of a live provider
}

// DecisionConfig configures the decision aggregator policy
type DecisionConfig struct {
	FinalRole        string   `mapstructure:"final_role"`        // Stage whose confidence is reported as overall confidence
	AcceptableRisk   []string `mapstructure:"acceptable_risk"`   // Risk tiers that pass the risk gate
	AdequateSecurity []string `mapstructure:"adequate_security"` // Security tiers that pass the security gate
	MinQualityScore  float64  `mapstructure:"min_quality_score"` // Informational data quality factor
}

// StageDefaultsConfig holds fallback values used when an answer carries no usable value
type StageDefaultsConfig struct {
	QualityScore  float64 `mapstructure:"quality_score"`
	SecurityLevel string  `mapstructure:"security_level"`
	RiskLevel     string  `mapstructure:"risk_level"`
	ReviewTrust   float64 `mapstructure:"review_trust"`
	// Stages reporting more than this confidence count towards consensus
	ConsensusConfidence float64 `mapstructure:"consensus_confidence"`
}

// LLMConfig configures provider selection and client-side pacing
type LLMConfig struct {
	Provider          string `mapstructure:"provider"`            // auto, local, anthropic, openrouter
	RequestsPerMinute int    `mapstructure:"requests_per_minute"` // 0 = unlimited
	Burst             int    `mapstructure:"burst"`
}

// LocalInferenceConfig configures local model inference (Ollama, LocalAI, etc.)
type LocalInferenceConfig struct {
	Enabled        bool   `mapstructure:"enabled"`         // Enable local inference instead of cloud APIs
	BaseURL        string `mapstructure:"base_url"`        // e.g., "http://localhost:11434" for Ollama
	Model          string `mapstructure:"model"`           // e.g., "mistral", "qwen2.5-coder:7b"
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // Request timeout in seconds
}

// OpenRouterConfig configures OpenRouter.ai API access
type OpenRouterConfig struct {
	APIKey      string   `mapstructure:"api_key"`     // OpenRouter API key
	Model       string   `mapstructure:"model"`       // Default model (e.g., "openai/gpt-4o-mini")
	Temperature *float64 `mapstructure:"temperature"` // Sampling temperature (nil = default 0.1)
	MaxTokens   *int     `mapstructure:"max_tokens"`  // Maximum tokens per request (nil = default 1000)
}

// AnthropicConfig configures direct Anthropic API access
type AnthropicConfig struct {
	APIKey      string   `mapstructure:"api_key"`
	Model       string   `mapstructure:"model"`
	Temperature *float64 `mapstructure:"temperature"`
	MaxTokens   *int     `mapstructure:"max_tokens"`
}

// DatabaseConfig configures the SQLite database used for LLM usage tracking
type DatabaseConfig struct {
	Path string `mapstructure:"path"` // Empty disables usage tracking
}

// LogConfig configures log output
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)

// Workflow types
const (
	WorkflowEnhanced = "enhanced"
	WorkflowBasic    = "basic"
)

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Verifier: %q, Workflow: {Type: %s, Threshold: %d}, LLM: %s}",
		c.Verifier.Command, c.Workflow.Type, c.Workflow.Threshold, c.LLM.Provider)
}
