package am

import "github.com/spf13/viper"

// Default values shared by SetDefaults and the stage/decision layers
const (
	DefaultThreshold           = 1000
	DefaultVerifierTimeout     = 300 // seconds; proving can be slow outside dev mode
	DefaultBatchConcurrency    = 4
	DefaultTemperature         = 0.1
	DefaultFinalRole           = "final_decision"
	DefaultQualityScore        = 0.8
	DefaultSecurityLevel       = "medium"
	DefaultRiskLevel           = "medium"
	DefaultReviewTrust         = 0.8
	DefaultConsensusConfidence = 0.7
	DefaultMinQualityScore     = 0.7
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Verifier defaults: the dev stand-in emits the host report grammar without proving
	v.SetDefault("verifier.command", "vgate-devverifier")
	v.SetDefault("verifier.args", []string{"--input", "{input}", "--threshold", "{threshold}"})
	v.SetDefault("verifier.timeout_seconds", DefaultVerifierTimeout)
	v.SetDefault("verifier.dev_mode", true)
	v.SetDefault("verifier.exclusive", false)
	v.SetDefault("verifier.min_available_memory_mb", 0)

	// Workflow defaults
	v.SetDefault("workflow.threshold", DefaultThreshold)
	v.SetDefault("workflow.type", WorkflowEnhanced)
	v.SetDefault("workflow.batch_concurrency", DefaultBatchConcurrency)
	v.SetDefault("workflow.temperature", DefaultTemperature) // Near-deterministic answers

	// Decision policy defaults
	v.SetDefault("decision.final_role", DefaultFinalRole)
	v.SetDefault("decision.acceptable_risk", []string{"low", "medium"})
	v.SetDefault("decision.adequate_security", []string{"medium", "high"})
	v.SetDefault("decision.min_quality_score", DefaultMinQualityScore)

	// Per-stage fallbacks
	v.SetDefault("stage_defaults.quality_score", DefaultQualityScore)
	v.SetDefault("stage_defaults.security_level", DefaultSecurityLevel)
	v.SetDefault("stage_defaults.risk_level", DefaultRiskLevel)
	v.SetDefault("stage_defaults.review_trust", DefaultReviewTrust)
	v.SetDefault("stage_defaults.consensus_confidence", DefaultConsensusConfidence)

	// LLM defaults
	v.SetDefault("llm.provider", "auto")
	v.SetDefault("llm.requests_per_minute", 60)
	v.SetDefault("llm.burst", 1)

	// Local Inference (Ollama) defaults
	v.SetDefault("local_inference.enabled", false)
	v.SetDefault("local_inference.base_url", "http://localhost:11434")
	v.SetDefault("local_inference.model", "llama3.2:3b")
	v.SetDefault("local_inference.timeout_seconds", 120)

	// OpenRouter defaults
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini") // Cost-effective default
	v.SetDefault("openrouter.temperature", DefaultTemperature)
	v.SetDefault("openrouter.max_tokens", 1000)

	// Anthropic defaults
	v.SetDefault("anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("anthropic.temperature", DefaultTemperature)
	v.SetDefault("anthropic.max_tokens", 1000)

	// Usage tracking is opt-in
	v.SetDefault("database.path", "")

	v.SetDefault("log.json", false)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// Provider API keys, also accepted under their conventional names
	v.BindEnv("openrouter.api_key", "VGATE_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	v.BindEnv("anthropic.api_key", "VGATE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	// Verifier dev mode follows the RISC Zero convention
	v.BindEnv("verifier.dev_mode", "VGATE_VERIFIER_DEV_MODE", "RISC0_DEV_MODE")

	// Database path
	v.BindEnv("database.path", "VGATE_DATABASE_PATH")

	// Local inference configuration
	v.BindEnv("local_inference.enabled", "VGATE_LOCAL_INFERENCE_ENABLED")
	v.BindEnv("local_inference.base_url", "VGATE_LOCAL_INFERENCE_BASE_URL")
	v.BindEnv("local_inference.model", "VGATE_LOCAL_INFERENCE_MODEL")
}

// OptionalStages returns the optional stage names enabled by the workflow config.
// An explicit optional_stages list wins over the workflow type.
func (c *Config) OptionalStages(all []string) []string {
	if len(c.Workflow.OptionalStages) > 0 {
		return c.Workflow.OptionalStages
	}
	if c.Workflow.Type == WorkflowBasic {
		return nil
	}
	return all
}
