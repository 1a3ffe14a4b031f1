package am

import (
	"slices"

	"github.com/teranos/vgate/errors"
)

var validTiers = []string{"low", "medium", "high"}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Verifier.Command == "" {
		return errors.WithHint(
			errors.New("verifier.command cannot be empty"),
			"build the verifier or set verifier.command")
	}
	if c.Verifier.TimeoutSeconds <= 0 {
		return errors.Newf("verifier.timeout_seconds must be > 0, got %d", c.Verifier.TimeoutSeconds)
	}
	if c.Verifier.MinAvailableMemoryMB < 0 {
		return errors.Newf("verifier.min_available_memory_mb must be >= 0, got %d", c.Verifier.MinAvailableMemoryMB)
	}

	// Threshold: negative aggregates are legal, so any threshold is accepted.
	if c.Workflow.Type != WorkflowEnhanced && c.Workflow.Type != WorkflowBasic {
		return errors.Newf("workflow.type must be %q or %q, got %q", WorkflowEnhanced, WorkflowBasic, c.Workflow.Type)
	}
	if c.Workflow.BatchConcurrency < 1 {
		return errors.Newf("workflow.batch_concurrency must be >= 1, got %d", c.Workflow.BatchConcurrency)
	}
	if c.Workflow.Temperature < 0 || c.Workflow.Temperature > 2 {
		return errors.Newf("workflow.temperature must be within [0, 2], got %f", c.Workflow.Temperature)
	}

	if c.Decision.MinQualityScore < 0 || c.Decision.MinQualityScore > 1 {
		return errors.Newf("decision.min_quality_score must be within [0, 1], got %f", c.Decision.MinQualityScore)
	}
	for _, tier := range append(slices.Clone(c.Decision.AcceptableRisk), c.Decision.AdequateSecurity...) {
		if !slices.Contains(validTiers, tier) {
			return errors.Newf("decision tier %q must be one of %v", tier, validTiers)
		}
	}

	if c.StageDefaults.QualityScore < 0 || c.StageDefaults.QualityScore > 1 {
		return errors.Newf("stage_defaults.quality_score must be within [0, 1], got %f", c.StageDefaults.QualityScore)
	}
	if c.StageDefaults.ReviewTrust < 0 || c.StageDefaults.ReviewTrust > 1 {
		return errors.Newf("stage_defaults.review_trust must be within [0, 1], got %f", c.StageDefaults.ReviewTrust)
	}
	if c.StageDefaults.ConsensusConfidence < 0 || c.StageDefaults.ConsensusConfidence > 1 {
		return errors.Newf("stage_defaults.consensus_confidence must be within [0, 1], got %f", c.StageDefaults.ConsensusConfidence)
	}
	if !slices.Contains(validTiers, c.StageDefaults.SecurityLevel) {
		return errors.Newf("stage_defaults.security_level must be one of %v, got %q", validTiers, c.StageDefaults.SecurityLevel)
	}
	if !slices.Contains(validTiers, c.StageDefaults.RiskLevel) {
		return errors.Newf("stage_defaults.risk_level must be one of %v, got %q", validTiers, c.StageDefaults.RiskLevel)
	}

	// Rate limit: 0 = unlimited, negative = invalid
	if c.LLM.RequestsPerMinute < 0 {
		return errors.Newf("llm.requests_per_minute must be >= 0, got %d", c.LLM.RequestsPerMinute)
	}

	// Validate local inference configuration only when enabled
	if c.LocalInference.Enabled {
		if c.LocalInference.BaseURL == "" {
			return errors.New("local_inference.base_url cannot be empty when enabled")
		}
		if c.LocalInference.Model == "" {
			return errors.New("local_inference.model cannot be empty when enabled")
		}
		if c.LocalInference.TimeoutSeconds <= 0 {
			return errors.Newf("local_inference.timeout_seconds must be > 0, got %d", c.LocalInference.TimeoutSeconds)
		}
	}

	return nil
}
