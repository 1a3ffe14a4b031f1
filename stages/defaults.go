package stages

import (
	"strings"

	"github.com/teranos/vgate/am"
	"github.com/teranos/vgate/stage"
)

// Defaults are the values a stage falls back to when an answer carries no
// usable value. They are also what the orchestrator is told for optional
// stages that did not run.
type Defaults struct {
	QualityScore        float64
	SecurityLevel       stage.Label
	RiskLevel           stage.Label
	ReviewTrust         float64
	ConsensusConfidence float64
}

// StandardDefaults returns the built-in fallbacks
func StandardDefaults() Defaults {
	return Defaults{
		QualityScore:        am.DefaultQualityScore,
		SecurityLevel:       am.DefaultSecurityLevel,
		RiskLevel:           am.DefaultRiskLevel,
		ReviewTrust:         am.DefaultReviewTrust,
		ConsensusConfidence: am.DefaultConsensusConfidence,
	}
}

// DefaultsFromAM reads the stage_defaults section of vgate.toml
func DefaultsFromAM(c am.StageDefaultsConfig) Defaults {
	d := StandardDefaults()
	if c.QualityScore > 0 {
		d.QualityScore = c.QualityScore
	}
	if tier, ok := parseTier(c.SecurityLevel); ok {
		d.SecurityLevel = tier
	}
	if tier, ok := parseTier(c.RiskLevel); ok {
		d.RiskLevel = tier
	}
	if c.ReviewTrust > 0 {
		d.ReviewTrust = c.ReviewTrust
	}
	if c.ConsensusConfidence > 0 {
		d.ConsensusConfidence = c.ConsensusConfidence
	}
	return d
}

func parseTier(s string) (stage.Label, bool) {
	switch l := stage.Label(strings.ToLower(strings.TrimSpace(s))); l {
	case stage.Low, stage.Medium, stage.High:
		return l, true
	}
	return "", false
}
