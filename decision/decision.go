// Package decision combines stage verdicts into one accept/reject decision.
//
// The rule is a strict conjunction. Critical factors (verifier success,
// the verifier's business-rule marker, the review recommendation) must all
// hold. Risk factors (risk tier, security tier) must hold when the stage
// producing them completed and are vacuously satisfied otherwise.
// Confidence never overrides the gate: the reported overall confidence is
// copied from the stage playing the final role.
package decision

import (
	"slices"
	"strings"

	"github.com/teranos/vgate/am"
	"github.com/teranos/vgate/stage"
)

// Factor names reported in Decision.Factors
const (
	FactorVerificationPassed    = "verification_passed"
	FactorBusinessCompliant     = "business_compliant"
	FactorAgentConsensus        = "agent_consensus"
	FactorRiskManageable        = "risk_manageable"
	FactorSecurityAdequate      = "security_adequate"
	FactorDataQualityAcceptable = "data_quality_acceptable"
	FactorBusinessRuleStagePass = "business_rule_stage_pass"
)

var (
	criticalFactors = []string{FactorVerificationPassed, FactorBusinessCompliant, FactorAgentConsensus}
	riskFactors     = []string{FactorRiskManageable, FactorSecurityAdequate}
)

// Policy parameterizes the aggregator
type Policy struct {
	// FinalRole names the stage whose confidence becomes the overall confidence
	FinalRole        string
	AcceptableRisk   []stage.Label
	AdequateSecurity []stage.Label
	// MinQualityScore drives the informational data quality factor
	MinQualityScore float64
}

// DefaultPolicy returns the policy used when nothing is configured
func DefaultPolicy() Policy {
	return Policy{
		FinalRole:        am.DefaultFinalRole,
		AcceptableRisk:   []stage.Label{stage.Low, stage.Medium},
		AdequateSecurity: []stage.Label{stage.Medium, stage.High},
		MinQualityScore:  am.DefaultMinQualityScore,
	}
}

// PolicyFromAM builds a Policy from the decision section of vgate.toml.
// Empty settings fall back to DefaultPolicy.
func PolicyFromAM(c am.DecisionConfig) Policy {
	p := DefaultPolicy()
	if c.FinalRole != "" {
		p.FinalRole = c.FinalRole
	}
	if len(c.AcceptableRisk) > 0 {
		p.AcceptableRisk = labels(c.AcceptableRisk)
	}
	if len(c.AdequateSecurity) > 0 {
		p.AdequateSecurity = labels(c.AdequateSecurity)
	}
	if c.MinQualityScore > 0 {
		p.MinQualityScore = c.MinQualityScore
	}
	return p
}

func labels(ss []string) []stage.Label {
	out := make([]stage.Label, len(ss))
	for i, s := range ss {
		out[i] = stage.Label(strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

// Decision is the aggregated outcome
type Decision struct {
	Label               stage.Label     `json:"label"`
	OverallConfidence   *float64        `json:"overall_confidence"`
	Rationale           string          `json:"rationale"`
	CriticalFactorsPass bool            `json:"critical_factors_pass"`
	RiskAcceptable      bool            `json:"risk_acceptable"`
	Factors             map[string]bool `json:"factors"`
}

// Accepted reports whether the label is accept
func (d Decision) Accepted() bool { return d.Label == stage.Accept }

// Aggregator applies a Policy. It holds no per-run state.
type Aggregator struct {
	policy Policy
}

// New creates an Aggregator
func New(p Policy) *Aggregator {
	if p.FinalRole == "" {
		p.FinalRole = am.DefaultFinalRole
	}
	return &Aggregator{policy: p}
}

// Policy returns the aggregator's policy
func (a *Aggregator) Policy() Policy { return a.policy }

// Decide combines verdicts keyed by stage name. It is a pure function of
// its input; verdicts of stages that did not complete never satisfy a
// critical factor.
func (a *Aggregator) Decide(verdicts map[string]stage.Verdict) Decision {
	f := a.Factors(verdicts)

	critical := all(f, criticalFactors)
	risk := all(f, riskFactors)

	d := Decision{
		Label:               stage.Reject,
		CriticalFactorsPass: critical,
		RiskAcceptable:      risk,
		Factors:             f,
	}
	if critical && risk {
		d.Label = stage.Accept
	}
	if v, ok := verdicts[a.policy.FinalRole]; ok && v.Completed() && v.Confidence != nil {
		c := *v.Confidence
		d.OverallConfidence = &c
	}
	d.Rationale = rationale(d, f)
	return d
}

// Factors evaluates every named factor
func (a *Aggregator) Factors(verdicts map[string]stage.Verdict) map[string]bool {
	f := make(map[string]bool, 7)

	if v, ok := verdicts[stage.Verification]; ok && v.Completed() && v.Report != nil {
		f[FactorVerificationPassed] = v.Report.Success
		f[FactorBusinessCompliant] = v.Report.BusinessRuleSatisfied
	} else {
		f[FactorVerificationPassed] = false
		f[FactorBusinessCompliant] = false
	}

	review, ok := verdicts[stage.VerificationReview]
	f[FactorAgentConsensus] = ok && review.Completed() && review.Label == stage.Accept

	f[FactorRiskManageable] = tierIn(verdicts, stage.RiskAssessment, a.policy.AcceptableRisk)
	f[FactorSecurityAdequate] = tierIn(verdicts, stage.Security, a.policy.AdequateSecurity)

	f[FactorDataQualityAcceptable] = true
	if v, ok := verdicts[stage.DataQuality]; ok && v.Completed() {
		f[FactorDataQualityAcceptable] = v.Score != nil && *v.Score >= a.policy.MinQualityScore
	}
	f[FactorBusinessRuleStagePass] = true
	if v, ok := verdicts[stage.BusinessRule]; ok && v.Completed() {
		f[FactorBusinessRuleStagePass] = v.Label == stage.Pass
	}
	return f
}

// tierIn is vacuously true unless the stage completed
func tierIn(verdicts map[string]stage.Verdict, name string, allowed []stage.Label) bool {
	v, ok := verdicts[name]
	if !ok || !v.Completed() {
		return true
	}
	return slices.Contains(allowed, v.Label)
}

func all(f map[string]bool, names []string) bool {
	for _, n := range names {
		if !f[n] {
			return false
		}
	}
	return true
}

func rationale(d Decision, f map[string]bool) string {
	if d.Accepted() {
		return "all critical and risk factors hold"
	}
	var failed []string
	for _, n := range append(slices.Clone(criticalFactors), riskFactors...) {
		if !f[n] {
			failed = append(failed, n)
		}
	}
	return "failed: " + strings.Join(failed, ", ")
}
