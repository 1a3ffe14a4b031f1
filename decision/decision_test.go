package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vgate/am"
	"github.com/teranos/vgate/stage"
	"github.com/teranos/vgate/verifier"
)

func completed(name string, label stage.Label, confidence float64) stage.Verdict {
	return stage.Verdict{Stage: name, Status: stage.StatusCompleted, Label: label, Confidence: stage.Float(confidence)}
}

func verification(success, rule bool) stage.Verdict {
	v := completed(stage.Verification, stage.Reject, 1)
	if success {
		v.Label = stage.Accept
	}
	v.Report = &verifier.Report{Success: success, BusinessRuleSatisfied: rule}
	return v
}

// basic returns the mandatory verdicts of a passing run
func basic() map[string]stage.Verdict {
	return map[string]stage.Verdict{
		stage.CSVAnalysis:        completed(stage.CSVAnalysis, stage.Inconclusive, 0.9),
		stage.Verification:       verification(true, true),
		stage.VerificationReview: completed(stage.VerificationReview, stage.Accept, 0.95),
		stage.FinalDecision:      completed(stage.FinalDecision, stage.Accept, 0.92),
	}
}

func TestDecide_Accept(t *testing.T) {
	d := New(DefaultPolicy()).Decide(basic())

	assert.Equal(t, stage.Accept, d.Label)
	assert.True(t, d.CriticalFactorsPass)
	assert.True(t, d.RiskAcceptable)
	require.NotNil(t, d.OverallConfidence)
	assert.Equal(t, 0.92, *d.OverallConfidence, "overall confidence is the final stage's, not an average")
}

func TestDecide_CriticalGate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]stage.Verdict)
		failed string
	}{
		{"verifier failed", func(v map[string]stage.Verdict) { v[stage.Verification] = verification(false, true) }, FactorVerificationPassed},
		{"business rule violated", func(v map[string]stage.Verdict) { v[stage.Verification] = verification(true, false) }, FactorBusinessCompliant},
		{"review rejects", func(v map[string]stage.Verdict) {
			v[stage.VerificationReview] = completed(stage.VerificationReview, stage.Reject, 0.99)
		}, FactorAgentConsensus},
		{"review missing", func(v map[string]stage.Verdict) { delete(v, stage.VerificationReview) }, FactorAgentConsensus},
		{"verification missing", func(v map[string]stage.Verdict) { delete(v, stage.Verification) }, FactorVerificationPassed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdicts := basic()
			// Every other stage is as confident as it can be
			for name, v := range verdicts {
				v.Confidence = stage.Float(1)
				verdicts[name] = v
			}
			tt.mutate(verdicts)

			d := New(DefaultPolicy()).Decide(verdicts)
			assert.Equal(t, stage.Reject, d.Label)
			assert.False(t, d.CriticalFactorsPass)
			assert.False(t, d.Factors[tt.failed])
			assert.Contains(t, d.Rationale, tt.failed)
			require.NotNil(t, d.OverallConfidence)
			assert.Equal(t, 1.0, *d.OverallConfidence)
		})
	}
}

func TestDecide_RiskGate(t *testing.T) {
	tests := []struct {
		name     string
		risk     stage.Label
		security stage.Label
		want     stage.Label
	}{
		{"low risk high security", stage.Low, stage.High, stage.Accept},
		{"medium risk medium security", stage.Medium, stage.Medium, stage.Accept},
		{"high risk", stage.High, stage.High, stage.Reject},
		{"low security", stage.Low, stage.Low, stage.Reject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := basic()
			v[stage.RiskAssessment] = completed(stage.RiskAssessment, tt.risk, 0.8)
			v[stage.Security] = completed(stage.Security, tt.security, 0.8)

			d := New(DefaultPolicy()).Decide(v)
			assert.Equal(t, tt.want, d.Label)
			assert.True(t, d.CriticalFactorsPass)
			assert.Equal(t, tt.want == stage.Accept, d.RiskAcceptable)
		})
	}
}

func TestDecide_OptionalStagesVacuous(t *testing.T) {
	v := basic()
	v[stage.RiskAssessment] = stage.NotRun(stage.RiskAssessment)
	v[stage.Security] = stage.Unavailable(stage.Security, assert.AnError)
	// A high tier on a stage that did not complete must not gate
	nr := stage.NotRun(stage.DataQuality)
	nr.Label = stage.High
	v[stage.DataQuality] = nr

	d := New(DefaultPolicy()).Decide(v)
	assert.Equal(t, stage.Accept, d.Label)
	assert.True(t, d.Factors[FactorRiskManageable])
	assert.True(t, d.Factors[FactorSecurityAdequate])
	assert.True(t, d.Factors[FactorDataQualityAcceptable])
}

func TestDecide_InformationalFactors(t *testing.T) {
	v := basic()
	low := completed(stage.DataQuality, "", 0.8)
	low.Score = stage.Float(0.3)
	v[stage.DataQuality] = low
	v[stage.BusinessRule] = completed(stage.BusinessRule, stage.Fail, 0.9)

	d := New(DefaultPolicy()).Decide(v)
	assert.False(t, d.Factors[FactorDataQualityAcceptable])
	assert.False(t, d.Factors[FactorBusinessRuleStagePass])
	assert.Equal(t, stage.Accept, d.Label, "informational factors never gate")
}

func TestDecide_FinalRole(t *testing.T) {
	v := basic()
	p := DefaultPolicy()
	p.FinalRole = stage.VerificationReview

	d := New(p).Decide(v)
	require.NotNil(t, d.OverallConfidence)
	assert.Equal(t, 0.95, *d.OverallConfidence)

	delete(v, stage.VerificationReview)
	assert.Nil(t, New(p).Decide(v).OverallConfidence)
}

func TestPolicyFromAM(t *testing.T) {
	p := PolicyFromAM(am.DecisionConfig{AcceptableRisk: []string{" LOW "}})
	assert.Equal(t, []stage.Label{stage.Low}, p.AcceptableRisk)
	assert.Equal(t, DefaultPolicy().AdequateSecurity, p.AdequateSecurity)
	assert.Equal(t, am.DefaultFinalRole, p.FinalRole)
	assert.Equal(t, am.DefaultMinQualityScore, p.MinQualityScore)
}
