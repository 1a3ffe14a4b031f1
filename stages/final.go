package stages

import (
	"context"
	"sort"

	"github.com/teranos/vgate/decision"
	"github.com/teranos/vgate/stage"
)

// FinalDecision is the orchestrator. It previews the aggregator's rule over
// the verdicts so far, shares the outcome with the orchestrator persona and
// records the persona's confidence, which the aggregator reports as the
// overall confidence.
type FinalDecision struct {
	persona
	aggregator *decision.Aggregator
	defaults   Defaults
}

// NewFinalDecision creates the final_decision stage
func NewFinalDecision(deps Deps) (*FinalDecision, error) {
	p, err := newPersona(stage.FinalDecision, ParticipantOrchestrator, deps)
	if err != nil {
		return nil, err
	}
	agg := deps.Aggregator
	if agg == nil {
		agg = decision.New(decision.DefaultPolicy())
	}
	return &FinalDecision{persona: p, aggregator: agg, defaults: deps.Defaults}, nil
}

func (s *FinalDecision) Name() string        { return stage.FinalDecision }
func (s *FinalDecision) Participant() string { return ParticipantOrchestrator }

func (s *FinalDecision) Run(ctx context.Context, in stage.Input) (stage.Verdict, error) {
	prior := in.Prior.Map()
	d := s.aggregator.Decide(prior)

	ans, err := s.ask(ctx, in, s.vars(in, prior, d))
	if err != nil {
		return stage.Verdict{}, err
	}

	v := s.verdict(ans, d.Label)
	if v.Rationale == "" {
		v.Rationale = d.Rationale
	}
	v.Raw["decision_factors"] = d.Factors
	v.Raw["critical_factors_pass"] = d.CriticalFactorsPass
	v.Raw["risk_acceptable"] = d.RiskAcceptable
	if d.Accepted() {
		v.Raw["success_factors"] = []string{
			"Deterministic execution proven",
			"Cryptographic guarantees maintained",
			"Business logic compliance verified",
			"Multi-agent consensus achieved",
		}
		v.Raw["risk_assessment"] = string(stage.Low)
	} else {
		v.Raw["failed_factors"] = failedFactors(d.Factors)
		v.Raw["risk_assessment"] = string(stage.High)
	}
	return v, nil
}

func (s *FinalDecision) vars(in stage.Input, prior map[string]stage.Verdict, d decision.Decision) map[string]any {
	quality := s.defaults.QualityScore
	if v, ok := in.Prior.Completed(stage.DataQuality); ok && v.Score != nil {
		quality = *v.Score
	}
	security := s.defaults.SecurityLevel
	if v, ok := in.Prior.Completed(stage.Security); ok {
		security = v.Label
	}
	risk := s.defaults.RiskLevel
	mitigation := false
	if v, ok := in.Prior.Completed(stage.RiskAssessment); ok {
		risk = v.Label
		mitigation, _ = v.Raw["mitigation_required"].(bool)
	}
	recommendation := "unknown"
	if v, ok := in.Prior.Completed(stage.VerificationReview); ok {
		recommendation = string(v.Label)
	}

	return map[string]any{
		"report":              reportVars(in),
		"quality_score":       quality,
		"security_level":      string(security),
		"risk_level":          string(risk),
		"recommendation":      recommendation,
		"confident_agents":    confidentStages(prior, s.defaults.ConsensusConfidence),
		"mitigation_required": mitigation,
		"decision":            string(d.Label),
	}
}

// confidentStages counts completed stages more confident than floor
func confidentStages(verdicts map[string]stage.Verdict, floor float64) int {
	n := 0
	for _, v := range verdicts {
		if v.Completed() && v.Confidence != nil && *v.Confidence > floor {
			n++
		}
	}
	return n
}

func failedFactors(f map[string]bool) []string {
	var out []string
	for name, ok := range f {
		if !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
