package stages

import (
	"context"

	"github.com/teranos/vgate/dataset"
	"github.com/teranos/vgate/stage"
)

// DataQuality scores the dataset's fitness for a business decision
type DataQuality struct {
	persona
	fallback float64
}

// NewDataQuality creates the data_quality stage
func NewDataQuality(deps Deps) (*DataQuality, error) {
	p, err := newPersona(stage.DataQuality, ParticipantDataQuality, deps)
	if err != nil {
		return nil, err
	}
	return &DataQuality{persona: p, fallback: deps.Defaults.QualityScore}, nil
}

func (s *DataQuality) Name() string        { return stage.DataQuality }
func (s *DataQuality) Participant() string { return ParticipantDataQuality }

func (s *DataQuality) Run(ctx context.Context, in stage.Input) (stage.Verdict, error) {
	st, err := in.Dataset.Analyze()
	if err != nil {
		return stage.Verdict{}, err
	}
	ans, err := s.ask(ctx, in, map[string]any{
		"headers":     st.Headers,
		"row_count":   st.RowCount,
		"sample_rows": st.Preview,
	})
	if err != nil {
		return stage.Verdict{}, err
	}

	score := qualityScore(ans, s.fallback)
	v := s.verdict(ans, stage.Inconclusive)
	v.Score = &score
	v.Raw["quality_score"] = score
	return v, nil
}

// Security rates the trust guarantees of the verification
type Security struct {
	persona
	fallback stage.Label
}

// NewSecurity creates the security stage
func NewSecurity(deps Deps) (*Security, error) {
	p, err := newPersona(stage.Security, ParticipantSecurity, deps)
	if err != nil {
		return nil, err
	}
	return &Security{persona: p, fallback: deps.Defaults.SecurityLevel}, nil
}

func (s *Security) Name() string        { return stage.Security }
func (s *Security) Participant() string { return ParticipantSecurity }

func (s *Security) Run(ctx context.Context, in stage.Input) (stage.Verdict, error) {
	ans, err := s.ask(ctx, in, map[string]any{"report": reportVars(in)})
	if err != nil {
		return stage.Verdict{}, err
	}
	level := securityLevel(ans, s.fallback)
	v := s.verdict(ans, level)
	v.Raw["security_level"] = string(level)
	return v, nil
}

// BusinessRule checks the threshold rule against the verified aggregate and
// has the business persona comment on it. The pass/fail label is computed,
// not taken from the model.
type BusinessRule struct {
	persona
}

// NewBusinessRule creates the business_rule stage
func NewBusinessRule(deps Deps) (*BusinessRule, error) {
	p, err := newPersona(stage.BusinessRule, ParticipantBusinessRule, deps)
	if err != nil {
		return nil, err
	}
	return &BusinessRule{persona: p}, nil
}

func (s *BusinessRule) Name() string        { return stage.BusinessRule }
func (s *BusinessRule) Participant() string { return ParticipantBusinessRule }

func (s *BusinessRule) Run(ctx context.Context, in stage.Input) (stage.Verdict, error) {
	hash := in.Dataset.Hash()
	ans, err := s.ask(ctx, in, map[string]any{
		"report":             reportVars(in),
		"threshold":          in.Threshold,
		"dataset_hash_short": hash[:32],
	})
	if err != nil {
		return stage.Verdict{}, err
	}

	label := stage.Inconclusive
	if r := in.Prior.Report(); r != nil {
		label = stage.Fail
		if dataset.WithinThreshold(r.AggregateValue, in.Threshold) {
			label = stage.Pass
		}
	}
	v := s.verdict(ans, label)
	v.Raw["compliance_status"] = string(label)
	return v, nil
}

// Risk rates the overall risk of accepting the computation
type Risk struct {
	persona
	fallback stage.Label
}

// NewRisk creates the risk_assessment stage
func NewRisk(deps Deps) (*Risk, error) {
	p, err := newPersona(stage.RiskAssessment, ParticipantRisk, deps)
	if err != nil {
		return nil, err
	}
	return &Risk{persona: p, fallback: deps.Defaults.RiskLevel}, nil
}

func (s *Risk) Name() string        { return stage.RiskAssessment }
func (s *Risk) Participant() string { return ParticipantRisk }

func (s *Risk) Run(ctx context.Context, in stage.Input) (stage.Verdict, error) {
	recommendation := "unknown"
	if review, ok := in.Prior.Completed(stage.VerificationReview); ok {
		recommendation = string(review.Label)
	}
	ans, err := s.ask(ctx, in, map[string]any{
		"report":         reportVars(in),
		"recommendation": recommendation,
	})
	if err != nil {
		return stage.Verdict{}, err
	}

	level := riskLevel(ans, s.fallback)
	v := s.verdict(ans, level)
	v.Raw["risk_level"] = string(level)
	v.Raw["mitigation_required"] = mitigationRequired(ans)
	return v, nil
}
