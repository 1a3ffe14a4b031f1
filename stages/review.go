package stages

import (
	"context"

	"github.com/teranos/vgate/stage"
)

// Review has the verification persona assess the verifier's result against
// the initial analysis. The recommendation follows the verifier: accept iff
// the report succeeded.
type Review struct {
	persona
	trust float64
}

// NewReview creates the verification_review stage
func NewReview(deps Deps) (*Review, error) {
	p, err := newPersona(stage.VerificationReview, ParticipantReviewer, deps)
	if err != nil {
		return nil, err
	}
	return &Review{persona: p, trust: deps.Defaults.ReviewTrust}, nil
}

func (s *Review) Name() string        { return stage.VerificationReview }
func (s *Review) Participant() string { return ParticipantReviewer }

func (s *Review) Run(ctx context.Context, in stage.Input) (stage.Verdict, error) {
	analysis := map[string]any{"content": "unknown", "confidence": nil}
	if a, ok := in.Prior.Completed(stage.CSVAnalysis); ok {
		analysis["content"] = a.Raw["content"]
		analysis["confidence"] = a.Confidence
	}

	ans, err := s.ask(ctx, in, map[string]any{
		"analysis": analysis,
		"report":   reportVars(in),
	})
	if err != nil {
		return stage.Verdict{}, err
	}

	recommendation := stage.Reject
	if r := in.Prior.Report(); r != nil && r.Success {
		recommendation = stage.Accept
	}

	v := s.verdict(ans, recommendation)
	v.Raw["recommendation"] = string(recommendation)
	trust := s.trust
	if v.Confidence != nil {
		trust = *v.Confidence
	}
	v.Raw["trust_level"] = trust
	return v, nil
}
