package stages

import (
	"context"

	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/stage"
)

// Verification runs the external verifier. Its verdict carries the report.
type Verification struct {
	verifier Verifier
}

// NewVerification creates the verification stage
func NewVerification(deps Deps) (*Verification, error) {
	if deps.Verifier == nil {
		return nil, errors.New("verification stage needs a verifier")
	}
	return &Verification{verifier: deps.Verifier}, nil
}

func (s *Verification) Name() string        { return stage.Verification }
func (s *Verification) Participant() string { return ParticipantVerifier }

func (s *Verification) Run(ctx context.Context, in stage.Input) (stage.Verdict, error) {
	r, err := s.verifier.Verify(ctx, in.Dataset, in.Threshold)
	if err != nil {
		return stage.Verdict{}, err
	}

	v := stage.Verdict{
		Stage:     stage.Verification,
		Status:    stage.StatusCompleted,
		Label:     stage.Reject,
		Rationale: r.Error,
		Report:    r,
		Raw: map[string]any{
			"deterministic_proof":      r.ProofValid,
			"business_compliance":      r.BusinessRuleSatisfied,
			"cryptographic_guarantees": r.CryptographicGuaranteeValid,
		},
	}
	if r.Success {
		v.Label = stage.Accept
		v.Rationale = "verifier reported success"
	}
	return v, nil
}
