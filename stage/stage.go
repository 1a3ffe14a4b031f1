// Package stage defines the contract every workflow stage implements and
// the verdict shape stages hand to the engine and the decision aggregator.
package stage

import (
	"context"
	"maps"
	"slices"

	"github.com/teranos/vgate/dataset"
	"github.com/teranos/vgate/verifier"
)

// Stage names, in the order the enhanced workflow runs them
const (
	DataQuality        = "data_quality"
	CSVAnalysis        = "csv_analysis"
	Verification       = "verification"
	Security           = "security"
	BusinessRule       = "business_rule"
	VerificationReview = "verification_review"
	RiskAssessment     = "risk_assessment"
	FinalDecision      = "final_decision"
)

// Participant tag for steps the engine records itself
const System = "system"

// Stage is one step of a workflow. Run must depend only on in and the
// stage's own collaborators; earlier results are reachable through in.Prior.
type Stage interface {
	Name() string
	// Participant identifies the agent playing this stage, e.g. "csv_analyzer"
	Participant() string
	Run(ctx context.Context, in Input) (Verdict, error)
}

// Input is what a stage receives
type Input struct {
	WorkflowID string
	Dataset    *dataset.Dataset
	Threshold  int64
	Prior      Outputs
}

// Status of a stage within one run
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusNotRun      Status = "not_run"
	StatusUnavailable Status = "unavailable"
)

// Label is a verdict's conclusion: a decision or a tier
type Label string

const (
	Accept       Label = "accept"
	Reject       Label = "reject"
	Inconclusive Label = "inconclusive"

	Low    Label = "low"
	Medium Label = "medium"
	High   Label = "high"

	Pass Label = "pass"
	Fail Label = "fail"
)

// Verdict is a stage's conclusion. Verdicts are passed by value; use Clone
// before handing one to code that may modify its maps or slices.
type Verdict struct {
	Stage       string         `json:"stage_name"`
	Status      Status         `json:"status"`
	Label       Label          `json:"label,omitempty"`
	Score       *float64       `json:"score,omitempty"`
	Confidence  *float64       `json:"confidence,omitempty"`
	Rationale   string         `json:"rationale,omitempty"`
	NextActions []string       `json:"next_actions,omitempty"`
	Raw         map[string]any `json:"raw_output,omitempty"`

	// Report is set by the verification stage only
	Report *verifier.Report `json:"verification_report,omitempty"`
}

// Completed reports whether the stage ran to completion
func (v Verdict) Completed() bool { return v.Status == StatusCompleted }

// Clone returns a copy that shares no mutable state with v
func (v Verdict) Clone() Verdict {
	v.NextActions = slices.Clone(v.NextActions)
	v.Raw = maps.Clone(v.Raw)
	if v.Score != nil {
		s := *v.Score
		v.Score = &s
	}
	if v.Confidence != nil {
		c := *v.Confidence
		v.Confidence = &c
	}
	return v
}

// NotRun is the placeholder for a disabled optional stage
func NotRun(name string) Verdict {
	return Verdict{Stage: name, Status: StatusNotRun}
}

// Unavailable records an optional stage whose LLM could not be reached
func Unavailable(name string, err error) Verdict {
	v := Verdict{Stage: name, Status: StatusUnavailable}
	if err != nil {
		v.Rationale = err.Error()
	}
	return v
}

// Float is a helper for optional numeric fields
func Float(f float64) *float64 { return &f }
