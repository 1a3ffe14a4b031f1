package workflow

import (
	"github.com/teranos/vgate/stage"
)

// Report is the outcome of one run. It is built once and never modified.
type Report struct {
	WorkflowID        string      `json:"workflow_id"`
	WorkflowType      string      `json:"workflow_type"`
	State             State       `json:"state"`
	Success           bool        `json:"success"`
	FinalDecision     stage.Label `json:"final_decision,omitempty"`
	OverallConfidence *float64    `json:"overall_confidence"`
	Error             string      `json:"error,omitempty"`
	ErrorType         string      `json:"error_type,omitempty"`
	// FailedStage is the stage whose error failed the run
	FailedStage string `json:"failed_stage,omitempty"`
	// LastCompletedStage is set on failed runs
	LastCompletedStage string `json:"last_completed_stage,omitempty"`

	AgentResults           map[string]stage.Verdict `json:"agent_results,omitempty"`
	VerificationGuarantees *Guarantees              `json:"verification_guarantees,omitempty"`
	Metadata               Metadata                 `json:"workflow_metadata"`
	DatasetDetails         *DatasetDetails          `json:"dataset_details,omitempty"`
	DecisionAnalysis       *DecisionAnalysis        `json:"decision_analysis,omitempty"`
	SumValidation          *SumValidation           `json:"sum_validation,omitempty"`
}

// Guarantees are the named verification guarantees
type Guarantees struct {
	DeterministicExecution  bool `json:"deterministic_execution"`
	CryptographicProof      bool `json:"cryptographic_proof"`
	BusinessLogicCompliance bool `json:"business_logic_compliance"`
	SnarkProofValid         bool `json:"snark_proof_valid"`
}

// Metadata describes the run itself
type Metadata struct {
	TotalSteps           int      `json:"total_steps"`
	AgentsInvolved       []string `json:"agents_involved"`
	ExecutionTimeSeconds float64  `json:"execution_time_seconds"`
	OptionalStages       []string `json:"optional_stages"`
}

// DatasetDetails correlate the run with its input
type DatasetDetails struct {
	Hash           string `json:"hash"`
	AggregateValue int64  `json:"aggregate_value"`
	AggregateHash  string `json:"aggregate_hash"`
	RowCount       int64  `json:"row_count"`
	ProofHash      string `json:"proof_hash,omitempty"`
}

// DecisionAnalysis exposes how the decision was reached
type DecisionAnalysis struct {
	CriticalFactorsPass bool            `json:"critical_factors_pass"`
	RiskAcceptable      bool            `json:"risk_acceptable"`
	Factors             map[string]bool `json:"factors"`
	Rationale           string          `json:"rationale"`
}

// SumValidation compares the verified aggregate with an expected value.
// It is informational and does not affect the decision.
type SumValidation struct {
	Expected int64 `json:"expected"`
	Actual   int64 `json:"actual"`
	Matches  bool  `json:"matches"`
}

// Accepted reports whether the run completed with an accept decision
func (r *Report) Accepted() bool {
	return r != nil && r.Success && r.FinalDecision == stage.Accept
}
