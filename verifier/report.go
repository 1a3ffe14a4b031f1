package verifier

import (
	"fmt"
	"strings"

	"github.com/teranos/vgate/errors"
)

// Report is the structured result of one verifier invocation.
// It is built once by the adapter and must not be modified afterwards.
type Report struct {
	Success                     bool   `json:"success"`
	ProofValid                  bool   `json:"proof_valid"`
	BusinessRuleSatisfied       bool   `json:"business_rule_satisfied"`
	CryptographicGuaranteeValid bool   `json:"cryptographic_guarantee_valid"`
	AggregateValue              int64  `json:"aggregate_value"`
	RowCount                    int64  `json:"row_count"`
	DatasetHash                 string `json:"dataset_hash"`
	AggregateHash               string `json:"aggregate_hash"`
	ProofHash                   string `json:"proof_hash,omitempty"`
	Error                       string `json:"error,omitempty"`

	// DatasetHashRecomputed is set when the verifier's own hash line was
	// missing or malformed and DatasetHash was derived from the input.
	DatasetHashRecomputed bool `json:"dataset_hash_recomputed,omitempty"`
	// InputHash is the content hash of the bytes handed to the verifier
	InputHash string `json:"input_hash"`
	// InputHashMatches reports whether the verifier hashed the same bytes we sent
	InputHashMatches bool `json:"input_hash_matches"`

	ExitCode int    `json:"exit_code"`
	Terminal string `json:"terminal,omitempty"` // SUCCESS, FAILURE or empty
}

// Problems splits Error into its individual entries
func (r *Report) Problems() []string {
	if r == nil || r.Error == "" {
		return nil
	}
	return strings.Split(r.Error, "; ")
}

// Adapter failure kinds
const (
	OpStart   = "start"
	OpTimeout = "timeout"
	OpCancel  = "cancel"
	OpExit    = "exit"
	OpSetup   = "setup"
)

// AdapterError is returned when the verifier process itself failed: it could
// not be started, ran past its timeout, or exited non-zero without printing
// a terminal marker. It matches errors.ErrAdapter.
type AdapterError struct {
	Op       string
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *AdapterError) Error() string {
	var b strings.Builder
	switch e.Op {
	case OpTimeout:
		fmt.Fprintf(&b, "verifier %s timed out", e.Command)
	case OpCancel:
		fmt.Fprintf(&b, "verifier %s cancelled", e.Command)
	case OpExit:
		fmt.Fprintf(&b, "verifier %s exited with status %d and no terminal marker", e.Command, e.ExitCode)
	case OpStart:
		fmt.Fprintf(&b, "verifier %s could not be started", e.Command)
	default:
		fmt.Fprintf(&b, "verifier %s: %s failed", e.Command, e.Op)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if s := lastLine(e.Stderr); s != "" {
		fmt.Fprintf(&b, " (stderr: %s)", s)
	}
	return b.String()
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Is makes AdapterError match errors.ErrAdapter, and errors.ErrTimeout on expiry
func (e *AdapterError) Is(target error) bool {
	if target == errors.ErrAdapter {
		return true
	}
	return e.Op == OpTimeout && target == errors.ErrTimeout
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
