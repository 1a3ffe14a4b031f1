package workflow

import (
	"slices"

	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/stage"
)

// State of a run
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// MandatoryStages must be present in every Definition
var MandatoryStages = []string{stage.CSVAnalysis, stage.Verification, stage.VerificationReview, stage.FinalDecision}

// OptionalStages may be disabled per run
var OptionalStages = []string{stage.DataQuality, stage.Security, stage.BusinessRule, stage.RiskAssessment}

// IsOptional reports whether name is an optional stage
func IsOptional(name string) bool { return slices.Contains(OptionalStages, name) }

// OptionalSet is the set of optional stages enabled for a run. nil enables none.
type OptionalSet []string

var (
	// AllOptional enables every optional stage
	AllOptional = OptionalSet(OptionalStages)
	// NoOptional runs the mandatory stages only
	NoOptional = OptionalSet{}
)

// Enabled reports whether name is in the set
func (s OptionalSet) Enabled(name string) bool { return slices.Contains(s, name) }

// ParseOptional validates stage names
func ParseOptional(names []string) (OptionalSet, error) {
	out := make(OptionalSet, 0, len(names))
	for _, n := range names {
		if !IsOptional(n) {
			return nil, errors.WithHintf(
				errors.Newf("%q is not an optional stage", n),
				"optional stages are %v", OptionalStages)
		}
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Entry is one stage in a Definition
type Entry struct {
	Stage    stage.Stage
	Optional bool
}

// Definition is the fixed, ordered stage list of a workflow
type Definition struct {
	Entries []Entry
}

// NewDefinition orders stages as given and marks the optional ones.
// Every mandatory stage must be present exactly once.
func NewDefinition(stages ...stage.Stage) (Definition, error) {
	var def Definition
	seen := make(map[string]bool, len(stages))
	for _, s := range stages {
		if s == nil {
			return Definition{}, errors.New("nil stage in workflow definition")
		}
		if seen[s.Name()] {
			return Definition{}, errors.Newf("stage %s appears twice", s.Name())
		}
		seen[s.Name()] = true
		def.Entries = append(def.Entries, Entry{Stage: s, Optional: IsOptional(s.Name())})
	}
	for _, name := range MandatoryStages {
		if !seen[name] {
			return Definition{}, errors.Newf("workflow definition is missing mandatory stage %s", name)
		}
	}
	return def, nil
}

// Names lists the stage names in order
func (d Definition) Names() []string {
	out := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		out[i] = e.Stage.Name()
	}
	return out
}
