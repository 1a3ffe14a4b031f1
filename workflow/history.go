package workflow

import (
	"time"

	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/stage"
	"github.com/teranos/vgate/verifier"
)

// ErrorRecord is the payload of a step that failed
type ErrorRecord struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Stage   string `json:"stage,omitempty"`
}

func newErrorRecord(stageName string, err error) *ErrorRecord {
	return &ErrorRecord{Message: err.Error(), Type: errors.Classify(err), Stage: stageName}
}

// Step records one stage invocation, whatever its outcome
type Step struct {
	Name         string           `json:"name"`
	Verdict      *stage.Verdict   `json:"verdict,omitempty"`
	Report       *verifier.Report `json:"report,omitempty"`
	Error        *ErrorRecord     `json:"error,omitempty"`
	Participants []string         `json:"participants"`
	Timestamp    time.Time        `json:"timestamp"`
	Duration     time.Duration    `json:"duration"`
}

// History is the append-only step log of a single run
type History struct {
	steps []Step
}

// Append records a step
func (h *History) Append(s Step) {
	h.steps = append(h.steps, s)
}

// Len is the number of recorded steps
func (h *History) Len() int { return len(h.steps) }

// Steps returns a copy of the recorded steps
func (h *History) Steps() []Step {
	return append([]Step(nil), h.steps...)
}

// Started returns the timestamp of the first step
func (h *History) Started() (time.Time, bool) {
	if len(h.steps) == 0 {
		return time.Time{}, false
	}
	return h.steps[0].Timestamp, true
}

// Participants lists every participant in order of first appearance
func (h *History) Participants() []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range h.steps {
		for _, p := range s.Participants {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
