package stage

import (
	"github.com/teranos/vgate/verifier"
)

// Outputs is a read-only view of the verdicts recorded so far in one run.
// With returns a new view; existing views never change.
type Outputs struct {
	order    []string
	verdicts map[string]Verdict
}

// With returns a view extended by v. A verdict for a stage already present
// replaces it in place.
func (o Outputs) With(v Verdict) Outputs {
	next := Outputs{
		order:    make([]string, 0, len(o.order)+1),
		verdicts: make(map[string]Verdict, len(o.verdicts)+1),
	}
	next.order = append(next.order, o.order...)
	for k, existing := range o.verdicts {
		next.verdicts[k] = existing
	}
	if _, ok := o.verdicts[v.Stage]; !ok {
		next.order = append(next.order, v.Stage)
	}
	next.verdicts[v.Stage] = v.Clone()
	return next
}

// Get returns a copy of the named stage's verdict
func (o Outputs) Get(name string) (Verdict, bool) {
	v, ok := o.verdicts[name]
	if !ok {
		return Verdict{}, false
	}
	return v.Clone(), true
}

// Completed returns the verdict only if the stage ran to completion
func (o Outputs) Completed(name string) (Verdict, bool) {
	v, ok := o.Get(name)
	if !ok || !v.Completed() {
		return Verdict{}, false
	}
	return v, true
}

// Report returns the verifier report, if the verification stage has run
func (o Outputs) Report() *verifier.Report {
	if v, ok := o.verdicts[Verification]; ok {
		return v.Report
	}
	return nil
}

// Names lists recorded stages in the order they were added
func (o Outputs) Names() []string {
	return append([]string(nil), o.order...)
}

// Len is the number of recorded verdicts
func (o Outputs) Len() int { return len(o.order) }

// Map returns copies of all verdicts keyed by stage name
func (o Outputs) Map() map[string]Verdict {
	out := make(map[string]Verdict, len(o.verdicts))
	for k, v := range o.verdicts {
		out[k] = v.Clone()
	}
	return out
}
