package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vgate/verifier"
)

func TestOutputsWithIsCopyOnWrite(t *testing.T) {
	var empty Outputs
	one := empty.With(Verdict{Stage: CSVAnalysis, Status: StatusCompleted, Label: Inconclusive})
	two := one.With(Verdict{Stage: Verification, Status: StatusCompleted, Report: &verifier.Report{Success: true}})

	assert.Zero(t, empty.Len())
	assert.Equal(t, []string{CSVAnalysis}, one.Names())
	assert.Equal(t, []string{CSVAnalysis, Verification}, two.Names())

	assert.Nil(t, one.Report(), "earlier views do not see later stages")
	require.NotNil(t, two.Report())
	assert.True(t, two.Report().Success)
}

func TestOutputsGetReturnsCopy(t *testing.T) {
	o := Outputs{}.With(Verdict{
		Stage:       Security,
		Status:      StatusCompleted,
		Confidence:  Float(0.9),
		NextActions: []string{"rotate keys"},
		Raw:         map[string]any{"security_level": "high"},
	})

	v, ok := o.Get(Security)
	require.True(t, ok)
	v.NextActions[0] = "changed"
	v.Raw["security_level"] = "low"
	*v.Confidence = 0.1

	again, _ := o.Get(Security)
	assert.Equal(t, "rotate keys", again.NextActions[0])
	assert.Equal(t, "high", again.Raw["security_level"])
	assert.Equal(t, 0.9, *again.Confidence)
}

func TestOutputsCompleted(t *testing.T) {
	o := Outputs{}.
		With(NotRun(DataQuality)).
		With(Unavailable(RiskAssessment, assert.AnError)).
		With(Verdict{Stage: CSVAnalysis, Status: StatusCompleted})

	_, ok := o.Completed(DataQuality)
	assert.False(t, ok)
	_, ok = o.Completed(RiskAssessment)
	assert.False(t, ok)
	_, ok = o.Completed(CSVAnalysis)
	assert.True(t, ok)

	v, _ := o.Get(RiskAssessment)
	assert.Equal(t, StatusUnavailable, v.Status)
	assert.Equal(t, assert.AnError.Error(), v.Rationale)
}

func TestOutputsWithReplaces(t *testing.T) {
	o := Outputs{}.With(NotRun(Security)).With(Verdict{Stage: Security, Status: StatusCompleted, Label: High})
	assert.Equal(t, 1, o.Len())
	v, _ := o.Get(Security)
	assert.Equal(t, High, v.Label)
}
