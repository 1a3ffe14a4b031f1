package display

import (
	"bytes"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vgate/ai/tracker"
	"github.com/teranos/vgate/stage"
	"github.com/teranos/vgate/verifier"
	"github.com/teranos/vgate/workflow"
)

func init() {
	pterm.DisableStyling()
}

func acceptedReport() *workflow.Report {
	return &workflow.Report{
		WorkflowID:        "wf_1",
		WorkflowType:      "basic",
		State:             workflow.StateCompleted,
		Success:           true,
		FinalDecision:     stage.Accept,
		OverallConfidence: stage.Float(0.92),
		AgentResults: map[string]stage.Verdict{
			stage.FinalDecision: {Stage: stage.FinalDecision, Status: stage.StatusCompleted, Label: stage.Accept},
			stage.CSVAnalysis:   {Stage: stage.CSVAnalysis, Status: stage.StatusCompleted, Rationale: "five   rows\nthree columns"},
			stage.Security:      {Stage: stage.Security, Status: stage.StatusNotRun},
		},
		DatasetDetails:   &workflow.DatasetDetails{Hash: "abc", AggregateValue: 800, RowCount: 5},
		DecisionAnalysis: &workflow.DecisionAnalysis{Rationale: "all critical and risk factors hold"},
	}
}

func TestRenderReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, acceptedReport()))

	out := buf.String()
	assert.Contains(t, out, "wf_1")
	assert.Contains(t, out, "five rows three columns")
	assert.Contains(t, out, "800 over 5 rows")
	assert.Contains(t, out, "ACCEPT confidence 0.92")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(stage.CSVAnalysis)), bytes.Index(buf.Bytes(), []byte(stage.FinalDecision)))
}

func TestStatus(t *testing.T) {
	r := acceptedReport()
	assert.Contains(t, Status(r), "ACCEPT")

	r.Success, r.FinalDecision, r.OverallConfidence = false, stage.Reject, nil
	assert.Contains(t, Status(r), "REJECT confidence n/a")

	r.State, r.ErrorType = workflow.StateFailed, "adapter"
	assert.Contains(t, Status(r), "FAILED adapter")
}

func TestRenderVerification(t *testing.T) {
	var buf bytes.Buffer
	err := RenderVerification(&buf, &verifier.Report{
		Success: false, AggregateValue: 800, DatasetHash: "ab", InputHash: "cd",
		Error: "verifier reported failure",
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "differs from input cd")
	assert.Contains(t, buf.String(), "Verification failed: verifier reported failure")
}

func TestRenderUsage(t *testing.T) {
	var buf bytes.Buffer
	err := RenderUsage(&buf, &tracker.UsageStats{TotalRequests: 4, SuccessRate: 0.75, TotalTokens: 1200},
		[]tracker.StageBreakdown{{Stage: stage.Security, ModelName: "m", RequestCount: 4}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "4 (75% successful)")
	assert.Contains(t, buf.String(), stage.Security)
}

func TestOutputFormats(t *testing.T) {
	v := map[string]any{"success": true, "aggregate_value": 800}

	var buf bytes.Buffer
	require.NoError(t, Output(&buf, FormatJSON, v, nil))
	assert.JSONEq(t, `{"success":true,"aggregate_value":800}`, buf.String())

	buf.Reset()
	require.NoError(t, Output(&buf, FormatYAML, v, nil))
	assert.Contains(t, buf.String(), "aggregate_value: 800")

	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
