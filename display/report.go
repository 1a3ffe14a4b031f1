// Package display renders workflow and verifier results for the terminal.
package display

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/vgate/ai/tracker"
	"github.com/teranos/vgate/stage"
	"github.com/teranos/vgate/verifier"
	"github.com/teranos/vgate/workflow"
)

// RenderReport writes a human-readable summary of a workflow report
func RenderReport(w io.Writer, r *workflow.Report) error {
	fmt.Fprintf(w, "%s %s (%s)\n", pterm.LightCyan("Workflow"), r.WorkflowID, r.WorkflowType)

	if r.State == workflow.StateFailed {
		fmt.Fprintf(w, "%s %s\n", pterm.Red("✗ Failed:"), r.Error)
		if r.FailedStage != "" {
			fmt.Fprintf(w, "  %s %s\n", pterm.Yellow("Failed stage:"), r.FailedStage)
		}
		if r.LastCompletedStage != "" {
			fmt.Fprintf(w, "  %s %s\n", pterm.Yellow("Last completed stage:"), r.LastCompletedStage)
		}
	}

	if len(r.AgentResults) > 0 {
		table, err := pterm.DefaultTable.WithHasHeader().WithData(verdictRows(r.AgentResults)).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, table)
	}

	if d := r.DatasetDetails; d != nil {
		fmt.Fprintf(w, "%s %s\n", pterm.Gray("Dataset hash:"), d.Hash)
		fmt.Fprintf(w, "%s %d over %d rows\n", pterm.Gray("Aggregate:"), d.AggregateValue, d.RowCount)
	}
	if g := r.VerificationGuarantees; g != nil {
		fmt.Fprintf(w, "%s deterministic=%s proof=%s business=%s snark=%s\n",
			pterm.Gray("Guarantees:"),
			check(g.DeterministicExecution), check(g.CryptographicProof),
			check(g.BusinessLogicCompliance), check(g.SnarkProofValid))
	}
	if s := r.SumValidation; s != nil {
		fmt.Fprintf(w, "%s expected %d, actual %d %s\n", pterm.Gray("Sum validation:"), s.Expected, s.Actual, check(s.Matches))
	}
	if a := r.DecisionAnalysis; a != nil {
		fmt.Fprintf(w, "%s %s\n", pterm.Gray("Rationale:"), a.Rationale)
	}

	fmt.Fprintln(w, Status(r))
	return nil
}

// Status is the one-line outcome of a run
func Status(r *workflow.Report) string {
	confidence := "n/a"
	if r.OverallConfidence != nil {
		confidence = fmt.Sprintf("%.2f", *r.OverallConfidence)
	}
	switch {
	case r.State == workflow.StateFailed:
		return pterm.Red("✗ FAILED") + " " + r.ErrorType
	case r.Accepted():
		return pterm.Green("✓ ACCEPT") + " confidence " + confidence
	default:
		return pterm.Yellow("✗ REJECT") + " confidence " + confidence
	}
}

func verdictRows(results map[string]stage.Verdict) [][]string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return stageIndex(names[i]) < stageIndex(names[j]) })

	rows := [][]string{{"Stage", "Status", "Label", "Confidence", "Rationale"}}
	for _, name := range names {
		v := results[name]
		confidence := ""
		if v.Confidence != nil {
			confidence = fmt.Sprintf("%.2f", *v.Confidence)
		}
		rows = append(rows, []string{name, string(v.Status), string(v.Label), confidence, truncate(v.Rationale, 60)})
	}
	return rows
}

var stageOrder = []string{
	stage.DataQuality, stage.CSVAnalysis, stage.Verification, stage.Security,
	stage.BusinessRule, stage.VerificationReview, stage.RiskAssessment, stage.FinalDecision,
}

func stageIndex(name string) int {
	for i, n := range stageOrder {
		if n == name {
			return i
		}
	}
	return len(stageOrder)
}

// RenderVerification writes an adapter report
func RenderVerification(w io.Writer, r *verifier.Report) error {
	rows := [][]string{
		{"Field", "Value"},
		{"dataset_hash", r.DatasetHash},
		{"aggregate_value", fmt.Sprint(r.AggregateValue)},
		{"aggregate_hash", r.AggregateHash},
		{"row_count", fmt.Sprint(r.RowCount)},
		{"proof_valid", check(r.ProofValid)},
		{"business_rule_satisfied", check(r.BusinessRuleSatisfied)},
		{"cryptographic_guarantee_valid", check(r.CryptographicGuaranteeValid)},
	}
	if r.ProofHash != "" {
		rows = append(rows, []string{"proof_hash", r.ProofHash})
	}
	if !r.InputHashMatches {
		rows = append(rows, []string{"input_hash", pterm.Yellow("differs from input " + r.InputHash)})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, table)

	if r.Success {
		fmt.Fprintln(w, pterm.Green("✓ Verification passed"))
	} else {
		fmt.Fprintf(w, "%s %s\n", pterm.Red("✗ Verification failed:"), r.Error)
	}
	return nil
}

// RenderUsage writes LLM usage statistics
func RenderUsage(w io.Writer, stats *tracker.UsageStats, breakdown []tracker.StageBreakdown) error {
	fmt.Fprintf(w, "%s %d (%.0f%% successful)\n", pterm.LightCyan("Requests:"), stats.TotalRequests, stats.SuccessRate*100)
	fmt.Fprintf(w, "%s %d\n", pterm.LightCyan("Tokens:"), stats.TotalTokens)
	fmt.Fprintf(w, "%s $%.4f across %d models\n", pterm.LightCyan("Cost:"), stats.TotalCost, stats.UniqueModels)
	if len(breakdown) == 0 {
		return nil
	}

	rows := [][]string{{"Stage", "Model", "Requests", "Tokens", "Cost", "Failures"}}
	for _, b := range breakdown {
		rows = append(rows, []string{
			b.Stage, b.ModelName,
			fmt.Sprint(b.RequestCount), fmt.Sprint(b.TotalTokens),
			fmt.Sprintf("$%.4f", b.TotalCost), fmt.Sprint(b.Failures),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, table)
	return nil
}

func check(ok bool) string {
	if ok {
		return pterm.Green("✓")
	}
	return pterm.Red("✗")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
