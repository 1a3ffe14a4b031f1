package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/teranos/vgate/dataset"
	"github.com/teranos/vgate/display"
	"github.com/teranos/vgate/logger"
	"github.com/teranos/vgate/workflow"
)

// RunCmd runs one workflow
var RunCmd = &cobra.Command{
	Use:   "run <file.csv|url>",
	Short: "Run the verification workflow over one CSV file",
	Long: `Run the verification workflow over one CSV file.

The verifier computes the aggregate of the first column and checks it against
the threshold; the LLM stages review its report. The command exits with
status 1 unless the final decision is accept. The dataset may be a local
path or a remote source such as an https:// or s3:: URL.

Examples:
  vgate run sales.csv
  vgate run sales.csv --threshold 500 --format json
  vgate run sales.csv --optional security,risk_assessment
  vgate run sales.csv --expected-sum 800
  vgate run https://example.com/exports/q1.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	addWorkflowFlags(RunCmd)
	RunCmd.Flags().Int64("expected-sum", 0, "Compare the verified aggregate with this value (informational)")
}

func runRun(cmd *cobra.Command, args []string) error {
	format, err := display.ParseFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}
	ds, err := dataset.Resolve(cmd.Context(), args[0], logger.Logger.Named("dataset"))
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := workflow.Options{Optional: rt.optional}
	if cmd.Flags().Changed("expected-sum") {
		expected, _ := cmd.Flags().GetInt64("expected-sum")
		opts.ExpectedSum = &expected
	}

	rep := rt.engine.RunWorkflow(cmd.Context(), ds, rt.threshold(cmd), opts)
	if err := display.Output(cmd.OutOrStdout(), format, rep, func(w io.Writer) error {
		return display.RenderReport(w, rep)
	}); err != nil {
		return err
	}
	if !rep.Accepted() {
		return ErrNotAccepted
	}
	return nil
}

func mustString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return s
}
