package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/teranos/vgate/dataset"
	"github.com/teranos/vgate/display"
	"github.com/teranos/vgate/logger"
	"github.com/teranos/vgate/verifier"
)

// VerifyCmd runs the verifier alone
var VerifyCmd = &cobra.Command{
	Use:   "verify <file.csv>",
	Short: "Run the deterministic verifier and print its report",
	Long: `Run the deterministic verifier and print its report, without any LLM stage.

Useful to check the verifier configuration (verifier.command, verifier.args)
before running full workflows. Exits with status 1 unless the report is a
success.

Examples:
  vgate verify sales.csv --threshold 1000
  vgate verify sales.csv --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	VerifyCmd.Flags().Int64("threshold", 0, "Business rule threshold (default from workflow.threshold)")
	VerifyCmd.Flags().String("format", "text", "Output format: text, json, yaml")
}

func runVerify(cmd *cobra.Command, args []string) error {
	format, err := display.ParseFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ds, err := dataset.Resolve(cmd.Context(), args[0], logger.Logger.Named("dataset"))
	if err != nil {
		return err
	}

	adapter, err := verifier.New(verifier.ConfigFromAM(cfg.Verifier, logger.Logger.Named("verifier")))
	if err != nil {
		return err
	}

	threshold := cfg.Workflow.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold, _ = cmd.Flags().GetInt64("threshold")
	}

	rep, err := adapter.Verify(cmd.Context(), ds, threshold)
	if err != nil {
		return err
	}
	if err := display.Output(cmd.OutOrStdout(), format, rep, func(w io.Writer) error {
		return display.RenderVerification(w, rep)
	}); err != nil {
		return err
	}
	if !rep.Success {
		return ErrNotAccepted
	}
	return nil
}
