package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teranos/vgate/am"
	"github.com/teranos/vgate/cmd/vgate/commands"
	"github.com/teranos/vgate/display"
	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/logger"
)

var rootCmd = &cobra.Command{
	Use:   "vgate",
	Short: "vgate - verification-gated dataset approval",
	Long: `vgate - verification-gated dataset approval.

vgate runs a dataset through a fixed sequence of stages: LLM analysts around
one deterministic verifier whose output is the only source of truth for the
aggregate and the business rule. The verdicts are combined into a single
accept or reject decision.

Available commands:
  run     - Run the workflow over one CSV file
  batch   - Run independent workflows over several files
  watch   - Run a workflow for every CSV written to a directory
  verify  - Run the verifier only and print its report
  am      - Show and validate configuration
  usage   - Show LLM usage statistics

Examples:
  vgate run sales.csv --threshold 1000
  vgate run sales.csv --basic --format json
  vgate run sales.csv --responses replay.toml
  vgate batch q1.csv q2.csv q3.csv
  vgate verify sales.csv -vvv`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; it must be read before the configuration
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrap(err, "failed to load .env")
		}
		display.ConfigureColor()

		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		if !cmd.Flags().Changed("log-json") {
			jsonLogs = am.GetViper().GetBool("log.json")
		}
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().String("config", "", "Read configuration from this file instead of the vgate.toml cascade")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.BatchCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.VerifyCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.UsageCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	// Cancellation takes effect between stages; a running stage finishes
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		// A rejected dataset has already been reported
		if !errors.Is(err, commands.ErrNotAccepted) {
			fmt.Fprintln(os.Stderr, err)
			if hint := errors.FlattenHints(err); hint != "" {
				fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
			}
		}
		os.Exit(1)
	}
}
