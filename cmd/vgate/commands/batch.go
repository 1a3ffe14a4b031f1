package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teranos/vgate/dataset"
	"github.com/teranos/vgate/display"
	"github.com/teranos/vgate/logger"
	"github.com/teranos/vgate/workflow"
)

// BatchCmd runs independent workflows in parallel
var BatchCmd = &cobra.Command{
	Use:   "batch <file.csv>...",
	Short: "Run independent workflows over several CSV files",
	Long: `Run independent workflows over several CSV files.

Each file gets its own run, history and verifier working directory. At most
workflow.batch_concurrency runs are in flight (override with --concurrency).
The command exits with status 1 unless every dataset is accepted.

Examples:
  vgate batch q1.csv q2.csv q3.csv
  vgate batch data/*.csv --concurrency 8 --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	addWorkflowFlags(BatchCmd)
	BatchCmd.Flags().Int("concurrency", 0, "Parallel runs (default from workflow.batch_concurrency)")
}

// batchResult pairs a file with its report for output
type batchResult struct {
	File   string           `json:"file"`
	Report *workflow.Report `json:"report"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	format, err := display.ParseFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}

	// Load every file before starting any run
	jobs := make([]workflow.Job, 0, len(args))
	for _, path := range args {
		ds, err := dataset.Resolve(cmd.Context(), path, logger.Logger.Named("dataset"))
		if err != nil {
			return err
		}
		jobs = append(jobs, workflow.Job{Name: path, Dataset: ds})
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	threshold := rt.threshold(cmd)
	for i := range jobs {
		jobs[i].Threshold = threshold
		jobs[i].Options = workflow.Options{Optional: rt.optional}
	}

	concurrency := rt.cfg.Workflow.BatchConcurrency
	if cmd.Flags().Changed("concurrency") {
		concurrency, _ = cmd.Flags().GetInt("concurrency")
	}

	reports, runErr := workflow.RunBatch(cmd.Context(), rt.engine, jobs, concurrency)

	results := make([]batchResult, 0, len(jobs))
	accepted := 0
	for i, rep := range reports {
		if rep == nil {
			continue
		}
		if rep.Accepted() {
			accepted++
		}
		results = append(results, batchResult{File: jobs[i].Name, Report: rep})
	}

	err = display.Output(cmd.OutOrStdout(), format, results, func(w io.Writer) error {
		for _, r := range results {
			fmt.Fprintf(w, "%s  %s\n", r.File, display.Status(r.Report))
		}
		fmt.Fprintf(w, "%d of %d accepted\n", accepted, len(jobs))
		return nil
	})
	if err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if accepted != len(jobs) {
		return ErrNotAccepted
	}
	return nil
}
