package commands

import (
	"context"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/teranos/vgate/dataset"
	"github.com/teranos/vgate/display"
	"github.com/teranos/vgate/logger"
	"github.com/teranos/vgate/watch"
	"github.com/teranos/vgate/workflow"
)

// WatchCmd runs a workflow for every CSV written to a directory
var WatchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Run a workflow for every CSV created or changed in a directory",
	Long: `Run a workflow for every CSV created or changed in a directory.

Rapid writes to one file are debounced into a single run. Runs for different
files proceed in parallel up to workflow.batch_concurrency. Stop with Ctrl-C;
runs already started finish first.

Examples:
  vgate watch ./incoming
  vgate watch ./incoming --format json --basic`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	addWorkflowFlags(WatchCmd)
	WatchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before a changed file is processed")
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := display.ParseFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	threshold := rt.threshold(cmd)
	limit := make(chan struct{}, max(rt.cfg.Workflow.BatchConcurrency, 1))
	var outMu sync.Mutex
	out := cmd.OutOrStdout()

	handle := func(ctx context.Context, path string) error {
		ds, err := dataset.Load(path)
		if err != nil {
			return err
		}

		limit <- struct{}{}
		defer func() { <-limit }()

		rep := rt.engine.RunWorkflow(ctx, ds, threshold, workflow.Options{Optional: rt.optional})

		outMu.Lock()
		defer outMu.Unlock()
		return display.Output(out, format, rep, func(w io.Writer) error {
			if _, err := io.WriteString(w, path+"\n"); err != nil {
				return err
			}
			return display.RenderReport(w, rep)
		})
	}

	debounce, _ := cmd.Flags().GetDuration("debounce")
	w, err := watch.New(args[0], handle, watch.WithDebounce(debounce), watch.WithLogger(logger.Logger.Named("watch")))
	if err != nil {
		return err
	}
	return w.Run(cmd.Context())
}
