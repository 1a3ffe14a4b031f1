package commands

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/vgate/ai/tracker"
	"github.com/teranos/vgate/db"
	"github.com/teranos/vgate/display"
	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/logger"
)

// UsageCmd shows recorded LLM usage
var UsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show LLM usage statistics",
	Long: `Show LLM usage statistics recorded by workflow runs.

Usage is tracked only when database.path is set. Each stage prompt is one
request, recorded with the stage name and the workflow id.

Examples:
  vgate usage
  vgate usage --since 24h --format json`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func init() {
	UsageCmd.Flags().Duration("since", 7*24*time.Hour, "Only include requests newer than this")
	UsageCmd.Flags().String("format", "text", "Output format: text, json, yaml")
}

type usageOutput struct {
	Since  time.Time                `json:"since"`
	Stats  *tracker.UsageStats      `json:"stats"`
	Stages []tracker.StageBreakdown `json:"stages"`
}

func runUsage(cmd *cobra.Command, args []string) error {
	format, err := display.ParseFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.Path == "" {
		return errors.WithHint(
			errors.New("usage tracking is disabled"),
			"set database.path in vgate.toml or VGATE_DATABASE_PATH")
	}

	conn, err := db.OpenWithMigrations(cfg.Database.Path, logger.Logger.Named("db"))
	if err != nil {
		return err
	}
	defer conn.Close()

	window, _ := cmd.Flags().GetDuration("since")
	since := time.Now().Add(-window)

	t := tracker.NewUsageTracker(conn, verbosity(cmd))
	stats, err := t.GetUsageStats(since)
	if err != nil {
		return err
	}
	breakdown, err := t.GetStageBreakdown(since)
	if err != nil {
		return err
	}

	out := usageOutput{Since: since, Stats: stats, Stages: breakdown}
	return display.Output(cmd.OutOrStdout(), format, out, func(w io.Writer) error {
		return display.RenderUsage(w, stats, breakdown)
	})
}
