// Package commands implements the vgate CLI.
package commands

import (
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/vgate/ai/agent"
	"github.com/teranos/vgate/ai/provider"
	"github.com/teranos/vgate/am"
	"github.com/teranos/vgate/db"
	"github.com/teranos/vgate/decision"
	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/logger"
	"github.com/teranos/vgate/stages"
	"github.com/teranos/vgate/verifier"
	"github.com/teranos/vgate/workflow"
)

// ErrNotAccepted is returned when a run completed without an accept
// decision or failed; the report has already been written.
var ErrNotAccepted = errors.New("dataset not accepted")

// loadConfig honors the global --config flag and validates the result
func loadConfig(cmd *cobra.Command) (*am.Config, error) {
	var (
		cfg *am.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = am.LoadFromFile(path)
	} else {
		cfg, err = am.Load()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func verbosity(cmd *cobra.Command) int {
	v, _ := cmd.Flags().GetCount("verbose")
	return v
}

// runtime holds everything a workflow command needs
type runtime struct {
	cfg      *am.Config
	engine   *workflow.Engine
	adapter  *verifier.Adapter
	optional workflow.OptionalSet
	db       *sql.DB
	logger   *zap.SugaredLogger
}

// addWorkflowFlags registers the flags shared by run, batch and watch
func addWorkflowFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("threshold", 0, "Business rule threshold: aggregate must be <= threshold (default from workflow.threshold)")
	cmd.Flags().Bool("all-agents", false, "Enable every optional stage")
	cmd.Flags().Bool("basic", false, "Run the mandatory stages only")
	cmd.Flags().StringSlice("optional", nil, "Optional stages to enable (data_quality, security, business_rule, risk_assessment)")
	cmd.Flags().String("responses", "", "Replay scripted LLM answers from a TOML file instead of calling a provider")
	cmd.Flags().String("format", "text", "Output format: text, json, yaml")
	cmd.MarkFlagsMutuallyExclusive("all-agents", "basic", "optional")
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := logger.Logger
	rt := &runtime{cfg: cfg, logger: log}

	if rt.optional, err = optionalStages(cmd, cfg); err != nil {
		return nil, err
	}

	rt.adapter, err = verifier.New(verifier.ConfigFromAM(cfg.Verifier, log.Named("verifier")))
	if err != nil {
		return nil, err
	}

	asker, err := rt.asker(cmd)
	if err != nil {
		rt.Close()
		return nil, err
	}

	aggregator := decision.New(decision.PolicyFromAM(cfg.Decision))
	list, err := stages.Build(stages.Deps{
		Asker:       asker,
		Verifier:    rt.adapter,
		Aggregator:  aggregator,
		Defaults:    stages.DefaultsFromAM(cfg.StageDefaults),
		Temperature: cfg.Workflow.Temperature,
		Logger:      log.Named("stages"),
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	def, err := workflow.NewDefinition(list...)
	if err != nil {
		rt.Close()
		return nil, err
	}

	opts := []workflow.EngineOption{workflow.WithLogger(log.Named("workflow"))}
	if logger.ShouldOutput(verbosity(cmd), logger.OutputStageProgress) {
		opts = append(opts, workflow.WithObserver(progress(cmd.ErrOrStderr(), verbosity(cmd))))
	}
	rt.engine = workflow.NewEngine(def, aggregator, opts...)

	if logger.ShouldOutput(verbosity(cmd), logger.OutputConfig) {
		log.Debugw("runtime ready",
			"verifier", rt.adapter.Command(),
			"optional_stages", rt.optional,
			"provider", cfg.LLM.Provider,
			"tracking", rt.db != nil)
	}
	return rt, nil
}

// asker replays scripted answers when configured, otherwise calls a provider
func (rt *runtime) asker(cmd *cobra.Command) (agent.Asker, error) {
	responses, _ := cmd.Flags().GetString("responses")
	if responses == "" {
		responses = rt.cfg.Workflow.ResponsesFile
	}
	if responses != "" {
		return agent.LoadScript(responses)
	}

	if path := rt.cfg.Database.Path; path != "" {
		conn, err := db.OpenWithMigrations(path, rt.logger.Named("db"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to open usage database")
		}
		rt.db = conn
	}

	client, err := provider.NewAIClient(rt.cfg, provider.ClientConfig{
		DB:        rt.db,
		Logger:    rt.logger.Named("llm"),
		Verbosity: verbosity(cmd),
	})
	if err != nil {
		return nil, err
	}
	return agent.NewProviderAsker(client, agent.Config{
		RequestsPerMinute: rt.cfg.LLM.RequestsPerMinute,
		Burst:             rt.cfg.LLM.Burst,
		Logger:            rt.logger.Named("agent"),
	}), nil
}

// Close releases the usage database
func (rt *runtime) Close() {
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Warnw("closing usage database", logger.FieldError, err)
		}
		rt.db = nil
	}
}

// threshold returns the --threshold flag or the configured default
func (rt *runtime) threshold(cmd *cobra.Command) int64 {
	if cmd.Flags().Changed("threshold") {
		t, _ := cmd.Flags().GetInt64("threshold")
		return t
	}
	return rt.cfg.Workflow.Threshold
}

func optionalStages(cmd *cobra.Command, cfg *am.Config) (workflow.OptionalSet, error) {
	if all, _ := cmd.Flags().GetBool("all-agents"); all {
		return workflow.AllOptional, nil
	}
	if basic, _ := cmd.Flags().GetBool("basic"); basic {
		return workflow.NoOptional, nil
	}
	if cmd.Flags().Changed("optional") {
		names, _ := cmd.Flags().GetStringSlice("optional")
		return workflow.ParseOptional(names)
	}
	return workflow.ParseOptional(cfg.OptionalStages(workflow.OptionalStages))
}

// progress prints one line per recorded step
func progress(w io.Writer, verbosity int) func(string, workflow.Step) {
	return func(id string, s workflow.Step) {
		status := pterm.Green("✓")
		if s.Error != nil {
			status = pterm.Red("✗ " + s.Error.Message)
		} else if s.Verdict != nil && !s.Verdict.Completed() {
			status = pterm.Yellow(string(s.Verdict.Status))
		}
		line := fmt.Sprintf("🔄 %s %s: %s", pterm.Gray(id), pterm.LightCyan(s.Name), status)
		if logger.ShouldOutput(verbosity, logger.OutputTiming) {
			line += " " + pterm.Gray(s.Duration.Round(time.Millisecond).String())
		}
		fmt.Fprintln(w, line)
	}
}
