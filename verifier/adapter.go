// Package verifier runs the external deterministic-computation verifier over
// a dataset and turns its textual report into a Report.
//
// Each invocation gets its own temporary working directory holding the
// input file; the process is parameterized through arguments and
// environment only, so concurrent invocations never share files.
package verifier

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/teranos/vgate/am"
	"github.com/teranos/vgate/dataset"
	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/logger"
)

// InputFileName is the name of the dataset file inside the working directory
const InputFileName = "input.csv"

// Environment passed to every invocation
const (
	EnvInput     = "VGATE_VERIFIER_INPUT"
	EnvThreshold = "VGATE_VERIFIER_THRESHOLD"
	EnvWorkdir   = "VGATE_VERIFIER_WORKDIR"
	EnvDevMode   = "RISC0_DEV_MODE"
)

// Config configures an Adapter
type Config struct {
	// Command is split with shell quoting rules, e.g. "cargo run --release --bin host --"
	Command string
	// Args are appended to Command after placeholder expansion:
	// {input}, {threshold} and {workdir}.
	Args      []string
	Timeout   time.Duration
	DevMode   bool
	Exclusive bool
	// MinAvailableMemory refuses to start a proving run (DevMode off) with
	// less available system memory, in bytes. 0 disables the check.
	MinAvailableMemory uint64
	// Env entries (KEY=VALUE) added on top of the parent environment
	Env     []string
	Grammar *Grammar
	Logger  *zap.SugaredLogger
}

// ConfigFromAM maps the verifier section of vgate.toml onto an adapter Config
func ConfigFromAM(c am.VerifierConfig, log *zap.SugaredLogger) Config {
	return Config{
		Command:   c.Command,
		Args:      c.Args,
		Timeout:   time.Duration(c.TimeoutSeconds) * time.Second,
		DevMode:   c.DevMode,
		Exclusive: c.Exclusive,
		Logger:    log,

		MinAvailableMemory: uint64(c.MinAvailableMemoryMB) << 20,
	}
}

// Adapter invokes the verifier. It is safe for concurrent use.
type Adapter struct {
	argv    []string
	args    []string
	timeout time.Duration
	devMode bool
	env     []string
	grammar *Grammar
	logger  *zap.SugaredLogger

	minMemory uint64

	exclusive bool
	mu        sync.Mutex
}

// New validates cfg and returns an Adapter
func New(cfg Config) (*Adapter, error) {
	argv, err := shellquote.Split(cfg.Command)
	if err != nil {
		return nil, errors.Wrapf(err, "parse verifier command %q", cfg.Command)
	}
	if len(argv) == 0 {
		return nil, errors.WithHint(
			errors.New("verifier command is empty"),
			"build the verifier or set verifier.command")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = am.DefaultVerifierTimeout * time.Second
	}
	grammar := cfg.Grammar
	if grammar == nil {
		grammar = DefaultGrammar()
	}

	return &Adapter{
		argv:      argv,
		args:      cfg.Args,
		timeout:   timeout,
		devMode:   cfg.DevMode,
		env:       cfg.Env,
		grammar:   grammar,
		logger:    logger.OrNop(cfg.Logger),
		minMemory: cfg.MinAvailableMemory,
		exclusive: cfg.Exclusive,
	}, nil
}

// Command returns the verifier executable as configured
func (a *Adapter) Command() string { return a.argv[0] }

// Verify runs the verifier over ds with the given threshold.
//
// A dataset that breaks the business rule is not an error: the returned
// Report has Success=false. Verify returns an *AdapterError only when the
// process could not be started, timed out, or exited non-zero without a
// terminal marker. The temporary working directory is removed on every path.
func (a *Adapter) Verify(ctx context.Context, ds *dataset.Dataset, threshold int64) (*Report, error) {
	if a.exclusive {
		a.mu.Lock()
		defer a.mu.Unlock()
	}

	log := logger.FromContext(ctx, a.logger).With(
		logger.FieldDatasetID, ds.Hash(),
		logger.FieldThreshold, threshold,
	)

	if err := a.checkMemory(log); err != nil {
		return nil, err
	}

	workdir, err := os.MkdirTemp("", "vgate-verify-*")
	if err != nil {
		return nil, &AdapterError{Op: OpSetup, Command: a.Command(), Err: errors.Wrap(err, "create working directory")}
	}
	defer func() {
		if err := os.RemoveAll(workdir); err != nil {
			log.Warnw("failed to remove verifier working directory", logger.FieldWorkdir, workdir, logger.FieldError, err)
		}
	}()

	input := filepath.Join(workdir, InputFileName)
	if err := os.WriteFile(input, ds.Bytes(), am.DefaultFilePermissions); err != nil {
		return nil, &AdapterError{Op: OpSetup, Command: a.Command(), Err: errors.Wrap(err, "write verifier input")}
	}

	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	argv := a.expand(input, workdir, threshold)
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = workdir
	cmd.Env = a.environ(input, workdir, threshold)
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debugw("starting verifier", logger.FieldCommand, strings.Join(argv, " "), logger.FieldWorkdir, workdir)
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
			return nil, &AdapterError{Op: OpTimeout, Command: a.Command(), Stderr: stderr.String(),
				Err: errors.Newf("no result after %s", a.timeout)}
		case ctx.Err() != nil:
			return nil, &AdapterError{Op: OpCancel, Command: a.Command(), Stderr: stderr.String(), Err: ctx.Err()}
		case errors.As(runErr, &exitErr):
			exitCode = exitErr.ExitCode()
		default:
			return nil, &AdapterError{Op: OpStart, Command: a.Command(),
				Err: errors.WithHint(runErr, "build the verifier or set verifier.command")}
		}
	}

	parsed := a.grammar.Scan(stdout.String())
	term, hasTerminal := parsed.Terminal()

	log = log.With(logger.FieldExitCode, exitCode, logger.FieldDurationMS, elapsed.Milliseconds())
	if exitCode != 0 && !hasTerminal {
		log.Warnw("verifier exited without terminal marker")
		return nil, &AdapterError{Op: OpExit, Command: a.Command(), ExitCode: exitCode, Stderr: stderr.String()}
	}
	if stderr.Len() > 0 {
		log.Debugw("verifier stderr", "stderr", lastLine(stderr.String()))
	}

	report := a.interpret(parsed, ds, exitCode)
	log.Infow("verifier finished",
		"success", report.Success,
		"terminal", term.Message,
		"business_rule_satisfied", report.BusinessRuleSatisfied)
	return report, nil
}

func (a *Adapter) expand(input, workdir string, threshold int64) []string {
	r := strings.NewReplacer(
		"{input}", input,
		"{threshold}", strconv.FormatInt(threshold, 10),
		"{workdir}", workdir,
	)
	out := make([]string, 0, len(a.argv)+len(a.args))
	for _, s := range a.argv {
		out = append(out, r.Replace(s))
	}
	for _, s := range a.args {
		out = append(out, r.Replace(s))
	}
	return out
}

func (a *Adapter) environ(input, workdir string, threshold int64) []string {
	dev := "0"
	if a.devMode {
		dev = "1"
	}
	env := append(os.Environ(), a.env...)
	return append(env,
		EnvInput+"="+input,
		EnvThreshold+"="+strconv.FormatInt(threshold, 10),
		EnvWorkdir+"="+workdir,
		EnvDevMode+"="+dev,
	)
}

// interpret builds the Report. Missing or malformed required fields are
// zero-valued, listed in Error and force Success=false.
func (a *Adapter) interpret(p *Parsed, ds *dataset.Dataset, exitCode int) *Report {
	r := &Report{ExitCode: exitCode}
	var problems []string

	if v, ok := p.Values[FieldDatasetHash].(string); ok {
		r.DatasetHash = v
	} else {
		r.DatasetHash = ds.Hash()
		r.DatasetHashRecomputed = true
	}
	r.InputHash = ds.Hash()
	r.InputHashMatches = r.DatasetHash == r.InputHash
	r.AggregateValue, _ = p.Values[FieldAggregateValue].(int64)
	r.AggregateHash, _ = p.Values[FieldAggregateHash].(string)
	r.RowCount, _ = p.Values[FieldRowCount].(int64)
	r.ProofValid, _ = p.Values[FieldProofValid].(bool)
	r.BusinessRuleSatisfied, _ = p.Values[FieldBusinessRule].(bool)
	r.CryptographicGuaranteeValid, _ = p.Values[FieldCryptoGuarantee].(bool)
	r.ProofHash, _ = p.Values[FieldProofHash].(string)

	for _, f := range a.grammar.Missing(p) {
		if reason, ok := p.Malformed[f]; ok {
			problems = append(problems, "malformed "+string(f)+": "+reason)
		} else {
			problems = append(problems, "missing "+string(f))
		}
	}

	term, ok := p.Terminal()
	switch {
	case !ok:
	case term.Success:
		r.Terminal = "SUCCESS"
	default:
		r.Terminal = "FAILURE"
		problems = append(problems, "verifier reported failure: "+term.Message)
	}
	if ok && term.Success && exitCode != 0 {
		problems = append(problems, "verifier exited with status "+strconv.Itoa(exitCode))
	}

	r.Success = ok && term.Success && len(problems) == 0
	r.Error = strings.Join(problems, "; ")
	return r
}
