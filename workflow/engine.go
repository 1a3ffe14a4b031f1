// Package workflow runs a fixed sequence of stages over one dataset and
// turns their verdicts into a Report.
//
// A run is strictly sequential: stage i+1 sees the verdicts of stages 1..i
// and nothing else. Every invocation is recorded as a Step in the run's own
// History. Any non-recoverable error ends the run in StateFailed with a
// report carrying success=false and the error; a failed run never reports
// success. Cancellation is observed between stages only.
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/vgate/am"
	"github.com/teranos/vgate/dataset"
	"github.com/teranos/vgate/decision"
	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/logger"
	"github.com/teranos/vgate/stage"
)

// Options configure a single run
type Options struct {
	// Optional is the set of optional stages to run
	Optional OptionalSet
	// ExpectedSum, when set, is compared with the verified aggregate
	ExpectedSum *int64
	// WorkflowID overrides the generated id
	WorkflowID string
}

// Engine runs a Definition. It is safe for concurrent use; each run owns
// its history and outputs.
type Engine struct {
	def        Definition
	aggregator *decision.Aggregator
	logger     *zap.SugaredLogger
	now        func() time.Time
	newID      func() string
	observer   func(workflowID string, s Step)
}

// EngineOption configures optional engine dependencies
type EngineOption func(*Engine)

// WithLogger sets the engine's logger
func WithLogger(l *zap.SugaredLogger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now, for deterministic execution times in tests
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the workflow id generator
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) { e.newID = gen }
}

// WithObserver is called after every recorded step, on the run's goroutine
func WithObserver(fn func(workflowID string, s Step)) EngineOption {
	return func(e *Engine) { e.observer = fn }
}

// NewEngine creates an engine for def
func NewEngine(def Definition, agg *decision.Aggregator, opts ...EngineOption) *Engine {
	e := &Engine{
		def:        def,
		aggregator: agg,
		now:        time.Now,
		newID:      NewWorkflowID,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.aggregator == nil {
		e.aggregator = decision.New(decision.DefaultPolicy())
	}
	e.logger = logger.OrNop(e.logger)
	return e
}

// NewWorkflowID returns a fresh "wf_<uuid>" id
func NewWorkflowID() string {
	return "wf_" + uuid.NewString()
}

// Definition returns the engine's stage list
func (e *Engine) Definition() Definition { return e.def }

// run is the mutable state of one invocation of RunWorkflow
type run struct {
	id            string
	workflowType  string
	optional      OptionalSet
	state         State
	current       string
	lastCompleted string
	history       History
	outputs       stage.Outputs
	log           *zap.SugaredLogger
}

// RunWorkflow runs every stage of the definition over ds. It never returns
// nil and never panics on stage errors: failures are reported in the Report.
func (e *Engine) RunWorkflow(ctx context.Context, ds *dataset.Dataset, threshold int64, opts Options) *Report {
	r := &run{
		id:       opts.WorkflowID,
		optional: opts.Optional,
		state:    StateIdle,
	}
	if r.id == "" {
		r.id = e.newID()
	}
	r.workflowType = am.WorkflowBasic
	for _, entry := range e.def.Entries {
		if entry.Optional && r.optional.Enabled(entry.Stage.Name()) {
			r.workflowType = am.WorkflowEnhanced
			break
		}
	}

	ctx = logger.WithWorkflowID(ctx, r.id)
	r.log = logger.FromContext(ctx, e.logger)

	if ds == nil {
		return e.fail(r, "", errors.Mark(errors.New("no dataset"), errors.ErrInvalidDataset))
	}
	r.log = r.log.With(logger.FieldDatasetID, ds.Hash(), logger.FieldThreshold, threshold)
	r.log.Infow("workflow started", logger.FieldCount, len(e.def.Entries), "type", r.workflowType)

	// Stages run to completion once started
	stageCtx := context.WithoutCancel(ctx)

	for _, entry := range e.def.Entries {
		name := entry.Stage.Name()

		if err := ctx.Err(); err != nil {
			return e.fail(r, "", errors.Mark(
				errors.Wrapf(err, "workflow cancelled after stage %s", orNone(r.lastCompleted)),
				errors.ErrCancelled))
		}

		if entry.Optional && !r.optional.Enabled(name) {
			r.outputs = r.outputs.With(stage.NotRun(name))
			continue
		}

		r.state, r.current = StateRunning, name
		in := stage.Input{WorkflowID: r.id, Dataset: ds, Threshold: threshold, Prior: r.outputs}

		start := e.now()
		v, err := e.invoke(stageCtx, entry.Stage, in)
		step := Step{
			Name:         name,
			Participants: []string{entry.Stage.Participant()},
			Timestamp:    start,
			Duration:     e.now().Sub(start),
		}

		if err != nil {
			step.Error = newErrorRecord(name, err)
			if entry.Optional && errors.IsStageUnavailable(err) {
				v = stage.Unavailable(name, err)
				step.Verdict = &v
				e.record(r, step)
				r.outputs = r.outputs.With(v)
				r.log.Warnw("optional stage unavailable, continuing", logger.FieldStage, name, logger.FieldError, err)
				continue
			}
			e.record(r, step)
			return e.fail(r, name, err)
		}

		v.Stage = name
		v.Status = stage.StatusCompleted
		step.Verdict = &v
		step.Report = v.Report
		e.record(r, step)
		r.outputs = r.outputs.With(v)
		r.lastCompleted = name

		r.log.Debugw("stage completed",
			logger.FieldStage, name,
			logger.FieldParticipant, entry.Stage.Participant(),
			logger.FieldDurationMS, step.Duration.Milliseconds(),
			logger.FieldDecision, v.Label)
	}

	r.state, r.current = StateCompleted, ""
	return e.complete(r, opts)
}

// invoke runs one stage, converting a panic into an error
func (e *Engine) invoke(ctx context.Context, s stage.Stage, in stage.Input) (v stage.Verdict, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Mark(errors.Newf("stage %s panicked: %v", s.Name(), p), errors.ErrWorkflowFailed)
		}
	}()
	return s.Run(ctx, in)
}

func (e *Engine) record(r *run, s Step) {
	r.history.Append(s)
	if e.observer != nil {
		e.observer(r.id, s)
	}
}

// fail ends the run. Unclassified errors are marked ErrWorkflowFailed.
func (e *Engine) fail(r *run, stageName string, err error) *Report {
	if !errors.IsAny(err, errors.ErrAdapter, errors.ErrStageUnavailable, errors.ErrCancelled, errors.ErrWorkflowFailed) {
		err = errors.Mark(err, errors.ErrWorkflowFailed)
	}
	r.state = StateFailed

	e.record(r, Step{
		Name:         "error",
		Error:        newErrorRecord(stageName, err),
		Participants: []string{stage.System},
		Timestamp:    e.now(),
	})

	r.log.Errorw("workflow failed",
		logger.FieldStage, stageName,
		logger.FieldError, err,
		logger.FieldErrorType, errors.Classify(err),
		"last_completed_stage", r.lastCompleted)

	return &Report{
		WorkflowID:         r.id,
		WorkflowType:       r.workflowType,
		State:              StateFailed,
		Success:            false,
		Error:              err.Error(),
		ErrorType:          errors.Classify(err),
		FailedStage:        stageName,
		LastCompletedStage: r.lastCompleted,
		AgentResults:       r.outputs.Map(),
		Metadata:           e.metadata(r),
	}
}

func (e *Engine) complete(r *run, opts Options) *Report {
	verdicts := r.outputs.Map()
	d := e.aggregator.Decide(verdicts)

	rep := &Report{
		WorkflowID:        r.id,
		WorkflowType:      r.workflowType,
		State:             StateCompleted,
		Success:           d.Accepted(),
		FinalDecision:     d.Label,
		OverallConfidence: d.OverallConfidence,
		AgentResults:      verdicts,
		Metadata:          e.metadata(r),
		DecisionAnalysis: &DecisionAnalysis{
			CriticalFactorsPass: d.CriticalFactorsPass,
			RiskAcceptable:      d.RiskAcceptable,
			Factors:             d.Factors,
			Rationale:           d.Rationale,
		},
	}

	if vr := r.outputs.Report(); vr != nil {
		rep.VerificationGuarantees = &Guarantees{
			DeterministicExecution:  vr.ProofValid,
			CryptographicProof:      vr.ProofValid,
			BusinessLogicCompliance: vr.BusinessRuleSatisfied,
			SnarkProofValid:         vr.CryptographicGuaranteeValid,
		}
		rep.DatasetDetails = &DatasetDetails{
			Hash:           vr.DatasetHash,
			AggregateValue: vr.AggregateValue,
			AggregateHash:  vr.AggregateHash,
			RowCount:       vr.RowCount,
			ProofHash:      vr.ProofHash,
		}
		if opts.ExpectedSum != nil {
			rep.SumValidation = &SumValidation{
				Expected: *opts.ExpectedSum,
				Actual:   vr.AggregateValue,
				Matches:  *opts.ExpectedSum == vr.AggregateValue,
			}
		}
	}

	r.log.Infow("workflow completed",
		logger.FieldDecision, d.Label,
		logger.FieldConfidence, d.OverallConfidence,
		"critical_factors_pass", d.CriticalFactorsPass,
		"risk_acceptable", d.RiskAcceptable)
	return rep
}

func (e *Engine) metadata(r *run) Metadata {
	m := Metadata{
		TotalSteps:     r.history.Len(),
		AgentsInvolved: r.history.Participants(),
		OptionalStages: []string{},
	}
	for _, entry := range e.def.Entries {
		if entry.Optional && r.optional.Enabled(entry.Stage.Name()) {
			m.OptionalStages = append(m.OptionalStages, entry.Stage.Name())
		}
	}
	if started, ok := r.history.Started(); ok {
		m.ExecutionTimeSeconds = e.now().Sub(started).Seconds()
	}
	return m
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
