package stages

import (
	"context"
	"maps"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/vgate/ai/agent"
	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/logger"
	"github.com/teranos/vgate/stage"
)

// persona is the LLM-backed half of a stage
type persona struct {
	stage       string
	asker       agent.Asker
	persona     *Persona
	temperature float64
	logger      *zap.SugaredLogger
}

func newPersona(stageName, participant string, deps Deps) (persona, error) {
	p, err := LookupPersona(participant)
	if err != nil {
		return persona{}, err
	}
	if deps.Asker == nil {
		return persona{}, errors.Newf("stage %s needs an LLM asker", stageName)
	}
	return persona{
		stage:       stageName,
		asker:       deps.Asker,
		persona:     p,
		temperature: deps.Temperature,
		logger:      logger.OrNop(deps.Logger),
	}, nil
}

// ask renders the prompt and queries the model. Any failure to obtain an
// answer is reported as the stage being unavailable.
func (p persona) ask(ctx context.Context, in stage.Input, vars map[string]any) (*agent.Answer, error) {
	user, err := p.persona.Render(vars)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ans, err := p.asker.Ask(ctx, agent.Prompt{
		Stage:       p.stage,
		Persona:     p.persona.Name,
		SystemRole:  p.persona.System,
		UserPrompt:  user,
		Temperature: p.temperature,
		WorkflowID:  in.WorkflowID,
	})
	log := logger.FromContext(ctx, p.logger).With(
		logger.FieldStage, p.stage,
		logger.FieldPersona, p.persona.Name,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	if err != nil {
		log.Warnw("persona unavailable", logger.FieldError, err)
		if !errors.IsStageUnavailable(err) {
			err = errors.StageUnavailable(err, p.stage)
		}
		return nil, err
	}
	if ans == nil {
		return nil, errors.StageUnavailable(errors.New("empty answer"), p.stage)
	}
	log.Debugw("persona answered", logger.FieldConfidence, ans.Confidence)
	return ans, nil
}

// verdict builds the common part of a completed verdict from an answer
func (p persona) verdict(ans *agent.Answer, label stage.Label) stage.Verdict {
	raw := map[string]any{"content": ans.Text}
	maps.Copy(raw, ans.Fields)

	v := stage.Verdict{
		Stage:       p.stage,
		Status:      stage.StatusCompleted,
		Label:       label,
		Rationale:   ans.Rationale,
		NextActions: append([]string(nil), ans.NextActions...),
		Raw:         raw,
	}
	if ans.Confidence != nil && !math.IsNaN(*ans.Confidence) {
		c := clamp(*ans.Confidence)
		v.Confidence = &c
	}
	return v
}

func clamp(f float64) float64 {
	return min(max(f, 0), 1)
}

// reportVars exposes a verifier report to prompt templates
func reportVars(in stage.Input) map[string]any {
	r := in.Prior.Report()
	if r == nil {
		return map[string]any{}
	}
	return map[string]any{
		"success":                       r.Success,
		"proof_valid":                   r.ProofValid,
		"business_rule_satisfied":       r.BusinessRuleSatisfied,
		"cryptographic_guarantee_valid": r.CryptographicGuaranteeValid,
		"aggregate_value":               r.AggregateValue,
		"row_count":                     r.RowCount,
		"dataset_hash":                  r.DatasetHash,
	}
}
