// Package stages implements the workflow's stages: the deterministic
// verification step and the LLM-backed personas around it.
package stages

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/vgate/ai/agent"
	"github.com/teranos/vgate/dataset"
	"github.com/teranos/vgate/decision"
	"github.com/teranos/vgate/stage"
	"github.com/teranos/vgate/verifier"
)

// Verifier runs the external deterministic computation
type Verifier interface {
	Verify(ctx context.Context, ds *dataset.Dataset, threshold int64) (*verifier.Report, error)
}

// Deps are the collaborators shared by all stages
type Deps struct {
	Asker       agent.Asker
	Verifier    Verifier
	Aggregator  *decision.Aggregator
	Defaults    Defaults
	Temperature float64
	Logger      *zap.SugaredLogger
}

// Build returns every stage in enhanced workflow order
func Build(deps Deps) ([]stage.Stage, error) {
	if deps.Aggregator == nil {
		deps.Aggregator = decision.New(decision.DefaultPolicy())
	}
	if deps.Defaults == (Defaults{}) {
		deps.Defaults = StandardDefaults()
	}

	builders := []func(Deps) (stage.Stage, error){
		func(d Deps) (stage.Stage, error) { return NewDataQuality(d) },
		func(d Deps) (stage.Stage, error) { return NewAnalysis(d) },
		func(d Deps) (stage.Stage, error) { return NewVerification(d) },
		func(d Deps) (stage.Stage, error) { return NewSecurity(d) },
		func(d Deps) (stage.Stage, error) { return NewBusinessRule(d) },
		func(d Deps) (stage.Stage, error) { return NewReview(d) },
		func(d Deps) (stage.Stage, error) { return NewRisk(d) },
		func(d Deps) (stage.Stage, error) { return NewFinalDecision(d) },
	}

	out := make([]stage.Stage, 0, len(builders))
	for _, build := range builders {
		s, err := build(deps)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
