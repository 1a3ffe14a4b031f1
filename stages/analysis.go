package stages

import (
	"context"

	"github.com/teranos/vgate/stage"
)

const sampleRows = 3

// Analysis computes the dataset's structure and asks the analyzer persona to
// interpret it and predict the column A sum.
type Analysis struct {
	persona
}

// NewAnalysis creates the csv_analysis stage
func NewAnalysis(deps Deps) (*Analysis, error) {
	p, err := newPersona(stage.CSVAnalysis, ParticipantCSVAnalyzer, deps)
	if err != nil {
		return nil, err
	}
	return &Analysis{persona: p}, nil
}

func (s *Analysis) Name() string        { return stage.CSVAnalysis }
func (s *Analysis) Participant() string { return ParticipantCSVAnalyzer }

func (s *Analysis) Run(ctx context.Context, in stage.Input) (stage.Verdict, error) {
	st, err := in.Dataset.Analyze()
	if err != nil {
		return stage.Verdict{}, err
	}

	ans, err := s.ask(ctx, in, map[string]any{
		"headers":     st.Headers,
		"row_count":   st.RowCount,
		"sample_rows": head(st.Preview, sampleRows),
	})
	if err != nil {
		return stage.Verdict{}, err
	}

	v := s.verdict(ans, stage.Inconclusive)
	v.Raw["csv_stats"] = map[string]any{
		"headers":   st.Headers,
		"row_count": st.RowCount,
		"columns":   st.ColumnCount,
	}
	if predicted, ok := ans.Float("predicted_sum"); ok {
		v.Raw["predicted_column_a_sum"] = predicted
	}
	return v, nil
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
