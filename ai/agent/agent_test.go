package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vgate/ai/openrouter"
	"github.com/teranos/vgate/errors"
)

type fakeClient struct {
	content string
	err     error
	got     []openrouter.ChatRequest
}

func (f *fakeClient) Chat(_ context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return &openrouter.ChatResponse{Content: f.content}, nil
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		text       string
		confidence *float64
		fields     map[string]any
	}{
		{
			name: "plain text",
			raw:  "The data looks fine.",
			text: "The data looks fine.",
		},
		{
			name:       "structured",
			raw:        `{"content": "ok", "reasoning": "sum matches", "confidence": 0.95, "next_actions": ["ship"]}`,
			text:       "ok",
			confidence: ptr(0.95),
		},
		{
			name:       "code fence with extras",
			raw:        "```json\n{\"content\": \"clean\", \"quality_score\": 0.9, \"confidence\": \"0.7\"}\n```",
			text:       "clean",
			confidence: ptr(0.7),
			fields:     map[string]any{"quality_score": 0.9},
		},
		{
			name: "non-finite confidence is dropped",
			raw:  `{"content": "ok", "confidence": "NaN"}`,
			text: "ok",
		},
		{
			name: "infinite confidence is dropped",
			raw:  `{"content": "ok", "confidence": "+Inf"}`,
			text: "ok",
		},
		{
			name: "broken json stays text",
			raw:  `{"content": "oops"`,
			text: `{"content": "oops"`,
		},
		{
			name: "non-string content is re-encoded",
			raw:  `{"content": {"rows": 5}}`,
			text: `{"rows":5}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans := ParseAnswer(tt.raw)
			assert.Equal(t, tt.text, ans.Text)
			assert.Equal(t, tt.confidence, ans.Confidence)
			assert.Equal(t, tt.fields, ans.Fields)
		})
	}
}

func TestAnswerAccessors(t *testing.T) {
	ans := ParseAnswer(`{"content": "x", "risk_level": "low", "mitigation_required": true, "quality_score": "0.8"}`)

	level, ok := ans.String("risk_level")
	assert.True(t, ok)
	assert.Equal(t, "low", level)

	mitigation, ok := ans.Bool("mitigation_required")
	assert.True(t, ok)
	assert.True(t, mitigation)

	score, ok := ans.Float("quality_score")
	assert.True(t, ok)
	assert.Equal(t, 0.8, score)

	_, ok = (*Answer)(nil).Float("x")
	assert.False(t, ok)
}

func TestProviderAsker_Ask(t *testing.T) {
	client := &fakeClient{content: `{"content": "accept", "confidence": 0.9}`}
	asker := NewProviderAsker(client, Config{RequestsPerMinute: 600, Burst: 2})

	ans, err := asker.Ask(context.Background(), Prompt{
		Stage:       "verification_review",
		Persona:     "verification_agent",
		SystemRole:  "You review proofs.",
		UserPrompt:  "Review.",
		Temperature: 0.1,
		WorkflowID:  "wf_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "accept", ans.Text)

	require.Len(t, client.got, 1)
	req := client.got[0]
	assert.Equal(t, "verification_review", req.OperationType)
	assert.Equal(t, "wf_1", req.EntityID)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.1, *req.Temperature)
}

func TestProviderAsker_FailureIsStageUnavailable(t *testing.T) {
	asker := NewProviderAsker(&fakeClient{err: errors.New("401 unauthorized")}, Config{})

	_, err := asker.Ask(context.Background(), Prompt{Stage: "security", Persona: "security_assessor"})
	require.Error(t, err)
	assert.True(t, errors.IsStageUnavailable(err))
	assert.Contains(t, err.Error(), "401 unauthorized")
}

func TestProviderAsker_CancelledWhileWaiting(t *testing.T) {
	asker := NewProviderAsker(&fakeClient{content: "x"}, Config{RequestsPerMinute: 1})
	_, err := asker.Ask(context.Background(), Prompt{Stage: "a"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = asker.Ask(ctx, Prompt{Stage: "b"})
	assert.True(t, errors.IsStageUnavailable(err))
}

func TestScriptedAsker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.toml")
	script := `
[answers.csv_analysis]
content = "5 rows"
confidence = 0.9
next_actions = ["verify"]

[answers.csv_analysis.fields]
predicted_sum = 800

[answers.data_quality]
text = '{"content": "clean", "quality_score": 0.92}'

[answers.security]
unavailable = true

[answers.risk_assessor]
content = "low risk"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0644))

	asker, err := LoadScript(path)
	require.NoError(t, err)
	ctx := context.Background()

	ans, err := asker.Ask(ctx, Prompt{Stage: "csv_analysis"})
	require.NoError(t, err)
	assert.Equal(t, "5 rows", ans.Text)
	require.NotNil(t, ans.Confidence)
	assert.Equal(t, 0.9, *ans.Confidence)
	predicted, ok := ans.Float("predicted_sum")
	assert.True(t, ok)
	assert.Equal(t, 800.0, predicted)

	ans, err = asker.Ask(ctx, Prompt{Stage: "data_quality"})
	require.NoError(t, err)
	score, _ := ans.Float("quality_score")
	assert.Equal(t, 0.92, score)

	_, err = asker.Ask(ctx, Prompt{Stage: "security"})
	assert.True(t, errors.IsStageUnavailable(err))

	ans, err = asker.Ask(ctx, Prompt{Stage: "risk_assessment", Persona: "risk_assessor"})
	require.NoError(t, err)
	assert.Equal(t, "low risk", ans.Text)

	_, err = asker.Ask(ctx, Prompt{Stage: "final_decision"})
	assert.True(t, errors.IsStageUnavailable(err))

	assert.Len(t, asker.Calls(), 5)
}

func TestScriptedAsker_Default(t *testing.T) {
	asker := NewScriptedAsker(Script{Default: &ScriptedAnswer{Answer: Answer{Text: "fallback"}}})
	ans, err := asker.Ask(context.Background(), Prompt{Stage: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", ans.Text)
}

func ptr(f float64) *float64 { return &f }
