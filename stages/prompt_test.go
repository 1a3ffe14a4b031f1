package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplate(t *testing.T) {
	tests := []struct {
		name         string
		template     string
		wantErr      bool
		placeholders []string
	}{
		{name: "literal only", template: "Hello world"},
		{name: "single placeholder", template: "Rows: {{row_count}}", placeholders: []string{"row_count"}},
		{name: "nested", template: "{{report.success}} and {{ threshold }}", placeholders: []string{"report.success", "threshold"}},
		{name: "empty", template: "  ", wantErr: true},
		{name: "empty path element", template: "{{report..success}}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := ParseTemplate(tt.template)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.placeholders, tmpl.Placeholders())
			assert.Equal(t, tt.template, tmpl.Raw())
		})
	}
}

func TestTemplateExecute(t *testing.T) {
	tmpl, err := ParseTemplate("sum={{report.aggregate_value}} ok={{report.success}} conf={{conf}} h={{headers}} x={{report.missing}}")
	require.NoError(t, err)

	var nilConf *float64
	out, err := tmpl.Execute(map[string]any{
		"report":  map[string]any{"aggregate_value": int64(800), "success": true},
		"conf":    nilConf,
		"headers": []string{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, `sum=800 ok=true conf=unknown h=["a","b"] x=unknown`, out)

	_, err = tmpl.Execute(map[string]any{"report": map[string]any{}})
	assert.Error(t, err, "unknown root variable")

	_, err = tmpl.Execute(map[string]any{"report": 3, "conf": 0.5, "headers": nil})
	assert.Error(t, err, "cannot traverse a scalar")
}

func TestPersonasLoad(t *testing.T) {
	for _, name := range []string{
		ParticipantCSVAnalyzer, ParticipantDataQuality, ParticipantSecurity, ParticipantBusinessRule,
		ParticipantReviewer, ParticipantRisk, ParticipantOrchestrator,
	} {
		p, err := LookupPersona(name)
		require.NoError(t, err, name)
		assert.Contains(t, p.System, "JSON format", name)
		assert.NotEmpty(t, p.Template.Placeholders(), name)
	}

	_, err := LookupPersona(ParticipantVerifier)
	assert.Error(t, err, "the verifier is not an LLM persona")
}
