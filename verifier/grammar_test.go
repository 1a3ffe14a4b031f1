package verifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/vgate/dataset"
)

// hostPassOutput is what the zkVM host prints for the sample dataset at threshold 1000
const hostPassOutput = `🚀 Starting RISC Zero CSV Processing Demo
==========================================
🤖 Agent A: Processing CSV file: input.csv
📊 CSV hash: "5e2bf57d3f40c4b6df69daf1936cb766f832374b4fc0259a7cbff06e2f70f269"
⚡ Generating zkVM proof...
✅ Proof generated successfully!

📋 Receipt Summary:
  - Receipt generated successfully
🔍 Agent B: Verifying receipt and checking business invariant...
🔐 Receipt verification: PASSED
📈 Extracted result:
  - CSV hash: 5e2bf57d3f40c4b6df69daf1936cb766f832374b4fc0259a7cbff06e2f70f269
  - Column A sum: 800
  - Column A hash: 1a1cf797fabe7f95836fabeca626907c77b3e6c9aff7c2290b396a238c69362e
  - Entry count: 5
💼 Business invariant (sum <= 1000): PASSED

🎯 Final Results:
==================
✅ zkVM Proof verification: true
✅ Business invariant: true
📊 Column A sum: 800 (threshold: 1000)
🎉 SUCCESS: All checks passed!
   - ✅ Deterministic execution proven with RISC Zero zkVM
`

const hostFailOutput = `📊 CSV hash: "5e2bf57d3f40c4b6df69daf1936cb766f832374b4fc0259a7cbff06e2f70f269"
🔐 Receipt verification: PASSED
  - Column A sum: 800
  - Column A hash: 1a1cf797fabe7f95836fabeca626907c77b3e6c9aff7c2290b396a238c69362e
  - Entry count: 5
💼 Business invariant (sum <= 500): FAILED
✅ Business invariant: false
❌ FAILURE: Some checks failed!
`

func testAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := New(Config{Command: "true"})
	require.NoError(t, err)
	return a
}

func TestScan_HostOutput(t *testing.T) {
	p := DefaultGrammar().Scan(hostPassOutput)

	assert.Equal(t, "5e2bf57d3f40c4b6df69daf1936cb766f832374b4fc0259a7cbff06e2f70f269", p.Values[FieldDatasetHash])
	assert.Equal(t, int64(800), p.Values[FieldAggregateValue])
	assert.Equal(t, int64(5), p.Values[FieldRowCount])
	assert.Equal(t, true, p.Values[FieldProofValid])
	assert.Equal(t, true, p.Values[FieldBusinessRule])
	assert.False(t, p.Has(FieldCryptoGuarantee))

	term, ok := p.Terminal()
	require.True(t, ok)
	assert.True(t, term.Success)
	assert.Equal(t, "All checks passed!", term.Message)
	assert.Empty(t, DefaultGrammar().Missing(p))
}

func TestScan_OverlongLine(t *testing.T) {
	receipt := "debug: receipt " + strings.Repeat("ab", 1<<20) + "\n"
	out := strings.Replace(hostPassOutput, "⚡ Generating zkVM proof...\n", receipt, 1)

	p := DefaultGrammar().Scan(out)
	assert.Empty(t, DefaultGrammar().Missing(p))
	assert.Equal(t, int64(800), p.Values[FieldAggregateValue])

	term, ok := p.Terminal()
	require.True(t, ok)
	assert.True(t, term.Success)
}

func TestScan_NoTrailingNewline(t *testing.T) {
	p := DefaultGrammar().Scan("Column A sum: 10\r\nSUCCESS: done")
	assert.Equal(t, int64(10), p.Values[FieldAggregateValue])
	term, ok := p.Terminal()
	require.True(t, ok)
	assert.Equal(t, "done", term.Message)
}

func TestScan_FirstOccurrenceWins(t *testing.T) {
	out := "Column A sum: 10\nColumn A sum: 20\nBusiness invariant (sum <= 5): FAILED\nBusiness invariant: true\n"
	p := DefaultGrammar().Scan(out)
	assert.Equal(t, int64(10), p.Values[FieldAggregateValue])
	assert.Equal(t, false, p.Values[FieldBusinessRule])
}

func TestScan_MalformedThenValid(t *testing.T) {
	p := DefaultGrammar().Scan("Entry count: many\nEntry count: 3\nColumn A hash: not-hex\n")
	assert.Equal(t, int64(3), p.Values[FieldRowCount])
	assert.NotContains(t, p.Malformed, FieldRowCount)
	assert.Contains(t, p.Malformed, FieldAggregateHash)
}

func TestScan_CustomRulePanics(t *testing.T) {
	g := &Grammar{Rules: []Rule{{
		Prefix: "Boom:",
		Field:  FieldProofHash,
		Parse:  func(string) (any, error) { panic("bad parser") },
	}}}
	var p *Parsed
	assert.NotPanics(t, func() { p = g.Scan("Boom: 1\n") })
	assert.Contains(t, p.Malformed[FieldProofHash], "panic")
}

func TestParseMarker(t *testing.T) {
	tests := []struct {
		in   string
		want any
		err  bool
	}{
		{"PASSED", true, false},
		{"true", true, false},
		{"FAILED", false, false},
		{"false.", false, false},
		{"maybe", nil, true},
		{"", nil, true},
	}
	for _, tt := range tests {
		v, err := parseMarker(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, v, tt.in)
	}
}

func TestInterpret(t *testing.T) {
	ds := dataset.New("s.csv", []byte("column_a\n100\n"))
	a := testAdapter(t)

	tests := []struct {
		name        string
		output      string
		exitCode    int
		success     bool
		rule        bool
		errContains []string
		recomputed  bool
	}{
		{
			name:    "host success",
			output:  hostPassOutput,
			success: true,
			rule:    true,
		},
		{
			name:        "business rule violated",
			output:      hostFailOutput,
			exitCode:    1,
			errContains: []string{"verifier reported failure"},
		},
		{
			name:        "no terminal marker",
			output:      "Column A sum: 800\n",
			errContains: []string{"missing terminal", "missing row_count"},
			recomputed:  true,
		},
		{
			name:        "malformed hash recomputed",
			output:      "CSV hash: \"zz\"\nColumn A sum: 800\nSUCCESS: ok\n",
			errContains: []string{"malformed dataset_hash"},
			recomputed:  true,
		},
		{
			name:        "empty output",
			output:      "",
			errContains: []string{"missing dataset_hash", "missing terminal"},
			recomputed:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := a.interpret(a.grammar.Scan(tt.output), ds, tt.exitCode)

			assert.Equal(t, tt.success, r.Success)
			assert.Equal(t, tt.rule, r.BusinessRuleSatisfied)
			assert.Equal(t, tt.exitCode, r.ExitCode)
			assert.Equal(t, tt.recomputed, r.DatasetHashRecomputed)
			assert.NotEmpty(t, r.DatasetHash, "a report always carries a dataset hash")
			if tt.recomputed {
				assert.Equal(t, ds.Hash(), r.DatasetHash)
			}
			if tt.success {
				assert.Empty(t, r.Error)
			}
			for _, s := range tt.errContains {
				assert.Contains(t, r.Error, s)
			}
		})
	}
}

func TestInterpret_SuccessMarkerWithNonZeroExit(t *testing.T) {
	a := testAdapter(t)
	r := a.interpret(a.grammar.Scan(hostPassOutput), dataset.New("", nil), 3)
	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "status 3")
}
