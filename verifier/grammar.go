package verifier

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Field names a value the grammar extracts from verifier output.
type Field string

const (
	FieldDatasetHash     Field = "dataset_hash"
	FieldAggregateValue  Field = "aggregate_value"
	FieldAggregateHash   Field = "aggregate_hash"
	FieldRowCount        Field = "row_count"
	FieldProofValid      Field = "proof_valid"
	FieldBusinessRule    Field = "business_rule_satisfied"
	FieldCryptoGuarantee Field = "cryptographic_guarantee_valid"
	FieldProofHash       Field = "proof_hash"
	FieldTerminal        Field = "terminal"
)

// Terminal is the value of a SUCCESS:/FAILURE: line
type Terminal struct {
	Success bool
	Message string
}

// Rule maps a literal line prefix to a field.
//
// Lines are normalized before matching: leading decoration (emoji, bullets,
// dashes, indentation) is stripped. When Prefix does not itself end in a
// colon, the value is whatever follows the first colon after it, so
// "Business invariant (sum <= 1000): PASSED" yields "PASSED".
type Rule struct {
	Prefix string
	Field  Field
	Parse  func(value string) (any, error)
}

// Grammar is an ordered rule table. The first rule whose prefix matches a
// line claims it.
type Grammar struct {
	Rules []Rule
	// Required fields are reported in Report.Error when absent or malformed
	Required []Field
}

// DefaultGrammar recognizes the report format printed by the zkVM host and by
// vgate-devverifier.
func DefaultGrammar() *Grammar {
	return &Grammar{
		Rules: []Rule{
			{Prefix: "CSV hash:", Field: FieldDatasetHash, Parse: parseHash},
			{Prefix: "Dataset hash:", Field: FieldDatasetHash, Parse: parseHash},
			{Prefix: "Column A sum:", Field: FieldAggregateValue, Parse: parseInt},
			{Prefix: "Aggregate value:", Field: FieldAggregateValue, Parse: parseInt},
			{Prefix: "Column A hash:", Field: FieldAggregateHash, Parse: parseHash},
			{Prefix: "Aggregate hash:", Field: FieldAggregateHash, Parse: parseHash},
			{Prefix: "Entry count:", Field: FieldRowCount, Parse: parseInt},
			{Prefix: "Row count:", Field: FieldRowCount, Parse: parseInt},
			{Prefix: "Receipt verification:", Field: FieldProofValid, Parse: parseMarker},
			{Prefix: "Business invariant", Field: FieldBusinessRule, Parse: parseMarker},
			{Prefix: "Custom SNARK verification:", Field: FieldCryptoGuarantee, Parse: parseMarker},
			{Prefix: "SNARK proof hash:", Field: FieldProofHash, Parse: parseHash},
			{Prefix: "SUCCESS:", Field: FieldTerminal, Parse: terminal(true)},
			{Prefix: "FAILURE:", Field: FieldTerminal, Parse: terminal(false)},
		},
		Required: []Field{
			FieldDatasetHash,
			FieldAggregateValue,
			FieldAggregateHash,
			FieldRowCount,
			FieldProofValid,
			FieldBusinessRule,
			FieldTerminal,
		},
	}
}

// Parsed holds the values extracted from one output
type Parsed struct {
	Values map[Field]any
	// Malformed lists fields that only ever appeared with unparsable values
	Malformed map[Field]string
}

// Has reports whether f was extracted
func (p *Parsed) Has(f Field) bool {
	_, ok := p.Values[f]
	return ok
}

// Terminal returns the terminal marker, if one was printed
func (p *Parsed) Terminal() (Terminal, bool) {
	t, ok := p.Values[FieldTerminal].(Terminal)
	return t, ok
}

// Missing lists required fields without a value, in grammar order
func (g *Grammar) Missing(p *Parsed) []Field {
	var out []Field
	for _, f := range g.Required {
		if !p.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Scan extracts field values from output. The first well-formed occurrence of
// a field wins; lines that match no rule are ignored. Scan never panics, even
// with a custom rule whose Parse does.
func (g *Grammar) Scan(output string) (p *Parsed) {
	p = &Parsed{Values: map[Field]any{}, Malformed: map[Field]string{}}

	// No line length limit: hosts may dump whole receipts on one line
	for raw := range strings.Lines(output) {
		line := normalize(raw)
		if line == "" {
			continue
		}
		for _, rule := range g.Rules {
			if !strings.HasPrefix(line, rule.Prefix) {
				continue
			}
			if !p.Has(rule.Field) {
				g.apply(p, rule, line)
			}
			break
		}
	}
	for f := range p.Values {
		delete(p.Malformed, f)
	}
	return p
}

func (g *Grammar) apply(p *Parsed, rule Rule, line string) {
	defer func() {
		if r := recover(); r != nil {
			p.Malformed[rule.Field] = fmt.Sprintf("parser panic: %v", r)
		}
	}()

	value, ok := valueAfter(line, rule.Prefix)
	if !ok {
		p.Malformed[rule.Field] = fmt.Sprintf("no value in %q", line)
		return
	}
	v, err := rule.Parse(value)
	if err != nil {
		p.Malformed[rule.Field] = err.Error()
		return
	}
	p.Values[rule.Field] = v
}

func normalize(line string) string {
	line = strings.TrimRightFunc(line, unicode.IsSpace)
	return strings.TrimLeftFunc(line, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func valueAfter(line, prefix string) (string, bool) {
	rest := line[len(prefix):]
	if !strings.HasSuffix(prefix, ":") {
		i := strings.IndexByte(rest, ':')
		if i < 0 {
			return "", false
		}
		rest = rest[i+1:]
	}
	return strings.TrimSpace(rest), true
}

func parseHash(s string) (any, error) {
	s = strings.ToLower(strings.Trim(strings.TrimSpace(s), `"'`))
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	if s == "" {
		return nil, fmt.Errorf("empty hash")
	}
	if _, err := hex.DecodeString(s); err != nil {
		return nil, fmt.Errorf("hash %q is not hex", s)
	}
	return s, nil
}

func parseInt(s string) (any, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty number")
	}
	v, err := strconv.ParseInt(strings.TrimRight(fields[0], ",;."), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not an integer", fields[0])
	}
	return v, nil
}

func parseMarker(s string) (any, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty marker")
	}
	switch strings.ToUpper(strings.Trim(fields[0], ".!,")) {
	case "PASSED", "PASS", "TRUE", "YES", "OK", "VALID":
		return true, nil
	case "FAILED", "FAIL", "FALSE", "NO", "INVALID":
		return false, nil
	}
	return nil, fmt.Errorf("unknown marker %q", fields[0])
}

func terminal(success bool) func(string) (any, error) {
	return func(s string) (any, error) {
		return Terminal{Success: success, Message: s}, nil
	}
}
