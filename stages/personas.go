package stages

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/teranos/vgate/errors"
)

// Participant names, one per persona
const (
	ParticipantCSVAnalyzer  = "csv_analyzer"
	ParticipantDataQuality  = "data_quality_agent"
	ParticipantVerifier     = "zk_verifier"
	ParticipantSecurity     = "security_agent"
	ParticipantBusinessRule = "business_logic_agent"
	ParticipantReviewer     = "verification_agent"
	ParticipantRisk         = "risk_assessment_agent"
	ParticipantOrchestrator = "orchestrator"
)

//go:embed personas.toml
var personasTOML string

// Persona is a system role plus the user prompt template for one participant
type Persona struct {
	Name     string
	System   string
	Template *Template
}

// Render fills the persona's template
func (p *Persona) Render(vars map[string]any) (string, error) {
	out, err := p.Template.Execute(vars)
	if err != nil {
		return "", errors.Wrapf(err, "render %s prompt", p.Name)
	}
	return strings.TrimSpace(out), nil
}

type personaFile struct {
	System   string `toml:"system"`
	Template string `toml:"template"`
}

var (
	personasOnce sync.Once
	personas     map[string]*Persona
	personasErr  error
)

// LookupPersona returns the embedded persona for a participant
func LookupPersona(name string) (*Persona, error) {
	personasOnce.Do(func() {
		personas, personasErr = parsePersonas(personasTOML)
	})
	if personasErr != nil {
		return nil, personasErr
	}
	p, ok := personas[name]
	if !ok {
		return nil, errors.Newf("unknown persona %q", name)
	}
	return p, nil
}

func parsePersonas(src string) (map[string]*Persona, error) {
	var raw map[string]toml.Primitive
	md, err := toml.Decode(src, &raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode personas")
	}

	var format string
	if prim, ok := raw["response_format"]; ok {
		if err := md.PrimitiveDecode(prim, &format); err != nil {
			return nil, errors.Wrap(err, "decode response_format")
		}
	}

	out := make(map[string]*Persona, len(raw))
	for name, prim := range raw {
		if name == "response_format" {
			continue
		}
		var pf personaFile
		if err := md.PrimitiveDecode(prim, &pf); err != nil {
			return nil, errors.Wrapf(err, "decode persona %s", name)
		}
		tmpl, err := ParseTemplate(pf.Template)
		if err != nil {
			return nil, errors.Wrapf(err, "persona %s", name)
		}
		out[name] = &Persona{
			Name:     name,
			System:   strings.TrimSpace(pf.System) + "\n\n" + strings.TrimSpace(format),
			Template: tmpl,
		}
	}
	return out, nil
}
