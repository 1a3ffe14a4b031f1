package agent

import (
	"context"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/teranos/vgate/errors"
)

// Script is the TOML shape of a scripted answer file:
//
//	[answers.csv_analysis]
//	content = "5 rows, 3 columns"
//	confidence = 0.9
//
//	[answers.data_quality]
//	text = '{"content": "clean", "quality_score": 0.92}'
//
// A table may give the structured fields directly or a raw model reply in
// `text`, which is parsed like a live answer. Keys are stage names, falling
// back to persona names and then to [default].
type Script struct {
	Answers map[string]ScriptedAnswer `toml:"answers"`
	Default *ScriptedAnswer           `toml:"default"`
}

// ScriptedAnswer is one canned reply
type ScriptedAnswer struct {
	Answer
	Raw         string `toml:"text"`
	Unavailable bool   `toml:"unavailable"` // Simulate an unreachable model
}

// ScriptedAsker replays canned answers for offline and reproducible runs
type ScriptedAsker struct {
	script Script

	mu    sync.Mutex
	calls []Prompt
}

// NewScriptedAsker creates an asker from an in-memory script
func NewScriptedAsker(script Script) *ScriptedAsker {
	return &ScriptedAsker{script: script}
}

// LoadScript reads a TOML answer file
func LoadScript(path string) (*ScriptedAsker, error) {
	var script Script
	if _, err := toml.DecodeFile(path, &script); err != nil {
		return nil, errors.Wrapf(err, "load scripted answers %s", path)
	}
	return NewScriptedAsker(script), nil
}

// Ask implements Asker
func (s *ScriptedAsker) Ask(_ context.Context, p Prompt) (*Answer, error) {
	s.mu.Lock()
	s.calls = append(s.calls, p)
	s.mu.Unlock()

	sa, ok := s.lookup(p)
	if !ok {
		return nil, errors.StageUnavailable(errors.Newf("no scripted answer for %s", p.Stage), p.Stage)
	}
	if sa.Unavailable {
		return nil, errors.StageUnavailable(errors.New("scripted model unavailable"), p.Stage)
	}

	if sa.Raw != "" {
		return ParseAnswer(sa.Raw), nil
	}

	// Copy so callers never share the script's maps
	ans := sa.Answer
	if sa.Fields != nil {
		ans.Fields = make(map[string]any, len(sa.Fields))
		for k, v := range sa.Fields {
			ans.Fields[k] = v
		}
	}
	ans.NextActions = append([]string(nil), sa.NextActions...)
	return &ans, nil
}

func (s *ScriptedAsker) lookup(p Prompt) (ScriptedAnswer, bool) {
	if sa, ok := s.script.Answers[p.Stage]; ok {
		return sa, true
	}
	if sa, ok := s.script.Answers[p.Persona]; ok {
		return sa, true
	}
	if s.script.Default != nil {
		return *s.script.Default, true
	}
	return ScriptedAnswer{}, false
}

// Calls returns the prompts received so far, in order
func (s *ScriptedAsker) Calls() []Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Prompt(nil), s.calls...)
}
