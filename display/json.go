package display

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/teranos/vgate/errors"
)

// Format is an output format for command results
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", errors.WithHint(
			errors.Newf("unsupported format: %s", s),
			"supported formats: text, json, yaml")
	}
}

// MarshalJSON marshals v with indentation for human consumption
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// OutputJSON writes v as indented JSON followed by a newline
func OutputJSON(w io.Writer, v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// OutputYAML writes v as YAML. Values are round-tripped through JSON so
// the json tags decide field names and omission.
func OutputYAML(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return errors.Wrap(err, "failed to decode JSON")
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return errors.Wrap(err, "failed to marshal YAML")
	}
	_, err = w.Write(out)
	return err
}

// Output writes v in the given format, calling text for FormatText
func Output(w io.Writer, format Format, v interface{}, text func(io.Writer) error) error {
	switch format {
	case FormatJSON:
		return OutputJSON(w, v)
	case FormatYAML:
		return OutputYAML(w, v)
	default:
		return text(w)
	}
}
