package loader

import (
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a settings file syntax.
type Format struct {
	Name       string
	Extensions []string

	parse func(source string, data []byte) (map[string]any, error)
}

// Supported formats.
var (
	TOML = Format{Name: "toml", Extensions: []string{".toml"}, parse: parseTOML}
	YAML = Format{Name: "yaml", Extensions: []string{".yaml", ".yml"}, parse: parseYAML}

	// Formats lists every supported format for extension lookup.
	Formats = []Format{TOML, YAML}
)

func parseTOML(source string, data []byte) (map[string]any, error) {
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		perr := &ParseError{Source: source, Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return nil, perr
	}
	return m, nil
}

func parseYAML(source string, data []byte) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	return stringKeys(m), nil
}

// stringKeys rewrites the map[any]any nodes yaml produces for non-string
// keys, so every layer has the same shape.
func stringKeys(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = stringKeysValue(v)
	}
	return m
}

func stringKeysValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return stringKeys(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringKeysValue(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = stringKeysValue(t[i])
		}
		return t
	default:
		return v
	}
}
