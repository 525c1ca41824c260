package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// Env reads settings from prefixed environment variables.
//
// After the prefix, the first word names the section and the remainder
// is the key: NVIMUI_UI_EXT_MULTIGRID sets ui.ext_multigrid. Aliases
// map whole variable names to paths that do not follow that pattern.
type Env struct {
	prefix  string
	aliases map[string]string
	environ func() []string
}

// NewEnv reads variables starting with prefix (e.g. "NVIMUI_") from the
// process environment.
func NewEnv(prefix string) *Env {
	return &Env{
		prefix: prefix,
		aliases: map[string]string{
			prefix + "LOG_LEVEL": "logging.level",
			prefix + "LOG_FILE":  "logging.file",
			prefix + "SERVER":    "remote.address",
			prefix + "NVIM":      "remote.command",
		},
		environ: os.Environ,
	}
}

// NewEnvFrom is NewEnv over a fixed list of KEY=VALUE pairs.
func NewEnvFrom(prefix string, environ []string) *Env {
	e := NewEnv(prefix)
	e.environ = func() []string { return environ }
	return e
}

// Alias maps the variable name to a dotted settings path.
func (e *Env) Alias(name, path string) {
	e.aliases[name] = path
}

// Load implements Source. Variables set to the empty string are kept.
func (e *Env) Load() (map[string]any, error) {
	out := make(map[string]any)
	for _, kv := range e.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, e.prefix) {
			continue
		}
		path, ok := e.aliases[name]
		if !ok {
			path = e.path(name)
		}
		if path != "" {
			set(out, strings.Split(path, "."), parseValue(value))
		}
	}
	return out, nil
}

// path returns the settings path for name, or "" when name has no key
// after the section.
func (e *Env) path(name string) string {
	section, key, _ := strings.Cut(strings.ToLower(strings.TrimPrefix(name, e.prefix)), "_")
	if section == "" || key == "" {
		return ""
	}
	return section + "." + key
}

// parseValue types a variable's text: booleans, integers, decimals, JSON
// arrays and objects, then plain strings.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "":
		return s
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	// "80" stays an integer; only decimals become floats.
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	if s[0] == '[' || s[0] == '{' {
		var v any
		if json.Unmarshal([]byte(s), &v) == nil {
			return v
		}
	}
	return s
}

func set(m map[string]any, path []string, value any) {
	for _, part := range path[:len(path)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}
