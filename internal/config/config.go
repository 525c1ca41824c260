// Package config provides the nvimui configuration.
//
// Configuration is resolved in layers, higher layers overriding lower:
//
//	command line flags
//	NVIMUI_* environment variables
//	config file (TOML or YAML, chosen by extension)
//	built-in defaults
//
// The file and environment layers are read into maps by the loader
// package, merged, and decoded over Default().
//
//	# nvimui.toml
//	[remote]
//	command = "nvim"
//	args = ["--embed"]
//
//	[ui]
//	width = 120
//	height = 40
//	ext_multigrid = true
//
//	[logging]
//	level = "debug"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/nvimui/internal/config/loader"
	"github.com/dshills/nvimui/internal/logging"
)

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = "NVIMUI_"

// Config is the complete application configuration.
type Config struct {
	Remote  RemoteConfig  `toml:"remote"`
	UI      UIConfig      `toml:"ui"`
	Logging LoggingConfig `toml:"logging"`
	Trace   TraceConfig   `toml:"trace"`
}

// RemoteConfig selects the editor to drive. Address wins over Command.
type RemoteConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Address string   `toml:"address"`
	Env     []string `toml:"env"`
	WorkDir string   `toml:"workdir"`
}

// UIConfig is the attach-time UI geometry and feature set.
type UIConfig struct {
	Width      int     `toml:"width"`
	Height     int     `toml:"height"`
	CellWidth  float64 `toml:"cell_width"`
	CellHeight float64 `toml:"cell_height"`

	ExtMultigrid bool `toml:"ext_multigrid"`
	ExtCmdline   bool `toml:"ext_cmdline"`
	ExtMessages  bool `toml:"ext_messages"`
	RGB          bool `toml:"rgb"`

	// ForceCloseOnDestroy closes a grid's window when the grid is
	// destroyed without a win_close.
	ForceCloseOnDestroy bool `toml:"force_close_on_destroy"`
}

// LoggingConfig configures the logger. An empty File logs to stderr.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// TraceConfig configures session recording. An empty Record disables it.
type TraceConfig struct {
	Record string `toml:"record"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Remote: RemoteConfig{
			Command: "nvim",
			Args:    []string{"--embed"},
		},
		UI: UIConfig{
			Width:               80,
			Height:              24,
			CellWidth:           1,
			CellHeight:          1,
			ExtMultigrid:        true,
			RGB:                 true,
			ForceCloseOnDestroy: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load resolves defaults, the file at path (if path is non-empty and the
// file exists) and the process environment, then validates the result.
func Load(path string) (*Config, error) {
	return LoadWith(loader.DefaultFS(), path, loader.NewEnv(EnvPrefix))
}

// LoadWith is Load with an explicit file system and environment source.
func LoadWith(fsys loader.FileSystem, path string, env loader.Source) (*Config, error) {
	var layers []map[string]any

	if path != "" {
		file, err := loader.ForPath(fsys, path)
		if err != nil {
			return nil, err
		}
		m, err := file.Load()
		if err != nil {
			return nil, err
		}
		layers = append(layers, m)
	}

	if env != nil {
		m, err := env.Load()
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		layers = append(layers, m)
	}

	cfg := Default()
	if err := cfg.Apply(loader.Merge(layers...)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply decodes a settings map over c. Keys absent from m keep their
// value; unknown keys are an error.
func (c *Config) Apply(m map[string]any) error {
	if len(m) == 0 {
		return nil
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("unknown settings:\n%s", strict.String())
		}
		return fmt.Errorf("decoding settings: %w", err)
	}
	return nil
}

// ApplyEnv overlays NVIMUI_* variables from environ onto c.
func (c *Config) ApplyEnv(environ []string) error {
	m, err := loader.NewEnvFrom(EnvPrefix, environ).Load()
	if err != nil {
		return err
	}
	return c.Apply(m)
}

// ValidationError lists every invalid setting.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks c for values the application cannot run with.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Remote.Address == "" && c.Remote.Command == "" {
		add("remote: one of command or address is required")
	}
	if c.UI.Width <= 0 || c.UI.Height <= 0 {
		add("ui: size %dx%d must be positive", c.UI.Width, c.UI.Height)
	}
	if c.UI.CellWidth <= 0 || c.UI.CellHeight <= 0 {
		add("ui: cell size %gx%g must be positive", c.UI.CellWidth, c.UI.CellHeight)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		add("logging: unknown level %q", c.Logging.Level)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
