package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dshills/nvimui/internal/config"
	"github.com/dshills/nvimui/internal/logging"
)

// newLogger builds the root logger from cfg. When cfg.File is set the log
// is appended to that file and the returned closer must be closed on
// shutdown; otherwise fallback receives the output.
func newLogger(cfg config.LoggingConfig, fallback io.Writer) (*logging.Logger, io.Closer, error) {
	out := fallback
	var closer io.Closer

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}
	if out == nil {
		out = os.Stderr
	}

	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(cfg.Level)
	lc.Output = out
	return logging.New(lc), closer, nil
}
