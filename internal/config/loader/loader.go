// Package loader reads configuration sources into generic settings maps.
//
// A settings file is parsed by the Format its extension selects. The
// environment is mapped onto dotted section paths by Env. Layers are
// combined with Merge; decoding into typed configuration is left to the
// config package.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Source produces one layer of settings. A source with nothing to
// contribute returns nil, nil.
type Source interface {
	Load() (map[string]any, error)
}

// FileSystem reads whole files.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
}

// OSFS reads from the operating system.
type OSFS struct{}

// ReadFile implements FileSystem.
func (OSFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// DefaultFS returns the operating system file system.
func DefaultFS() FileSystem {
	return OSFS{}
}

// File is a settings file in a known format.
type File struct {
	fsys   FileSystem
	path   string
	format Format
}

// NewFile returns a source for path parsed as format.
func NewFile(fsys FileSystem, path string, format Format) *File {
	if fsys == nil {
		fsys = DefaultFS()
	}
	return &File{fsys: fsys, path: path, format: format}
}

// ForPath returns a source for path with the format its extension names.
func ForPath(fsys FileSystem, path string) (*File, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range Formats {
		if slices.Contains(f.Extensions, ext) {
			return NewFile(fsys, path, f), nil
		}
	}
	return nil, fmt.Errorf("unsupported config format %q", ext)
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Format returns the file's format.
func (f *File) Format() Format {
	return f.format
}

// Load reads and parses the file. A missing file contributes nothing.
func (f *File) Load() (map[string]any, error) {
	data, err := f.fsys.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return f.format.parse(f.path, data)
}

// Parse reads settings in format from r. Errors name the source "<input>".
func Parse(format Format, r io.Reader) (map[string]any, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return format.parse("<input>", buf.Bytes())
}

// ParseError locates a syntax error in a settings file. Line and Column
// are 1-based, or 0 when the parser did not report them.
type ParseError struct {
	Source string
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	loc := e.Source
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
		if e.Column > 0 {
			loc = fmt.Sprintf("%s:%d", loc, e.Column)
		}
	}
	return fmt.Sprintf("%s: %v", loc, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Merge combines layers into a new map, later layers winning. Nested
// maps are merged key by key; any other value replaces the earlier one.
// The layers are not modified.
func Merge(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		mergeInto(out, layer)
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for key, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[key] = v
			continue
		}
		existing, ok := dst[key].(map[string]any)
		if !ok {
			existing = make(map[string]any, len(sub))
			dst[key] = existing
		}
		mergeInto(existing, sub)
	}
}
