package redraw

import (
	"errors"
	"fmt"

	"github.com/dshills/nvimui/internal/rpc"
)

// Errors returned while decoding redraw payloads.
var (
	// ErrUnknownEvent indicates an event name missing from the decode table.
	ErrUnknownEvent = errors.New("unknown redraw event")

	// ErrArgument indicates an argument with the wrong type or arity.
	ErrArgument = errors.New("bad redraw argument")
)

// DecodeError reports which argument of which event failed to decode.
type DecodeError struct {
	Event string
	Arg   int
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s arg %d: %v", e.Event, e.Arg, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// args reads typed values out of one event's argument tuple. The first
// failure is kept and every later read returns a zero value, so decode
// functions read all fields and check err once.
type args struct {
	event string
	vals  []any
	err   error
}

func (a *args) fail(i int, format string, v ...any) {
	if a.err == nil {
		a.err = &DecodeError{
			Event: a.event,
			Arg:   i,
			Err:   fmt.Errorf("%w: %s", ErrArgument, fmt.Sprintf(format, v...)),
		}
	}
}

func (a *args) get(i int) (any, bool) {
	if a.err != nil {
		return nil, false
	}
	if i >= len(a.vals) {
		a.fail(i, "missing (have %d)", len(a.vals))
		return nil, false
	}
	return a.vals[i], true
}

func (a *args) has(i int) bool {
	return i < len(a.vals)
}

func (a *args) int(i int) int {
	v, ok := a.get(i)
	if !ok {
		return 0
	}
	n, ok := rpc.AsInt64(v)
	if !ok {
		a.fail(i, "want integer, got %T", v)
		return 0
	}
	return int(n)
}

func (a *args) handle(i int) int64 {
	v, ok := a.get(i)
	if !ok {
		return 0
	}
	n, ok := rpc.AsInt64(v)
	if !ok {
		a.fail(i, "want handle, got %T", v)
		return 0
	}
	return n
}

func (a *args) optInt(i, def int) int {
	if !a.has(i) || a.vals[i] == nil {
		return def
	}
	return a.int(i)
}

func (a *args) float(i int) float64 {
	v, ok := a.get(i)
	if !ok {
		return 0
	}
	switch f := v.(type) {
	case float64:
		return f
	case float32:
		return float64(f)
	}
	n, ok := rpc.AsInt64(v)
	if !ok {
		a.fail(i, "want number, got %T", v)
		return 0
	}
	return float64(n)
}

func (a *args) str(i int) string {
	v, ok := a.get(i)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	a.fail(i, "want string, got %T", v)
	return ""
}

func (a *args) optStr(i int, def string) string {
	if !a.has(i) || a.vals[i] == nil {
		return def
	}
	return a.str(i)
}

func (a *args) bool(i int) bool {
	v, ok := a.get(i)
	if !ok {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	a.fail(i, "want boolean, got %T", v)
	return false
}

func (a *args) optBool(i int, def bool) bool {
	if !a.has(i) || a.vals[i] == nil {
		return def
	}
	return a.bool(i)
}

func (a *args) array(i int) []any {
	v, ok := a.get(i)
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		a.fail(i, "want array, got %T", v)
		return nil
	}
	return arr
}

func (a *args) dict(i int) map[string]any {
	v, ok := a.get(i)
	if !ok {
		return nil
	}
	m, ok := asDict(v)
	if !ok {
		a.fail(i, "want map, got %T", v)
		return nil
	}
	return m
}

func asDict(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

func dictInt(m map[string]any, key string, def int) int {
	if v, ok := m[key]; ok {
		if n, ok := rpc.AsInt64(v); ok {
			return int(n)
		}
	}
	return def
}

func dictStr(m map[string]any, key string) string {
	switch s := m[key].(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

func dictBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}
