// Package redraw decodes the payload of "redraw" notifications into typed
// UI events.
//
// A redraw notification carries a list of event groups:
//
//	[[name, args1, args2, ...], [name, args1, ...], ...]
//
// Each argsN tuple produces one Event. Unknown event names are skipped and
// a bad tuple is dropped without affecting its neighbours.
package redraw

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/dshills/nvimui/internal/logging"
)

// decodeFunc builds one event from an argument tuple.
type decodeFunc func(a *args) Event

// decoders is the static dispatch table from event name to constructor.
var decoders = map[string]decodeFunc{
	"set_title":            decodeSetTitle,
	"set_icon":             decodeSetIcon,
	"mode_info_set":        decodeModeInfoSet,
	"option_set":           decodeOptionSet,
	"chdir":                decodeChdir,
	"mode_change":          decodeModeChange,
	"mouse_on":             func(*args) Event { return MouseOn{} },
	"mouse_off":            func(*args) Event { return MouseOff{} },
	"busy_start":           func(*args) Event { return BusyStart{} },
	"busy_stop":            func(*args) Event { return BusyStop{} },
	"update_menu":          func(*args) Event { return UpdateMenu{} },
	"flush":                func(*args) Event { return Flush{} },
	"default_colors_set":   decodeDefaultColorsSet,
	"hl_attr_define":       decodeHlAttrDefine,
	"hl_group_set":         decodeHlGroupSet,
	"grid_resize":          decodeGridResize,
	"grid_clear":           decodeGridClear,
	"grid_cursor_goto":     decodeGridCursorGoto,
	"grid_line":            decodeGridLine,
	"grid_scroll":          decodeGridScroll,
	"grid_destroy":         decodeGridDestroy,
	"win_pos":              decodeWinPos,
	"win_float_pos":        decodeWinFloatPos,
	"win_external_pos":     decodeWinExternalPos,
	"win_hide":             decodeWinHide,
	"win_close":            decodeWinClose,
	"msg_set_pos":          decodeMsgSetPos,
	"win_viewport":         decodeWinViewport,
	"win_viewport_margins": decodeWinViewportMargins,
	"win_extmark":          decodeWinExtmark,
}

// Names returns the decodable event names in sorted order.
func Names() []string {
	names := make([]string, 0, len(decoders))
	for name := range decoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats counts decode outcomes.
type Stats struct {
	Events  atomic.Uint64
	Unknown atomic.Uint64
	Errors  atomic.Uint64
}

// Decoder turns redraw notification params into events.
type Decoder struct {
	log   *logging.Logger
	stats Stats
}

// NewDecoder creates a decoder. l may be nil.
func NewDecoder(l *logging.Logger) *Decoder {
	return &Decoder{log: logging.OrNull(l).WithComponent("redraw")}
}

// Stats returns the decoder counters.
func (d *Decoder) Stats() *Stats {
	return &d.stats
}

// Decode decodes every event in params, in order. Failures are logged and
// skipped; the returned slice holds everything that decoded cleanly.
func (d *Decoder) Decode(params []any) []Event {
	var events []Event

	for i, raw := range params {
		group, ok := raw.([]any)
		if !ok || len(group) == 0 {
			d.stats.Errors.Add(1)
			d.log.Warn("redraw group %d is %T, skipping", i, raw)
			continue
		}

		name, ok := group[0].(string)
		if !ok {
			if b, isBytes := group[0].([]byte); isBytes {
				name, ok = string(b), true
			}
		}
		if !ok {
			d.stats.Errors.Add(1)
			d.log.Warn("redraw group %d has %T name, skipping", i, group[0])
			continue
		}

		fn, ok := decoders[name]
		if !ok {
			d.stats.Unknown.Add(1)
			d.log.Debug("%v: %s", ErrUnknownEvent, name)
			continue
		}

		for j, tuple := range group[1:] {
			vals, ok := tuple.([]any)
			if !ok {
				d.stats.Errors.Add(1)
				d.log.Warn("%s args %d is %T, skipping", name, j, tuple)
				continue
			}

			ev, err := decodeOne(name, fn, vals)
			if err != nil {
				d.stats.Errors.Add(1)
				d.log.Warn("skipping event: %v", err)
				continue
			}
			d.stats.Events.Add(1)
			events = append(events, ev)
		}
	}

	return events
}

// DecodeEvent decodes a single argument tuple for the named event.
func DecodeEvent(name string, vals []any) (Event, error) {
	fn, ok := decoders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
	return decodeOne(name, fn, vals)
}

func decodeOne(name string, fn decodeFunc, vals []any) (ev Event, err error) {
	// A panic inside a decoder drops only this event.
	defer func() {
		if r := recover(); r != nil {
			ev = nil
			err = &DecodeError{Event: name, Arg: -1, Err: fmt.Errorf("%w: %v", ErrArgument, r)}
		}
	}()

	a := &args{event: name, vals: vals}
	ev = fn(a)
	if a.err != nil {
		return nil, a.err
	}
	return ev, nil
}

func decodeSetTitle(a *args) Event {
	return SetTitle{Title: a.str(0)}
}

func decodeSetIcon(a *args) Event {
	return SetIcon{Icon: a.str(0)}
}

func decodeModeInfoSet(a *args) Event {
	ev := ModeInfoSet{CursorStyleEnabled: a.bool(0)}
	for i, raw := range a.array(1) {
		m, ok := asDict(raw)
		if !ok {
			a.fail(1, "mode %d is %T", i, raw)
			break
		}
		ev.Modes = append(ev.Modes, ModeInfo{
			Name:           dictStr(m, "name"),
			ShortName:      dictStr(m, "short_name"),
			CursorShape:    dictStr(m, "cursor_shape"),
			CellPercentage: dictInt(m, "cell_percentage", 0),
			AttrID:         dictInt(m, "attr_id", 0),
			BlinkWait:      dictInt(m, "blinkwait", 0),
			BlinkOn:        dictInt(m, "blinkon", 0),
			BlinkOff:       dictInt(m, "blinkoff", 0),
		})
	}
	return ev
}

func decodeOptionSet(a *args) Event {
	ev := OptionSet{Option: a.str(0)}
	if v, ok := a.get(1); ok {
		ev.Value = v
	}
	return ev
}

func decodeChdir(a *args) Event {
	return Chdir{Path: a.str(0)}
}

func decodeModeChange(a *args) Event {
	return ModeChange{Mode: a.str(0), Index: a.int(1)}
}

func decodeDefaultColorsSet(a *args) Event {
	return DefaultColorsSet{
		RGBFg:   a.int(0),
		RGBBg:   a.int(1),
		RGBSp:   a.int(2),
		CtermFg: a.int(3),
		CtermBg: a.int(4),
	}
}

func decodeHlAttrs(m map[string]any) HlAttrs {
	return HlAttrs{
		Foreground:    dictInt(m, "foreground", -1),
		Background:    dictInt(m, "background", -1),
		Special:       dictInt(m, "special", -1),
		Reverse:       dictBool(m, "reverse"),
		Italic:        dictBool(m, "italic"),
		Bold:          dictBool(m, "bold"),
		Strikethrough: dictBool(m, "strikethrough"),
		Underline:     dictBool(m, "underline"),
		Undercurl:     dictBool(m, "undercurl"),
		Underdouble:   dictBool(m, "underdouble"),
		Underdotted:   dictBool(m, "underdotted"),
		Underdashed:   dictBool(m, "underdashed"),
		Blend:         dictInt(m, "blend", 0),
	}
}

func decodeHlAttrDefine(a *args) Event {
	ev := HlAttrDefine{ID: a.int(0)}
	ev.RGB = decodeHlAttrs(a.dict(1))
	ev.Cterm = decodeHlAttrs(a.dict(2))
	return ev
}

func decodeHlGroupSet(a *args) Event {
	return HlGroupSet{Group: a.str(0), ID: a.int(1)}
}

func decodeGridResize(a *args) Event {
	ev := GridResize{Grid: a.int(0), Width: a.int(1), Height: a.int(2)}
	if ev.Width < 0 || ev.Height < 0 {
		a.fail(1, "negative size %dx%d", ev.Width, ev.Height)
	}
	return ev
}

func decodeGridClear(a *args) Event {
	return GridClear{Grid: a.int(0)}
}

func decodeGridCursorGoto(a *args) Event {
	return GridCursorGoto{Grid: a.int(0), Row: a.int(1), Col: a.int(2)}
}

// decodeGridLine expands cell runs. A cell is [text], [text, hl] or
// [text, hl, repeat]; a cell without hl reuses the last hl seen in this
// grid_line, starting from 0.
// MaxLineCells bounds the cells one grid_line event may expand to.
const MaxLineCells = math.MaxUint16

func decodeGridLine(a *args) Event {
	ev := GridLine{
		Grid:     a.int(0),
		Row:      a.int(1),
		ColStart: a.int(2),
		Wrap:     a.optBool(4, false),
	}
	cells := a.array(3)
	if a.err != nil {
		return ev
	}

	ev.Cells = make([]Cell, 0, len(cells))
	hl := 0
	for i, raw := range cells {
		cell, ok := raw.([]any)
		if !ok || len(cell) < 1 || len(cell) > 3 {
			a.fail(3, "cell %d is malformed: %v", i, raw)
			return ev
		}

		ca := &args{event: a.event, vals: cell}
		text := ca.str(0)
		if len(cell) >= 2 {
			hl = ca.int(1)
		}
		repeat := 1
		if len(cell) == 3 {
			repeat = ca.int(2)
		}
		if ca.err != nil {
			var de *DecodeError
			errors.As(ca.err, &de)
			a.fail(3, "cell %d element %d malformed", i, de.Arg)
			return ev
		}

		if repeat < 1 {
			a.fail(3, "cell %d has repeat %d", i, repeat)
			return ev
		}
		if len(ev.Cells)+repeat > MaxLineCells {
			a.fail(3, "cell %d expands the line past %d cells", i, MaxLineCells)
			return ev
		}
		for r := 0; r < repeat; r++ {
			ev.Cells = append(ev.Cells, Cell{Text: text, HlID: hl})
		}
	}
	return ev
}

func decodeGridScroll(a *args) Event {
	return GridScroll{
		Grid:  a.int(0),
		Top:   a.int(1),
		Bot:   a.int(2),
		Left:  a.int(3),
		Right: a.int(4),
		Rows:  a.int(5),
		Cols:  a.int(6),
	}
}

func decodeGridDestroy(a *args) Event {
	return GridDestroy{Grid: a.int(0)}
}

func decodeWinPos(a *args) Event {
	return WinPos{
		Grid:     a.int(0),
		Win:      a.handle(1),
		StartRow: a.int(2),
		StartCol: a.int(3),
		Width:    a.int(4),
		Height:   a.int(5),
	}
}

// defaultFloatZIndex is the editor's default zindex for floats that do not
// report one.
const defaultFloatZIndex = 50

func decodeWinFloatPos(a *args) Event {
	ev := WinFloatPos{
		Grid:       a.int(0),
		Win:        a.handle(1),
		AnchorGrid: a.int(3),
		AnchorRow:  a.float(4),
		AnchorCol:  a.float(5),
		Focusable:  a.optBool(6, true),
		ZIndex:     a.optInt(7, defaultFloatZIndex),
	}
	anchor := a.str(2)
	if a.err == nil {
		corner, err := ParseCorner(anchor)
		if err != nil {
			a.fail(2, "%v", err)
		}
		ev.Anchor = corner
	}
	return ev
}

func decodeWinExternalPos(a *args) Event {
	return WinExternalPos{Grid: a.int(0), Win: a.handle(1)}
}

func decodeWinHide(a *args) Event {
	return WinHide{Grid: a.int(0)}
}

func decodeWinClose(a *args) Event {
	return WinClose{Grid: a.int(0)}
}

func decodeMsgSetPos(a *args) Event {
	return MsgSetPos{
		Grid:     a.int(0),
		Row:      a.int(1),
		Scrolled: a.optBool(2, false),
		SepChar:  a.optStr(3, ""),
	}
}

func decodeWinViewport(a *args) Event {
	return WinViewport{
		Grid:        a.int(0),
		Win:         a.handle(1),
		Topline:     a.int(2),
		Botline:     a.int(3),
		Curline:     a.int(4),
		Curcol:      a.int(5),
		LineCount:   a.optInt(6, 0),
		ScrollDelta: a.optInt(7, 0),
	}
}

func decodeWinViewportMargins(a *args) Event {
	return WinViewportMargins{
		Grid:   a.int(0),
		Win:    a.handle(1),
		Top:    a.int(2),
		Bottom: a.int(3),
		Left:   a.int(4),
		Right:  a.int(5),
	}
}

func decodeWinExtmark(a *args) Event {
	return WinExtmark{
		Grid:   a.int(0),
		Win:    a.handle(1),
		NsID:   a.int(2),
		MarkID: a.int(3),
		Row:    a.int(4),
		Col:    a.int(5),
	}
}
