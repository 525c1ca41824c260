package redraw

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dshills/nvimui/internal/rpc"
)

func TestDecodeGridLine_CellRuns(t *testing.T) {
	cells := []any{
		[]any{"a", int8(5), int8(1)},
		[]any{"b"},
		[]any{"c", int8(1)},
	}
	ev, err := DecodeEvent("grid_line", []any{int8(2), int8(0), int8(0), cells, false})
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}

	line := ev.(GridLine)
	want := []Cell{{"a", 5}, {"b", 5}, {"c", 1}}
	if !reflect.DeepEqual(line.Cells, want) {
		t.Errorf("cells = %v, want %v", line.Cells, want)
	}
}

func TestDecodeGridLine_Repeat(t *testing.T) {
	cells := []any{
		[]any{" ", int8(3), int8(4)},
		[]any{"x"},
	}
	ev, err := DecodeEvent("grid_line", []any{1, 3, 10, cells})
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}

	line := ev.(GridLine)
	if line.Grid != 1 || line.Row != 3 || line.ColStart != 10 {
		t.Errorf("position = %d/%d/%d", line.Grid, line.Row, line.ColStart)
	}
	if len(line.Cells) != 5 {
		t.Fatalf("len(cells) = %d, want 5", len(line.Cells))
	}
	for i, c := range line.Cells[:4] {
		if c != (Cell{" ", 3}) {
			t.Errorf("cell %d = %v", i, c)
		}
	}
	if line.Cells[4] != (Cell{"x", 3}) {
		t.Errorf("inherited cell = %v, want hl 3", line.Cells[4])
	}
}

func TestDecodeGridLine_HlScopedToOneEvent(t *testing.T) {
	d := NewDecoder(nil)
	params := []any{
		[]any{"grid_line",
			[]any{1, 0, 0, []any{[]any{"a", 9}}},
			[]any{1, 1, 0, []any{[]any{"b"}}},
		},
	}

	events := d.Decode(params)
	if len(events) != 2 {
		t.Fatalf("decoded %d events, want 2", len(events))
	}
	second := events[1].(GridLine)
	if second.Cells[0].HlID != 0 {
		t.Errorf("hl leaked across grid_line events: %d", second.Cells[0].HlID)
	}
}

func TestDecodeGridLine_MalformedCell(t *testing.T) {
	_, err := DecodeEvent("grid_line", []any{1, 0, 0, []any{[]any{}}})
	if !errors.Is(err, ErrArgument) {
		t.Errorf("error = %v, want ErrArgument", err)
	}

	_, err = DecodeEvent("grid_line", []any{1, 0, 0, []any{[]any{"a", "hl"}}})
	var de *DecodeError
	if !errors.As(err, &de) || de.Arg != 3 {
		t.Errorf("error = %v, want DecodeError on arg 3", err)
	}
}

func TestDecodeGridLine_RepeatBounds(t *testing.T) {
	tests := []struct {
		name  string
		cells []any
		ok    bool
	}{
		{"zero", []any{[]any{"x", 0, 0}, []any{"y"}}, false},
		{"negative", []any{[]any{"x", 0, -3}, []any{"y"}}, false},
		{"huge", []any{[]any{"x", 0, 50000000}}, false},
		{"runs past the cap", []any{[]any{"x", 0, MaxLineCells}, []any{"y"}}, false},
		{"at the cap", []any{[]any{"x", 0, MaxLineCells}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent("grid_line", []any{1, 0, 0, tt.cells})
			if tt.ok {
				if err != nil {
					t.Fatalf("error = %v", err)
				}
				if n := len(ev.(GridLine).Cells); n != MaxLineCells {
					t.Errorf("cells = %d, want %d", n, MaxLineCells)
				}
				return
			}
			var de *DecodeError
			if !errors.As(err, &de) || de.Arg != 3 {
				t.Errorf("error = %v, want DecodeError on arg 3", err)
			}
		})
	}
}

func TestDecoder_MultipleTuplesPerGroup(t *testing.T) {
	d := NewDecoder(nil)
	params := []any{
		[]any{"grid_resize", []any{1, 80, 24}, []any{2, 40, 10}},
		[]any{"flush", []any{}},
	}

	events := d.Decode(params)
	want := []Event{
		GridResize{Grid: 1, Width: 80, Height: 24},
		GridResize{Grid: 2, Width: 40, Height: 10},
		Flush{},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %#v, want %#v", events, want)
	}
}

func TestDecoder_UnknownEventSkipped(t *testing.T) {
	d := NewDecoder(nil)
	params := []any{
		[]any{"hl_future_thing", []any{1, 2}},
		[]any{"grid_clear", []any{1}},
	}

	events := d.Decode(params)
	if len(events) != 1 || events[0] != (GridClear{Grid: 1}) {
		t.Errorf("events = %#v", events)
	}
	if d.Stats().Unknown.Load() != 1 {
		t.Errorf("Unknown = %d, want 1", d.Stats().Unknown.Load())
	}
}

func TestDecoder_BadTupleDoesNotStopBatch(t *testing.T) {
	d := NewDecoder(nil)
	params := []any{
		[]any{"grid_cursor_goto", []any{"one", 0, 0}, []any{1, 2, 3}},
		"garbage",
		[]any{"win_close", 7},
		[]any{"win_hide", []any{4}},
	}

	events := d.Decode(params)
	want := []Event{
		GridCursorGoto{Grid: 1, Row: 2, Col: 3},
		WinHide{Grid: 4},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %#v, want %#v", events, want)
	}
	if got := d.Stats().Errors.Load(); got != 3 {
		t.Errorf("Errors = %d, want 3", got)
	}
}

func TestDecodeWinFloatPos(t *testing.T) {
	ev, err := DecodeEvent("win_float_pos", []any{
		4, rpc.Window(1001), "SE", 2, 1.5, float64(3), false, 60,
	})
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	want := WinFloatPos{
		Grid: 4, Win: 1001, Anchor: CornerSE, AnchorGrid: 2,
		AnchorRow: 1.5, AnchorCol: 3, Focusable: false, ZIndex: 60,
	}
	if ev != want {
		t.Errorf("got %+v, want %+v", ev, want)
	}

	ev, err = DecodeEvent("win_float_pos", []any{4, 1001, "NW", 1, 0, 0})
	if err != nil {
		t.Fatalf("short form error = %v", err)
	}
	float := ev.(WinFloatPos)
	if !float.Focusable || float.ZIndex != defaultFloatZIndex {
		t.Errorf("defaults = focusable %v zindex %d", float.Focusable, float.ZIndex)
	}

	if _, err := DecodeEvent("win_float_pos", []any{4, 1001, "XX", 1, 0, 0}); !errors.Is(err, ErrArgument) {
		t.Errorf("bad anchor error = %v", err)
	}
}

func TestDecodeHlAttrDefine(t *testing.T) {
	ev, err := DecodeEvent("hl_attr_define", []any{
		7,
		map[string]any{"foreground": 0xff0000, "bold": true, "reverse": true},
		map[string]any{},
		[]any{},
	})
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	hl := ev.(HlAttrDefine)
	if hl.ID != 7 || hl.RGB.Foreground != 0xff0000 || !hl.RGB.Bold || !hl.RGB.Reverse {
		t.Errorf("rgb attrs = %+v", hl.RGB)
	}
	if hl.RGB.Background != -1 || hl.Cterm.Foreground != -1 {
		t.Error("absent colors not -1")
	}
}

func TestDecodeModeInfoSet(t *testing.T) {
	ev, err := DecodeEvent("mode_info_set", []any{true, []any{
		map[string]any{"name": "normal", "short_name": "n", "cursor_shape": "block", "attr_id": 0},
		map[string]any{"name": "insert", "short_name": "i", "cursor_shape": "vertical", "cell_percentage": 25},
	}})
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	info := ev.(ModeInfoSet)
	if !info.CursorStyleEnabled || len(info.Modes) != 2 {
		t.Fatalf("info = %+v", info)
	}
	if info.Modes[1].CursorShape != "vertical" || info.Modes[1].CellPercentage != 25 {
		t.Errorf("insert mode = %+v", info.Modes[1])
	}
}

func TestDecodeOptionalTrailingArgs(t *testing.T) {
	ev, err := DecodeEvent("win_viewport", []any{2, 1000, 0, 20, 5, 3})
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	vp := ev.(WinViewport)
	if vp.LineCount != 0 || vp.ScrollDelta != 0 {
		t.Errorf("missing trailing args not defaulted: %+v", vp)
	}

	ev, err = DecodeEvent("msg_set_pos", []any{3, 20})
	if err != nil {
		t.Fatalf("msg_set_pos error = %v", err)
	}
	if ev != (MsgSetPos{Grid: 3, Row: 20}) {
		t.Errorf("msg_set_pos = %+v", ev)
	}
}

func TestDecodeMissingRequiredArg(t *testing.T) {
	_, err := DecodeEvent("win_pos", []any{2, 1000, 0})
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want DecodeError", err)
	}
	if de.Event != "win_pos" || de.Arg != 3 {
		t.Errorf("DecodeError = %+v", de)
	}
}

func TestNames_CoversProtocol(t *testing.T) {
	expected := []string{
		"set_title", "set_icon", "mode_info_set", "option_set", "chdir",
		"mode_change", "mouse_on", "mouse_off", "busy_start", "busy_stop",
		"update_menu", "flush", "default_colors_set", "hl_attr_define",
		"hl_group_set", "grid_resize", "grid_clear", "grid_cursor_goto",
		"grid_line", "grid_scroll", "grid_destroy", "win_pos", "win_float_pos",
		"win_external_pos", "win_hide", "win_close", "msg_set_pos",
		"win_viewport", "win_viewport_margins", "win_extmark",
	}
	names := make(map[string]bool)
	for _, n := range Names() {
		names[n] = true
	}
	for _, n := range expected {
		if !names[n] {
			t.Errorf("no decoder for %s", n)
		}
	}
	if len(names) != len(expected) {
		t.Errorf("Names() has %d entries, want %d", len(names), len(expected))
	}

	// Every decoder reports its own protocol name.
	for _, n := range expected {
		ev, err := DecodeEvent(n, sampleArgs[n])
		if err != nil {
			t.Errorf("%s sample: %v", n, err)
			continue
		}
		if ev.Name() != n {
			t.Errorf("%s decoded to %s", n, ev.Name())
		}
	}
}

var sampleArgs = map[string][]any{
	"set_title":            {"title"},
	"set_icon":             {"icon"},
	"mode_info_set":        {false, []any{}},
	"option_set":           {"guifont", "Mono:h12"},
	"chdir":                {"/tmp"},
	"mode_change":          {"normal", 0},
	"mouse_on":             {},
	"mouse_off":            {},
	"busy_start":           {},
	"busy_stop":            {},
	"update_menu":          {},
	"flush":                {},
	"default_colors_set":   {0, 0xffffff, -1, 0, 0},
	"hl_attr_define":       {1, map[string]any{}, map[string]any{}, []any{}},
	"hl_group_set":         {"Normal", 1},
	"grid_resize":          {1, 80, 24},
	"grid_clear":           {1},
	"grid_cursor_goto":     {1, 0, 0},
	"grid_line":            {1, 0, 0, []any{[]any{"a"}}},
	"grid_scroll":          {1, 0, 24, 0, 80, 1, 0},
	"grid_destroy":         {2},
	"win_pos":              {2, 1000, 0, 0, 80, 23},
	"win_float_pos":        {3, 1001, "NW", 2, 0, 0, true, 50},
	"win_external_pos":     {4, 1002},
	"win_hide":             {2},
	"win_close":            {2},
	"msg_set_pos":          {3, 22, false, ""},
	"win_viewport":         {2, 1000, 0, 23, 0, 0, 100, 0},
	"win_viewport_margins": {2, 1000, 1, 0, 0, 0},
	"win_extmark":          {2, 1000, 1, 1, 0, 0},
}
