package redraw

import "fmt"

// Event is one decoded UI event. The set of implementations is closed:
// consumers switch on the concrete type.
type Event interface {
	// Name returns the protocol event name.
	Name() string
	isEvent()
}

// SetTitle sets the window title.
type SetTitle struct{ Title string }

// SetIcon sets the icon title.
type SetIcon struct{ Icon string }

// ModeInfo describes cursor presentation for one editor mode.
type ModeInfo struct {
	Name           string
	ShortName      string
	CursorShape    string
	CellPercentage int
	AttrID         int
	BlinkWait      int
	BlinkOn        int
	BlinkOff       int
}

// ModeInfoSet replaces the mode table.
type ModeInfoSet struct {
	CursorStyleEnabled bool
	Modes              []ModeInfo
}

// OptionSet reports a UI option value.
type OptionSet struct {
	Option string
	Value  any
}

// Chdir reports the editor's working directory.
type Chdir struct{ Path string }

// ModeChange reports the current mode by name and index into the mode table.
type ModeChange struct {
	Mode  string
	Index int
}

// MouseOn enables mouse input.
type MouseOn struct{}

// MouseOff disables mouse input.
type MouseOff struct{}

// BusyStart hides the cursor while the editor is busy.
type BusyStart struct{}

// BusyStop ends a busy period.
type BusyStop struct{}

// UpdateMenu signals the menu definitions changed.
type UpdateMenu struct{}

// Flush closes the current batch.
type Flush struct{}

// DefaultColorsSet sets the default foreground, background and special
// colors. RGB values are 24-bit; -1 means unset.
type DefaultColorsSet struct {
	RGBFg   int
	RGBBg   int
	RGBSp   int
	CtermFg int
	CtermBg int
}

// HlAttrs is a decoded highlight attribute dictionary. Colors are -1 when
// absent.
type HlAttrs struct {
	Foreground    int
	Background    int
	Special       int
	Reverse       bool
	Italic        bool
	Bold          bool
	Strikethrough bool
	Underline     bool
	Undercurl     bool
	Underdouble   bool
	Underdotted   bool
	Underdashed   bool
	Blend         int
}

// HlAttrDefine defines highlight id ID.
type HlAttrDefine struct {
	ID    int
	RGB   HlAttrs
	Cterm HlAttrs
}

// HlGroupSet maps a builtin highlight group name to an id.
type HlGroupSet struct {
	Group string
	ID    int
}

// GridResize creates or resizes a grid.
type GridResize struct {
	Grid   int
	Width  int
	Height int
}

// GridClear blanks a grid.
type GridClear struct{ Grid int }

// GridCursorGoto moves the cursor to a grid position.
type GridCursorGoto struct {
	Grid int
	Row  int
	Col  int
}

// Cell is one screen cell after run expansion.
type Cell struct {
	Text string
	HlID int
}

// GridLine writes Cells starting at (Row, ColStart).
type GridLine struct {
	Grid     int
	Row      int
	ColStart int
	Cells    []Cell
	Wrap     bool
}

// GridScroll scrolls the region [Top,Bot) x [Left,Right) by Rows. Positive
// Rows move content up.
type GridScroll struct {
	Grid  int
	Top   int
	Bot   int
	Left  int
	Right int
	Rows  int
	Cols  int
}

// GridDestroy releases a grid.
type GridDestroy struct{ Grid int }

// WinPos positions a normal window.
type WinPos struct {
	Grid     int
	Win      int64
	StartRow int
	StartCol int
	Width    int
	Height   int
}

// Corner is the corner of a float placed at its anchor point.
type Corner int

// Float anchor corners.
const (
	CornerNW Corner = iota
	CornerNE
	CornerSW
	CornerSE
)

// String returns the protocol name of the corner.
func (c Corner) String() string {
	switch c {
	case CornerNW:
		return "NW"
	case CornerNE:
		return "NE"
	case CornerSW:
		return "SW"
	case CornerSE:
		return "SE"
	default:
		return fmt.Sprintf("Corner(%d)", int(c))
	}
}

// ParseCorner parses "NW", "NE", "SW" or "SE".
func ParseCorner(s string) (Corner, error) {
	switch s {
	case "NW":
		return CornerNW, nil
	case "NE":
		return CornerNE, nil
	case "SW":
		return CornerSW, nil
	case "SE":
		return CornerSE, nil
	}
	return 0, fmt.Errorf("unknown anchor %q", s)
}

// WinFloatPos positions a float relative to another grid's window.
type WinFloatPos struct {
	Grid       int
	Win        int64
	Anchor     Corner
	AnchorGrid int
	AnchorRow  float64
	AnchorCol  float64
	Focusable  bool
	ZIndex     int
}

// WinExternalPos displays a grid in an external top-level window.
type WinExternalPos struct {
	Grid int
	Win  int64
}

// WinHide hides a window without closing it.
type WinHide struct{ Grid int }

// WinClose closes a window.
type WinClose struct{ Grid int }

// MsgSetPos places the message grid at Row.
type MsgSetPos struct {
	Grid     int
	Row      int
	Scrolled bool
	SepChar  string
}

// WinViewport reports the visible buffer range of a window.
type WinViewport struct {
	Grid        int
	Win         int64
	Topline     int
	Botline     int
	Curline     int
	Curcol      int
	LineCount   int
	ScrollDelta int
}

// WinViewportMargins reports fixed rows and columns of a window that do not
// scroll with the viewport.
type WinViewportMargins struct {
	Grid   int
	Win    int64
	Top    int
	Bottom int
	Left   int
	Right  int
}

// WinExtmark reports an extmark drawn inside a window.
type WinExtmark struct {
	Grid   int
	Win    int64
	NsID   int
	MarkID int
	Row    int
	Col    int
}

func (SetTitle) Name() string           { return "set_title" }
func (SetIcon) Name() string            { return "set_icon" }
func (ModeInfoSet) Name() string        { return "mode_info_set" }
func (OptionSet) Name() string          { return "option_set" }
func (Chdir) Name() string              { return "chdir" }
func (ModeChange) Name() string         { return "mode_change" }
func (MouseOn) Name() string            { return "mouse_on" }
func (MouseOff) Name() string           { return "mouse_off" }
func (BusyStart) Name() string          { return "busy_start" }
func (BusyStop) Name() string           { return "busy_stop" }
func (UpdateMenu) Name() string         { return "update_menu" }
func (Flush) Name() string              { return "flush" }
func (DefaultColorsSet) Name() string   { return "default_colors_set" }
func (HlAttrDefine) Name() string       { return "hl_attr_define" }
func (HlGroupSet) Name() string         { return "hl_group_set" }
func (GridResize) Name() string         { return "grid_resize" }
func (GridClear) Name() string          { return "grid_clear" }
func (GridCursorGoto) Name() string     { return "grid_cursor_goto" }
func (GridLine) Name() string           { return "grid_line" }
func (GridScroll) Name() string         { return "grid_scroll" }
func (GridDestroy) Name() string        { return "grid_destroy" }
func (WinPos) Name() string             { return "win_pos" }
func (WinFloatPos) Name() string        { return "win_float_pos" }
func (WinExternalPos) Name() string     { return "win_external_pos" }
func (WinHide) Name() string            { return "win_hide" }
func (WinClose) Name() string           { return "win_close" }
func (MsgSetPos) Name() string          { return "msg_set_pos" }
func (WinViewport) Name() string        { return "win_viewport" }
func (WinViewportMargins) Name() string { return "win_viewport_margins" }
func (WinExtmark) Name() string         { return "win_extmark" }

func (SetTitle) isEvent()           {}
func (SetIcon) isEvent()            {}
func (ModeInfoSet) isEvent()        {}
func (OptionSet) isEvent()          {}
func (Chdir) isEvent()              {}
func (ModeChange) isEvent()         {}
func (MouseOn) isEvent()            {}
func (MouseOff) isEvent()           {}
func (BusyStart) isEvent()          {}
func (BusyStop) isEvent()           {}
func (UpdateMenu) isEvent()         {}
func (Flush) isEvent()              {}
func (DefaultColorsSet) isEvent()   {}
func (HlAttrDefine) isEvent()       {}
func (HlGroupSet) isEvent()         {}
func (GridResize) isEvent()         {}
func (GridClear) isEvent()          {}
func (GridCursorGoto) isEvent()     {}
func (GridLine) isEvent()           {}
func (GridScroll) isEvent()         {}
func (GridDestroy) isEvent()        {}
func (WinPos) isEvent()             {}
func (WinFloatPos) isEvent()        {}
func (WinExternalPos) isEvent()     {}
func (WinHide) isEvent()            {}
func (WinClose) isEvent()           {}
func (MsgSetPos) isEvent()          {}
func (WinViewport) isEvent()        {}
func (WinViewportMargins) isEvent() {}
func (WinExtmark) isEvent()         {}
