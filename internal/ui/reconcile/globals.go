package reconcile

import (
	"maps"
	"slices"

	"github.com/dshills/nvimui/internal/redraw"
)

// Globals is editor-wide UI state that is not tied to a grid or window.
type Globals struct {
	Title string
	Icon  string
	Cwd   string

	CursorStyleEnabled bool
	Modes              []redraw.ModeInfo
	Mode               string
	ModeIndex          int

	Options map[string]any

	Mouse     bool
	Busy      bool
	MenuDirty bool
}

func newGlobals() Globals {
	return Globals{Options: make(map[string]any)}
}

// Clone returns a copy that shares nothing with g.
func (g Globals) Clone() Globals {
	g.Modes = slices.Clone(g.Modes)
	g.Options = maps.Clone(g.Options)
	return g
}

// CurrentMode returns the mode table entry for the current mode.
func (g Globals) CurrentMode() (redraw.ModeInfo, bool) {
	if g.ModeIndex < 0 || g.ModeIndex >= len(g.Modes) {
		return redraw.ModeInfo{}, false
	}
	return g.Modes[g.ModeIndex], true
}
