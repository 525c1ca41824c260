// Package highlight keeps the highlight attribute table the editor defines
// with hl_attr_define and resolves ids to terminal styles.
package highlight

import (
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/nvimui/internal/redraw"
)

// unset marks a color the editor did not provide.
const unset = -1

// Defaults are the colors used where an attribute leaves a color unset.
type Defaults struct {
	Foreground int
	Background int
	Special    int
}

// Table maps highlight ids to attributes. Id 0 is always the default
// attributes. Table is not synchronized; the owner serializes access.
type Table struct {
	defaults Defaults
	attrs    map[int]redraw.HlAttrs
	groups   map[string]int
}

// New creates a table with white-on-black defaults.
func New() *Table {
	return &Table{
		defaults: Defaults{Foreground: 0xffffff, Background: 0x000000, Special: 0xff0000},
		attrs:    make(map[int]redraw.HlAttrs),
		groups:   make(map[string]int),
	}
}

// SetDefaults applies default_colors_set. Unset components keep their
// previous value.
func (t *Table) SetDefaults(ev redraw.DefaultColorsSet) {
	if ev.RGBFg != unset {
		t.defaults.Foreground = ev.RGBFg
	}
	if ev.RGBBg != unset {
		t.defaults.Background = ev.RGBBg
	}
	if ev.RGBSp != unset {
		t.defaults.Special = ev.RGBSp
	}
}

// Defaults returns the current default colors.
func (t *Table) Defaults() Defaults {
	return t.defaults
}

// Define stores the RGB attributes of an id.
func (t *Table) Define(id int, attrs redraw.HlAttrs) {
	t.attrs[id] = attrs
}

// SetGroup records the id of a builtin group.
func (t *Table) SetGroup(name string, id int) {
	t.groups[name] = id
}

// Group returns the id of a builtin group.
func (t *Table) Group(name string) (int, bool) {
	id, ok := t.groups[name]
	return id, ok
}

// Len returns the number of defined ids.
func (t *Table) Len() int {
	return len(t.attrs)
}

// Attrs returns the attributes of id. Unknown ids, and id 0, resolve to
// the defaults.
func (t *Table) Attrs(id int) redraw.HlAttrs {
	if a, ok := t.attrs[id]; ok && id != 0 {
		return a
	}
	return redraw.HlAttrs{Foreground: unset, Background: unset, Special: unset}
}

// Colors resolves the effective 24-bit foreground, background and special
// colors of id, with reverse applied.
func (t *Table) Colors(id int) (fg, bg, sp int) {
	a := t.Attrs(id)
	fg, bg, sp = a.Foreground, a.Background, a.Special
	if fg == unset {
		fg = t.defaults.Foreground
	}
	if bg == unset {
		bg = t.defaults.Background
	}
	if sp == unset {
		sp = t.defaults.Special
	}
	if a.Reverse {
		fg, bg = bg, fg
	}
	return fg, bg, sp
}

// Style returns the terminal style for id.
func (t *Table) Style(id int) tcell.Style {
	a := t.Attrs(id)
	fg, bg, sp := t.Colors(id)

	style := tcell.StyleDefault.
		Foreground(tcell.NewHexColor(int32(fg))).
		Background(tcell.NewHexColor(int32(bg)))

	if a.Bold {
		style = style.Bold(true)
	}
	if a.Italic {
		style = style.Italic(true)
	}
	if a.Strikethrough {
		style = style.StrikeThrough(true)
	}

	switch {
	case a.Undercurl:
		style = style.Underline(tcell.UnderlineStyleCurly, tcell.NewHexColor(int32(sp)))
	case a.Underdouble:
		style = style.Underline(tcell.UnderlineStyleDouble)
	case a.Underdotted:
		style = style.Underline(tcell.UnderlineStyleDotted)
	case a.Underdashed:
		style = style.Underline(tcell.UnderlineStyleDashed)
	case a.Underline:
		style = style.Underline(true)
	}
	return style
}
