package highlight

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/nvimui/internal/redraw"
)

func attrs() redraw.HlAttrs {
	return redraw.HlAttrs{Foreground: -1, Background: -1, Special: -1}
}

func TestTable_ColorsFallBackToDefaults(t *testing.T) {
	tbl := New()
	tbl.SetDefaults(redraw.DefaultColorsSet{RGBFg: 0x111111, RGBBg: 0x222222, RGBSp: -1})

	a := attrs()
	a.Foreground = 0xabcdef
	tbl.Define(3, a)

	fg, bg, sp := tbl.Colors(3)
	if fg != 0xabcdef || bg != 0x222222 || sp != 0xff0000 {
		t.Errorf("Colors(3) = %06x %06x %06x", fg, bg, sp)
	}

	fg, bg, _ = tbl.Colors(99)
	if fg != 0x111111 || bg != 0x222222 {
		t.Errorf("Colors(unknown) = %06x %06x, want defaults", fg, bg)
	}
}

func TestTable_ZeroIsDefault(t *testing.T) {
	tbl := New()
	a := attrs()
	a.Bold = true
	tbl.Define(0, a)
	if tbl.Attrs(0).Bold {
		t.Error("id 0 resolved to a defined attribute")
	}
}

func TestTable_ReverseSwapsColors(t *testing.T) {
	tbl := New()
	a := attrs()
	a.Foreground = 0x00ff00
	a.Reverse = true
	tbl.Define(1, a)

	fg, bg, _ := tbl.Colors(1)
	if fg != 0x000000 || bg != 0x00ff00 {
		t.Errorf("Colors(1) = %06x %06x, want swapped", fg, bg)
	}
}

func TestTable_Style(t *testing.T) {
	tbl := New()
	a := attrs()
	a.Foreground = 0x102030
	a.Bold = true
	a.Italic = true
	a.Underline = true
	tbl.Define(7, a)

	fg, bg, flags := tbl.Style(7).Decompose()
	if fg != tcell.NewHexColor(0x102030) {
		t.Errorf("fg = %v", fg)
	}
	if bg != tcell.NewHexColor(0x000000) {
		t.Errorf("bg = %v", bg)
	}
	for _, want := range []tcell.AttrMask{tcell.AttrBold, tcell.AttrItalic} {
		if flags&want == 0 {
			t.Errorf("attribute %v missing from %v", want, flags)
		}
	}
	if flags&tcell.AttrStrikeThrough != 0 {
		t.Error("unexpected strikethrough")
	}
}

func TestTable_Groups(t *testing.T) {
	tbl := New()
	tbl.SetGroup("Normal", 4)
	if id, ok := tbl.Group("Normal"); !ok || id != 4 {
		t.Errorf("Group(Normal) = %d, %v", id, ok)
	}
	if _, ok := tbl.Group("Missing"); ok {
		t.Error("Group(Missing) found")
	}
}
