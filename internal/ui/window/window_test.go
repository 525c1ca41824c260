package window

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/dshills/nvimui/internal/redraw"
	"github.com/dshills/nvimui/internal/ui/grid"
)

type recordingHook struct {
	calls []string
}

func (h *recordingHook) Allocate(g, w, ht int) {
	h.calls = append(h.calls, fmt.Sprintf("alloc %d %dx%d", g, w, ht))
}

func (h *recordingHook) Resize(g, w, ht int) {
	h.calls = append(h.calls, fmt.Sprintf("resize %d %dx%d", g, w, ht))
}

func (h *recordingHook) Release(g int) {
	h.calls = append(h.calls, fmt.Sprintf("release %d", g))
}

func newTestManager(opts ...Option) (*Manager, *grid.Manager) {
	grids := grid.NewManager(nil)
	grids.Resize(grid.DefaultID, 80, 24)
	m := NewManager(grids, opts...)
	m.Pos(grid.DefaultID, 1000, 0, 0, 80, 24)
	return m, grids
}

func TestManager_PosAllocatesOnceAndResizesOnSizeChange(t *testing.T) {
	hook := &recordingHook{}
	grids := grid.NewManager(nil)
	grids.Resize(2, 10, 5)
	m := NewManager(grids, WithResourceHook(hook))

	if err := m.Pos(2, 1001, 1, 1, 10, 5); err != nil {
		t.Fatalf("Pos() error = %v", err)
	}
	m.Pos(2, 1001, 3, 4, 10, 5)
	m.Pos(2, 1001, 3, 4, 12, 5)

	want := []string{"alloc 2 10x5", "resize 2 12x5"}
	if !slices.Equal(hook.calls, want) {
		t.Errorf("hook calls = %v, want %v", hook.calls, want)
	}
	w, _ := m.Get(2)
	if w.StartRow != 3 || w.StartCol != 4 || w.Handle != 1001 {
		t.Errorf("window = %+v", *w)
	}
}

func TestManager_PosUnknownGrid(t *testing.T) {
	m := NewManager(grid.NewManager(nil))
	if err := m.Pos(5, 0, 0, 0, 1, 1); !errors.Is(err, grid.ErrUnknownGrid) {
		t.Errorf("Pos() error = %v, want ErrUnknownGrid", err)
	}
	if m.Len() != 0 {
		t.Error("window created for a missing grid")
	}
}

func TestManager_NewWindowsGoToFront(t *testing.T) {
	m, grids := newTestManager()
	grids.Resize(2, 1, 1)
	grids.Resize(3, 1, 1)
	m.Pos(2, 0, 0, 0, 1, 1)
	m.Pos(3, 0, 0, 0, 1, 1)

	if got := m.Order(); !slices.Equal(got, []int{3, 2, 1}) {
		t.Errorf("Order() = %v, want [3 2 1]", got)
	}
}

func TestManager_FloatPosCorners(t *testing.T) {
	tests := []struct {
		corner redraw.Corner
		row    int
		col    int
	}{
		{redraw.CornerNW, 10, 5},
		{redraw.CornerNE, 10, 1},
		{redraw.CornerSW, 7, 5},
		{redraw.CornerSE, 7, 1},
	}
	for _, tt := range tests {
		t.Run(tt.corner.String(), func(t *testing.T) {
			m, grids := newTestManager()
			grids.Resize(2, 20, 20)
			m.Pos(2, 0, 10, 5, 20, 20)
			grids.Resize(3, 4, 3)

			err := m.FloatPos(3, 0, FloatAnchor{AnchorGrid: 2, Corner: tt.corner, Focusable: true, ZIndex: 50})
			if err != nil {
				t.Fatalf("FloatPos() error = %v", err)
			}
			w, _ := m.Get(3)
			if w.StartRow != tt.row || w.StartCol != tt.col {
				t.Errorf("origin = (%d,%d), want (%d,%d)", w.StartRow, w.StartCol, tt.row, tt.col)
			}
			if w.Width != 4 || w.Height != 3 {
				t.Errorf("size = %dx%d, want the grid's 4x3", w.Width, w.Height)
			}
		})
	}
}

func TestManager_FloatPosClampsColumnOnly(t *testing.T) {
	m, grids := newTestManager()
	grids.Resize(4, 10, 3)

	m.FloatPos(4, 0, FloatAnchor{AnchorGrid: 1, Corner: redraw.CornerNW, AnchorRow: 30, AnchorCol: 78})
	w, _ := m.Get(4)
	if w.StartCol != 70 {
		t.Errorf("StartCol = %d, want clamped to 70", w.StartCol)
	}
	if w.StartRow != 30 {
		t.Errorf("StartRow = %d, want unclamped 30", w.StartRow)
	}

	m.FloatPos(4, 0, FloatAnchor{AnchorGrid: 1, Corner: redraw.CornerNE, AnchorCol: 3})
	if w.StartCol != 0 {
		t.Errorf("StartCol = %d, want clamped to 0", w.StartCol)
	}
}

func TestManager_FloatPosMissingAnchor(t *testing.T) {
	m, grids := newTestManager()
	grids.Resize(3, 4, 3)
	err := m.FloatPos(3, 0, FloatAnchor{AnchorGrid: 9})
	if !errors.Is(err, ErrUnknownAnchor) {
		t.Errorf("FloatPos() error = %v, want ErrUnknownAnchor", err)
	}
	if _, ok := m.Get(3); ok {
		t.Error("float created without its anchor")
	}
}

func TestManager_HideAndClose(t *testing.T) {
	hook := &recordingHook{}
	m, grids := newTestManager(WithResourceHook(hook))
	grids.Resize(2, 5, 5)
	m.Pos(2, 0, 1, 1, 5, 5)

	if err := m.Hide(2); err != nil {
		t.Fatalf("Hide() error = %v", err)
	}
	w, _ := m.Get(2)
	if !w.Hidden || w.StartRow != 1 || w.Width != 5 {
		t.Errorf("hidden window = %+v, want geometry kept", *w)
	}

	if !m.Close(2) {
		t.Error("Close() = false for live window")
	}
	if m.Close(2) {
		t.Error("Close() = true for absent window")
	}
	if slices.Contains(m.Order(), 2) {
		t.Error("closed window still in order")
	}

	want := []string{"alloc 1 80x24", "alloc 2 5x5", "release 2"}
	if !slices.Equal(hook.calls, want) {
		t.Errorf("hook calls = %v, want %v", hook.calls, want)
	}
}

func TestManager_SingleMessageWindow(t *testing.T) {
	m, grids := newTestManager()
	grids.Resize(5, 80, 2)
	grids.Resize(6, 80, 3)

	m.MsgSetPos(5, 22)
	m.MsgSetPos(6, 21)

	if _, ok := m.Get(5); ok {
		t.Error("previous message window still live")
	}
	w, ok := m.MessageWindow()
	if !ok || w.Grid != 6 {
		t.Fatalf("MessageWindow() = %v, %v", w, ok)
	}
	if w.StartRow != 21 || w.StartCol != 0 || w.Height != 3 {
		t.Errorf("message window = %+v", *w)
	}

	count := 0
	for _, id := range m.Order() {
		if w, _ := m.Get(id); w.Message {
			count++
		}
	}
	if count != 1 {
		t.Errorf("%d message windows live, want 1", count)
	}

	m.Close(6)
	if _, ok := m.MessageWindow(); ok {
		t.Error("MessageWindow() present after close")
	}
}

func TestManager_RepositionClearsMessageWindow(t *testing.T) {
	place := map[string]func(m *Manager) error{
		"win_pos": func(m *Manager) error {
			return m.Pos(5, 1001, 10, 0, 80, 2)
		},
		"win_float_pos": func(m *Manager) error {
			return m.FloatPos(5, 1001, FloatAnchor{AnchorGrid: grid.DefaultID, AnchorRow: 3, AnchorCol: 4, Focusable: true})
		},
		"win_external_pos": func(m *Manager) error {
			return m.ExternalPos(5, 1001)
		},
	}
	for name, fn := range place {
		t.Run(name, func(t *testing.T) {
			m, grids := newTestManager()
			grids.Resize(5, 80, 2)
			if err := m.MsgSetPos(5, 22); err != nil {
				t.Fatal(err)
			}
			if err := fn(m); err != nil {
				t.Fatal(err)
			}

			if w, ok := m.MessageWindow(); ok {
				t.Errorf("MessageWindow() = %+v after %s", *w, name)
			}
			if w, _ := m.Get(5); w == nil || w.Message {
				t.Errorf("window 5 = %+v, want a placed non-message window", w)
			}
		})
	}
}

func TestManager_ViewportScrollRange(t *testing.T) {
	m, grids := newTestManager()
	grids.Resize(2, 10, 10)
	m.Pos(2, 0, 0, 0, 10, 10)
	m.ViewportMargins(2, Margins{Top: 1, Bottom: 2})

	tests := []struct {
		delta   int
		applied bool
	}{
		{0, false},
		{3, true},
		{-7, true},
		{8, false},
		{-8, false},
	}
	for _, tt := range tests {
		got, err := m.Viewport(2, Viewport{Topline: 4, ScrollDelta: tt.delta})
		if err != nil {
			t.Fatalf("Viewport() error = %v", err)
		}
		if got != tt.applied {
			t.Errorf("delta %d applied = %v, want %v", tt.delta, got, tt.applied)
		}
	}
	if d := m.ConsumeScroll(2); d != -4 {
		t.Errorf("ConsumeScroll() = %d, want -4", d)
	}
	if d := m.ConsumeScroll(2); d != 0 {
		t.Errorf("second ConsumeScroll() = %d", d)
	}
	if w, _ := m.Get(2); w.Viewport.Topline != 4 {
		t.Errorf("Topline = %d", w.Viewport.Topline)
	}
}

func TestManager_Extmark(t *testing.T) {
	m, _ := newTestManager()
	m.Extmark(1, Extmark{NsID: 1, MarkID: 2, Row: 3, Col: 4})
	m.Extmark(1, Extmark{NsID: 1, MarkID: 2, Row: 5, Col: 6})
	m.Extmark(1, Extmark{NsID: 2, MarkID: 2})

	w, _ := m.Get(1)
	if len(w.Extmarks) != 2 || w.Extmarks[0].Row != 5 {
		t.Errorf("Extmarks = %+v", w.Extmarks)
	}
	if err := m.Extmark(9, Extmark{}); !errors.Is(err, ErrUnknownWindow) {
		t.Errorf("Extmark(unknown) error = %v", err)
	}
}

func TestManager_HitTest(t *testing.T) {
	m, grids := newTestManager(WithCellSize(10, 20))
	grids.Resize(2, 40, 10)
	m.Pos(2, 0, 0, 40, 40, 10)

	tests := []struct {
		name string
		p    Point
		want Hit
	}{
		{"base grid", Point{X: 55, Y: 45}, Hit{Grid: 1, Row: 2, Col: 5}},
		{"split window", Point{X: 415, Y: 25}, Hit{Grid: 2, Row: 1, Col: 1}},
		{"outside everything", Point{X: 5000, Y: 5000}, Hit{Grid: 1, Row: 250, Col: 500}},
		{"negative clamps", Point{X: -30, Y: -5}, Hit{Grid: 1, Row: 0, Col: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.HitTest(tt.p); got != tt.want {
				t.Errorf("HitTest(%v) = %+v, want %+v", tt.p, got, tt.want)
			}
		})
	}
}

func TestManager_HitTestZeroZIndexFloatBeatsBase(t *testing.T) {
	m, grids := newTestManager()
	grids.Resize(2, 80, 24)
	m.Pos(2, 0, 0, 0, 80, 24)
	grids.Resize(3, 80, 24)
	m.FloatPos(3, 0, FloatAnchor{AnchorGrid: 1, Corner: redraw.CornerNW, Focusable: true, ZIndex: 0})
	// Put the base window in front so only z-order can pick the float.
	m.order = []int{2, 3, 1}

	if got := m.HitTest(Point{X: 3, Y: 3}); got.Grid != 3 {
		t.Errorf("HitTest() grid = %d, want float 3", got.Grid)
	}
}

func TestManager_HitTestSkipsHiddenAndUnfocusable(t *testing.T) {
	m, grids := newTestManager()
	grids.Resize(2, 10, 10)
	grids.Resize(3, 10, 10)
	m.FloatPos(2, 0, FloatAnchor{AnchorGrid: 1, Focusable: false, ZIndex: 100})
	m.Pos(3, 0, 0, 0, 10, 10)
	m.Hide(3)

	if got := m.HitTest(Point{X: 1, Y: 1}); got.Grid != grid.DefaultID {
		t.Errorf("HitTest() grid = %d, want default grid", got.Grid)
	}
}

func TestManager_HitTestMarginInset(t *testing.T) {
	m, grids := newTestManager()
	grids.Resize(2, 10, 10)
	m.Pos(2, 0, 5, 5, 10, 10)
	m.ViewportMargins(2, Margins{Top: 1})

	if got := m.HitTest(Point{X: 6, Y: 5}); got.Grid != 2 || !got.InMargin {
		t.Errorf("HitTest() on winbar = %+v, want grid 2 in margin", got)
	}
	if got := m.HitTest(Point{X: 6, Y: 6}); got.InMargin {
		t.Errorf("HitTest() in body = %+v, want outside margin", got)
	}
}

func TestWindow_Clone(t *testing.T) {
	w := &Window{Float: &FloatAnchor{ZIndex: 3}, Extmarks: []Extmark{{NsID: 1}}}
	c := w.Clone()
	w.Float.ZIndex = 9
	w.Extmarks[0].NsID = 9
	if c.Float.ZIndex != 3 || c.Extmarks[0].NsID != 1 {
		t.Error("clone shares state with the live window")
	}
}
