// Package window tracks window geometry, float anchoring, z-order and mouse
// hit-testing for the grids of a session.
//
// A window is keyed by the id of the grid it shows. The grid itself is
// looked up in the grid manager on every access, never held, so a
// destroyed grid cannot leave a window pointing at stale state.
//
// Manager is not synchronized; the owner serializes access.
package window

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/dshills/nvimui/internal/logging"
	"github.com/dshills/nvimui/internal/redraw"
	"github.com/dshills/nvimui/internal/ui/grid"
)

// Errors returned by Manager operations. All are soft.
var (
	ErrUnknownWindow = errors.New("unknown window")
	ErrUnknownAnchor = errors.New("unknown anchor window")
)

// Margins are rows and columns of a window that do not scroll.
type Margins struct {
	Top    int
	Bottom int
	Left   int
	Right  int
}

// FloatAnchor places a float relative to another window.
type FloatAnchor struct {
	AnchorGrid int
	Corner     redraw.Corner
	AnchorRow  float64
	AnchorCol  float64
	Focusable  bool
	ZIndex     int
}

// Viewport is the last reported visible buffer range.
type Viewport struct {
	Topline   int
	Botline   int
	Curline   int
	Curcol    int
	LineCount int

	// ScrollDelta accumulates applied scroll deltas until consumed.
	ScrollDelta int
}

// Extmark is an extmark position inside a window.
type Extmark struct {
	NsID   int
	MarkID int
	Row    int
	Col    int
}

// Window is a positioned view onto a grid.
type Window struct {
	Grid     int
	Handle   int64
	StartRow int
	StartCol int
	Width    int
	Height   int
	Hidden   bool
	External bool
	Message  bool
	Margins  Margins
	Float    *FloatAnchor
	Viewport Viewport
	Extmarks []Extmark
}

// Clone returns a deep copy.
func (w *Window) Clone() Window {
	c := *w
	if w.Float != nil {
		f := *w.Float
		c.Float = &f
	}
	c.Extmarks = append([]Extmark(nil), w.Extmarks...)
	return c
}

// ZIndex returns the stacking order. Normal windows sit at -1, below every
// float.
func (w *Window) ZIndex() int {
	if w.Float == nil {
		return -1
	}
	return w.Float.ZIndex
}

// Contains reports whether the cell (row, col) is inside the window.
func (w *Window) Contains(row, col int) bool {
	return row >= w.StartRow && row < w.StartRow+w.Height &&
		col >= w.StartCol && col < w.StartCol+w.Width
}

// ResourceHook lets a renderer allocate and free per-window resources.
type ResourceHook interface {
	Allocate(grid, width, height int)
	Resize(grid, width, height int)
	Release(grid int)
}

type nopHook struct{}

func (nopHook) Allocate(int, int, int) {}
func (nopHook) Resize(int, int, int)   {}
func (nopHook) Release(int)            {}

// Manager is the authoritative map of grid id to window.
type Manager struct {
	windows map[int]*Window
	order   []int // front to back
	grids   *grid.Manager
	hook    ResourceHook
	log     *logging.Logger

	msgGrid int

	cellWidth  float64
	cellHeight float64
}

// Option configures a Manager.
type Option func(*Manager)

// WithResourceHook sets the renderer hook.
func WithResourceHook(h ResourceHook) Option {
	return func(m *Manager) {
		if h != nil {
			m.hook = h
		}
	}
}

// WithCellSize sets the size of one cell in the units passed to HitTest.
func WithCellSize(width, height float64) Option {
	return func(m *Manager) {
		if width > 0 && height > 0 {
			m.cellWidth = width
			m.cellHeight = height
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		m.log = logging.OrNull(l).WithComponent("window")
	}
}

// NewManager creates a window manager that resolves geometry against grids.
func NewManager(grids *grid.Manager, opts ...Option) *Manager {
	m := &Manager{
		windows:    make(map[int]*Window),
		grids:      grids,
		hook:       nopHook{},
		log:        logging.Null,
		cellWidth:  1,
		cellHeight: 1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the live window for grid.
func (m *Manager) Get(gridID int) (*Window, bool) {
	w, ok := m.windows[gridID]
	return w, ok
}

// MessageWindow returns the active message window.
func (m *Manager) MessageWindow() (*Window, bool) {
	if m.msgGrid == 0 {
		return nil, false
	}
	return m.Get(m.msgGrid)
}

// Order returns window ids front to back.
func (m *Manager) Order() []int {
	return slices.Clone(m.order)
}

// Len returns the number of live windows.
func (m *Manager) Len() int {
	return len(m.windows)
}

// screenWidth is the width of the default grid, or 0 if it is gone.
func (m *Manager) screenWidth() int {
	if g, ok := m.grids.Get(grid.DefaultID); ok {
		return g.Width
	}
	return 0
}

// place creates or updates the window for gridID with the given geometry.
// Resources are allocated on creation and reallocated only when the size
// changes. The window stops being the message window; MsgSetPos marks it
// again after placing.
func (m *Manager) place(gridID int, handle int64, row, col, width, height int) *Window {
	w, ok := m.windows[gridID]
	if !ok {
		w = &Window{Grid: gridID, Width: width, Height: height}
		m.windows[gridID] = w
		m.order = slices.Insert(m.order, 0, gridID)
		m.hook.Allocate(gridID, width, height)
		m.log.Debug("created window for grid %d (%dx%d)", gridID, width, height)
	} else if w.Hidden {
		m.hook.Allocate(gridID, width, height)
	} else if w.Width != width || w.Height != height {
		m.hook.Resize(gridID, width, height)
	}

	if handle != 0 {
		w.Handle = handle
	}
	w.StartRow = row
	w.StartCol = col
	w.Width = width
	w.Height = height
	w.Hidden = false
	w.Message = false
	if m.msgGrid == gridID {
		m.msgGrid = 0
	}
	return w
}

// Pos positions a normal window.
func (m *Manager) Pos(gridID int, handle int64, startRow, startCol, width, height int) error {
	if _, ok := m.grids.Get(gridID); !ok {
		return fmt.Errorf("win_pos: %w %d", grid.ErrUnknownGrid, gridID)
	}
	w := m.place(gridID, handle, startRow, startCol, width, height)
	w.Float = nil
	w.External = false
	return nil
}

// FloatPos positions a float against the top-left of its anchor window.
// The float's size comes from its grid. The column is clamped so the
// float stays on screen; the row is not.
func (m *Manager) FloatPos(gridID int, handle int64, anchor FloatAnchor) error {
	g, ok := m.grids.Get(gridID)
	if !ok {
		return fmt.Errorf("win_float_pos: %w %d", grid.ErrUnknownGrid, gridID)
	}
	anchorWin, ok := m.windows[anchor.AnchorGrid]
	if !ok {
		return fmt.Errorf("win_float_pos grid %d: %w %d", gridID, ErrUnknownAnchor, anchor.AnchorGrid)
	}

	row, col := floatOrigin(anchorWin, anchor, g.Width, g.Height)
	if sw := m.screenWidth(); sw > 0 {
		col = max(0, min(col, sw-g.Width))
	}

	w := m.place(gridID, handle, row, col, g.Width, g.Height)
	a := anchor
	w.Float = &a
	w.External = false
	return nil
}

// floatOrigin applies the corner formulas to find a float's top-left.
func floatOrigin(anchorWin *Window, anchor FloatAnchor, width, height int) (row, col int) {
	north := anchorWin.StartRow + int(math.Floor(anchor.AnchorRow))
	south := north - height
	west := anchorWin.StartCol + int(math.Floor(anchor.AnchorCol))
	east := west - width

	switch anchor.Corner {
	case redraw.CornerNE:
		return north, east
	case redraw.CornerSW:
		return south, west
	case redraw.CornerSE:
		return south, east
	default:
		return north, west
	}
}

// ExternalPos marks a window as displayed outside the main screen.
func (m *Manager) ExternalPos(gridID int, handle int64) error {
	g, ok := m.grids.Get(gridID)
	if !ok {
		return fmt.Errorf("win_external_pos: %w %d", grid.ErrUnknownGrid, gridID)
	}
	w := m.place(gridID, handle, 0, 0, g.Width, g.Height)
	w.Float = nil
	w.External = true
	return nil
}

// Hide hides a window and releases its render resources. Geometry is kept.
func (m *Manager) Hide(gridID int) error {
	w, ok := m.windows[gridID]
	if !ok {
		return fmt.Errorf("win_hide: %w %d", ErrUnknownWindow, gridID)
	}
	if !w.Hidden {
		w.Hidden = true
		m.hook.Release(gridID)
	}
	return nil
}

// Close removes a window. Closing an absent window is a no-op and
// reports false; it happens routinely when a grid destroy already closed it.
func (m *Manager) Close(gridID int) bool {
	w, ok := m.windows[gridID]
	if !ok {
		m.log.Debug("close of absent window %d ignored", gridID)
		return false
	}

	delete(m.windows, gridID)
	if i := slices.Index(m.order, gridID); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
	if m.msgGrid == gridID {
		m.msgGrid = 0
	}
	if !w.Hidden {
		m.hook.Release(gridID)
	}
	return true
}

// MsgSetPos places the message window at (row, 0), sized to its grid. A
// different, previously active message window is closed first.
func (m *Manager) MsgSetPos(gridID, row int) error {
	g, ok := m.grids.Get(gridID)
	if !ok {
		return fmt.Errorf("msg_set_pos: %w %d", grid.ErrUnknownGrid, gridID)
	}
	if m.msgGrid != 0 && m.msgGrid != gridID {
		m.Close(m.msgGrid)
	}

	w := m.place(gridID, 0, row, 0, g.Width, g.Height)
	w.Float = nil
	w.External = false
	w.Message = true
	m.msgGrid = gridID
	return nil
}

// Viewport records the viewport and applies vp.ScrollDelta when
// 0 < |delta| <= height-(top+bottom margins). It reports whether the
// delta was applied; otherwise the change is a full redraw.
func (m *Manager) Viewport(gridID int, vp Viewport) (bool, error) {
	w, ok := m.windows[gridID]
	if !ok {
		return false, fmt.Errorf("win_viewport: %w %d", ErrUnknownWindow, gridID)
	}

	delta := vp.ScrollDelta
	vp.ScrollDelta = w.Viewport.ScrollDelta
	w.Viewport = vp

	limit := w.Height - (w.Margins.Top + w.Margins.Bottom)
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	if abs == 0 || abs > limit {
		return false, nil
	}
	w.Viewport.ScrollDelta += delta
	return true, nil
}

// ConsumeScroll returns and resets the accumulated scroll delta.
func (m *Manager) ConsumeScroll(gridID int) int {
	w, ok := m.windows[gridID]
	if !ok {
		return 0
	}
	d := w.Viewport.ScrollDelta
	w.Viewport.ScrollDelta = 0
	return d
}

// ViewportMargins stores the fixed margins of a window.
func (m *Manager) ViewportMargins(gridID int, margins Margins) error {
	w, ok := m.windows[gridID]
	if !ok {
		return fmt.Errorf("win_viewport_margins: %w %d", ErrUnknownWindow, gridID)
	}
	w.Margins = margins
	return nil
}

// Extmark records an extmark, replacing an earlier position of the same
// mark.
func (m *Manager) Extmark(gridID int, mark Extmark) error {
	w, ok := m.windows[gridID]
	if !ok {
		return fmt.Errorf("win_extmark: %w %d", ErrUnknownWindow, gridID)
	}
	for i, e := range w.Extmarks {
		if e.NsID == mark.NsID && e.MarkID == mark.MarkID {
			w.Extmarks[i] = mark
			return nil
		}
	}
	w.Extmarks = append(w.Extmarks, mark)
	return nil
}

// Point is a position in the units configured by WithCellSize.
type Point struct {
	X float64
	Y float64
}

// Hit is the result of a hit test.
type Hit struct {
	Grid int
	Row  int
	Col  int

	// InMargin is set when the cell falls in a viewport margin.
	InMargin bool
}

// HitTest finds the topmost window under p and returns p in that window's
// grid coordinates. Hidden, external and non-focusable windows are
// skipped. The default grid is the fallback.
func (m *Manager) HitTest(p Point) Hit {
	row := int(math.Floor(p.Y / m.cellHeight))
	col := int(math.Floor(p.X / m.cellWidth))

	candidates := make([]*Window, 0, len(m.order))
	for _, id := range m.order {
		w := m.windows[id]
		if w == nil || id == grid.DefaultID || w.Hidden || w.External {
			continue
		}
		if w.Float != nil && !w.Float.Focusable {
			continue
		}
		candidates = append(candidates, w)
	}
	slices.SortStableFunc(candidates, func(a, b *Window) int {
		return b.ZIndex() - a.ZIndex()
	})

	for _, w := range candidates {
		if w.Contains(row, col) {
			return localHit(w, row, col)
		}
	}

	if w, ok := m.windows[grid.DefaultID]; ok {
		return localHit(w, row, col)
	}
	return Hit{Grid: grid.DefaultID, Row: max(0, row), Col: max(0, col)}
}

func localHit(w *Window, row, col int) Hit {
	h := Hit{
		Grid: w.Grid,
		Row:  max(0, row-w.StartRow),
		Col:  max(0, col-w.StartCol),
	}
	if h.Row >= w.Height || h.Col >= w.Width {
		return h
	}
	mg := w.Margins
	h.InMargin = h.Row < mg.Top || h.Row >= w.Height-mg.Bottom ||
		h.Col < mg.Left || h.Col >= w.Width-mg.Right
	return h
}
