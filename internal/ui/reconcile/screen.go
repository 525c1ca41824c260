package reconcile

import (
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/nvimui/internal/logging"
	"github.com/dshills/nvimui/internal/ui/batch"
	"github.com/dshills/nvimui/internal/ui/grid"
	"github.com/dshills/nvimui/internal/ui/highlight"
	"github.com/dshills/nvimui/internal/ui/window"
)

// Options configures a Screen.
type Options struct {
	// ForceCloseOnDestroy closes a grid's window when the grid is
	// destroyed without a matching win_close.
	ForceCloseOnDestroy bool

	// CellWidth and CellHeight convert hit-test points to cells.
	CellWidth  float64
	CellHeight float64

	ResourceHook window.ResourceHook
	Logger       *logging.Logger
}

// DefaultOptions returns options for a terminal-cell screen.
func DefaultOptions() Options {
	return Options{
		ForceCloseOnDestroy: true,
		CellWidth:           1,
		CellHeight:          1,
	}
}

// Cursor is the screen cursor position.
type Cursor struct {
	Grid int
	Row  int
	Col  int
}

// Screen is the session's screen model. Apply is called from the consumer
// goroutine; every other method may be called concurrently with it.
type Screen struct {
	mu sync.RWMutex
	r  *Reconciler
}

// NewScreen creates an empty screen.
func NewScreen(opts Options) *Screen {
	return &Screen{r: NewReconciler(opts)}
}

// Apply reconciles batches in order.
func (s *Screen) Apply(batches ...batch.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range batches {
		s.r.Apply(b)
	}
}

// GetGrid returns a snapshot of a grid.
func (s *Screen) GetGrid(id int) (grid.Grid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.r.grids.Get(id)
	if !ok {
		return grid.Grid{}, false
	}
	return g.Clone(), true
}

// GridIDs returns the ids of all live grids.
func (s *Screen) GridIDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.grids.IDs()
}

// GetWindow returns a snapshot of the window showing grid id.
func (s *Screen) GetWindow(id int) (window.Window, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.r.windows.Get(id)
	if !ok {
		return window.Window{}, false
	}
	return w.Clone(), true
}

// GetMessageWindow returns a snapshot of the message window.
func (s *Screen) GetMessageWindow() (window.Window, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.r.windows.MessageWindow()
	if !ok {
		return window.Window{}, false
	}
	return w.Clone(), true
}

// Windows returns snapshots of all windows, front to back.
func (s *Screen) Windows() []window.Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order := s.r.windows.Order()
	out := make([]window.Window, 0, len(order))
	for _, id := range order {
		if w, ok := s.r.windows.Get(id); ok {
			out = append(out, w.Clone())
		}
	}
	return out
}

// HitTest maps a point to a grid cell.
func (s *Screen) HitTest(p window.Point) window.Hit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.windows.HitTest(p)
}

// Cursor returns the screen cursor.
func (s *Screen) Cursor() Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id := s.r.grids.CursorGrid()
	c := Cursor{Grid: id}
	if g, ok := s.r.grids.Get(id); ok {
		c.Row, c.Col = g.CursorRow, g.CursorCol
	}
	return c
}

// ConsumeCursorDirty reports whether the cursor needs repainting and
// resets the flag.
func (s *Screen) ConsumeCursorDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.grids.ConsumeCursorDirty()
}

// ConsumeDirty returns the grids written since the last call.
func (s *Screen) ConsumeDirty() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.grids.ConsumeDirty()
}

// ConsumeScroll returns and resets the accumulated scroll of a window.
func (s *Screen) ConsumeScroll(id int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.windows.ConsumeScroll(id)
}

// Globals returns a snapshot of editor-wide state.
func (s *Screen) Globals() Globals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.globals.Clone()
}

// ConsumeMenuDirty reports whether update_menu was seen since the last
// call.
func (s *Screen) ConsumeMenuDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.r.globals.MenuDirty
	s.r.globals.MenuDirty = false
	return d
}

// Style returns the terminal style of a highlight id.
func (s *Screen) Style(hlID int) tcell.Style {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.highlights.Style(hlID)
}

// Defaults returns the default colors.
func (s *Screen) Defaults() highlight.Defaults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.highlights.Defaults()
}

// Stats returns reconciliation counters.
func (s *Screen) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.stats
}
