// Package grid tracks the geometry, cursor and cell contents of every grid
// the remote editor paints into.
//
// Manager is not synchronized; the owner serializes access.
package grid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/nvimui/internal/logging"
	"github.com/dshills/nvimui/internal/redraw"
)

// DefaultID is the id of the always-present default grid.
const DefaultID = 1

// Errors returned by Manager operations. All are soft: the caller logs
// them and skips the event.
var (
	ErrUnknownGrid = errors.New("unknown grid")
	ErrOutOfBounds = errors.New("position outside grid")
)

// Cell is one stored cell.
type Cell = redraw.Cell

var blank = Cell{Text: " "}

// Grid is a rectangular cell buffer.
type Grid struct {
	ID        int
	Width     int
	Height    int
	CursorRow int
	CursorCol int
	Dirty     bool

	// Cells is indexed [row][col].
	Cells [][]Cell

	// Wrapped marks rows whose last cell continues on the next row.
	Wrapped []bool
}

// Clone returns a deep copy.
func (g *Grid) Clone() Grid {
	c := *g
	c.Cells = make([][]Cell, len(g.Cells))
	for i, row := range g.Cells {
		c.Cells[i] = append([]Cell(nil), row...)
	}
	c.Wrapped = append([]bool(nil), g.Wrapped...)
	return c
}

// Text returns row as a string, or "" if row is out of range.
func (g *Grid) Text(row int) string {
	if row < 0 || row >= len(g.Cells) {
		return ""
	}
	var b strings.Builder
	for _, c := range g.Cells[row] {
		b.WriteString(c.Text)
	}
	return b.String()
}

func (g *Grid) resize(width, height int) {
	cells := make([][]Cell, height)
	for r := range cells {
		row := make([]Cell, width)
		for c := range row {
			if r < len(g.Cells) && c < len(g.Cells[r]) {
				row[c] = g.Cells[r][c]
			} else {
				row[c] = blank
			}
		}
		cells[r] = row
	}
	wrapped := make([]bool, height)
	copy(wrapped, g.Wrapped)

	g.Cells = cells
	g.Wrapped = wrapped
	g.Width = width
	g.Height = height
	if g.CursorRow >= height {
		g.CursorRow = max(0, height-1)
	}
	if g.CursorCol >= width {
		g.CursorCol = max(0, width-1)
	}
}

// DestroyHook is called after a grid is removed.
type DestroyHook func(id int)

// Manager is the authoritative map of grid id to grid.
type Manager struct {
	grids map[int]*Grid
	log   *logging.Logger

	cursorGrid  int
	cursorDirty bool

	onDestroy DestroyHook
}

// NewManager creates an empty manager. l may be nil.
func NewManager(l *logging.Logger) *Manager {
	return &Manager{
		grids:      make(map[int]*Grid),
		log:        logging.OrNull(l).WithComponent("grid"),
		cursorGrid: DefaultID,
	}
}

// OnDestroy sets the hook run after Destroy removes a grid.
func (m *Manager) OnDestroy(hook DestroyHook) {
	m.onDestroy = hook
}

// Get returns the live grid. Callers must not retain it past the lock
// that guards the manager.
func (m *Manager) Get(id int) (*Grid, bool) {
	g, ok := m.grids[id]
	return g, ok
}

// IDs returns the ids of all live grids.
func (m *Manager) IDs() []int {
	ids := make([]int, 0, len(m.grids))
	for id := range m.grids {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of live grids.
func (m *Manager) Len() int {
	return len(m.grids)
}

// CursorGrid returns the grid that holds the screen cursor.
func (m *Manager) CursorGrid() int {
	return m.cursorGrid
}

// ConsumeCursorDirty reports whether the cursor's grid was written since
// the last call, and resets the flag.
func (m *Manager) ConsumeCursorDirty() bool {
	d := m.cursorDirty
	m.cursorDirty = false
	return d
}

// ConsumeDirty returns the ids of grids written since the last call and
// clears their dirty flags.
func (m *Manager) ConsumeDirty() []int {
	var ids []int
	for id, g := range m.grids {
		if g.Dirty {
			ids = append(ids, id)
			g.Dirty = false
		}
	}
	return ids
}

// Resize creates the grid if needed and sets its dimensions. Overlapping
// content is kept.
func (m *Manager) Resize(id, width, height int) *Grid {
	g, ok := m.grids[id]
	if !ok {
		g = &Grid{ID: id}
		m.grids[id] = g
		m.log.Debug("created grid %d (%dx%d)", id, width, height)
	}
	if g.Width != width || g.Height != height || g.Cells == nil {
		g.resize(width, height)
	}
	return g
}

// Clear blanks every cell.
func (m *Manager) Clear(id int) error {
	g, err := m.lookup(id)
	if err != nil {
		return err
	}
	for _, row := range g.Cells {
		for c := range row {
			row[c] = blank
		}
	}
	for i := range g.Wrapped {
		g.Wrapped[i] = false
	}
	m.touch(g)
	return nil
}

// CursorGoto moves the grid-local cursor. The screen cursor follows it to
// this grid.
func (m *Manager) CursorGoto(id, row, col int) error {
	g, err := m.lookup(id)
	if err != nil {
		return err
	}
	g.CursorRow = row
	g.CursorCol = col
	if m.cursorGrid != id {
		m.cursorGrid = id
		m.cursorDirty = true
	}
	return nil
}

// Line writes cells into row starting at colStart. Cells past the right
// edge are dropped.
func (m *Manager) Line(id, row, colStart int, cells []Cell, wrap bool) error {
	g, err := m.lookup(id)
	if err != nil {
		return err
	}
	if row < 0 || row >= g.Height || colStart < 0 {
		return fmt.Errorf("%w: grid %d row %d col %d (%dx%d)", ErrOutOfBounds, id, row, colStart, g.Width, g.Height)
	}

	dst := g.Cells[row]
	for i, c := range cells {
		col := colStart + i
		if col >= len(dst) {
			m.log.Debug("grid %d row %d: %d cells past width dropped", id, row, len(cells)-i)
			break
		}
		dst[col] = c
	}
	g.Wrapped[row] = wrap
	m.touch(g)
	return nil
}

// Scroll moves the region [top,bot) x [left,right) by rows. rows > 0
// moves content up, rows < 0 moves it down. Rows uncovered by the move
// keep stale content until the editor redraws them.
func (m *Manager) Scroll(id, top, bot, left, right, rows, cols int) error {
	g, err := m.lookup(id)
	if err != nil {
		return err
	}
	if cols != 0 {
		m.log.Debug("grid %d: horizontal scroll %d ignored", id, cols)
	}

	top = clamp(top, 0, g.Height)
	bot = clamp(bot, top, g.Height)
	left = clamp(left, 0, g.Width)
	right = clamp(right, left, g.Width)

	switch {
	case rows > 0:
		for r := top; r < bot-rows; r++ {
			copy(g.Cells[r][left:right], g.Cells[r+rows][left:right])
		}
	case rows < 0:
		for r := bot - 1; r >= top-rows; r-- {
			copy(g.Cells[r][left:right], g.Cells[r+rows][left:right])
		}
	}
	m.touch(g)
	return nil
}

// Destroy removes the grid and runs the destroy hook. Destroying an
// unknown id is a no-op.
func (m *Manager) Destroy(id int) {
	if _, ok := m.grids[id]; !ok {
		m.log.Debug("destroy of unknown grid %d ignored", id)
		return
	}
	delete(m.grids, id)
	if m.cursorGrid == id {
		m.cursorGrid = DefaultID
		m.cursorDirty = true
	}
	m.log.Debug("destroyed grid %d", id)

	if m.onDestroy != nil {
		m.onDestroy(id)
	}
}

func (m *Manager) lookup(id int) (*Grid, error) {
	g, ok := m.grids[id]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownGrid, id)
	}
	return g, nil
}

func (m *Manager) touch(g *Grid) {
	g.Dirty = true
	if g.ID == m.cursorGrid {
		m.cursorDirty = true
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
