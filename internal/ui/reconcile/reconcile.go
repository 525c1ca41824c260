// Package reconcile applies flushed redraw batches to the grid and window
// managers under a fixed ordering discipline, and exposes the resulting
// screen model to readers on other goroutines.
//
// Within a batch, events fall into five classes. Global events (title,
// highlights, modes, options) are applied as they are encountered. The
// rest are deferred and applied class by class:
//
//  1. grid events
//  2. window events
//  3. viewport margin events
//  4. message window placement
//
// Each class keeps arrival order. Window events therefore always resolve
// against the grid sizes of the same batch, even when the editor sends a
// win_pos before the matching grid_resize.
package reconcile

import (
	"github.com/dshills/nvimui/internal/logging"
	"github.com/dshills/nvimui/internal/redraw"
	"github.com/dshills/nvimui/internal/ui/batch"
	"github.com/dshills/nvimui/internal/ui/grid"
	"github.com/dshills/nvimui/internal/ui/highlight"
	"github.com/dshills/nvimui/internal/ui/window"
)

// Class is the apply class of an event.
type Class int

// Apply classes, in apply order.
const (
	ClassGlobal Class = iota
	ClassGrid
	ClassWindow
	ClassMargin
	ClassMessage
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassGlobal:
		return "global"
	case ClassGrid:
		return "grid"
	case ClassWindow:
		return "window"
	case ClassMargin:
		return "margin"
	case ClassMessage:
		return "message"
	default:
		return "unknown"
	}
}

// ClassOf returns the apply class of ev.
func ClassOf(ev redraw.Event) Class {
	switch ev.(type) {
	case redraw.GridResize, redraw.GridClear, redraw.GridCursorGoto,
		redraw.GridLine, redraw.GridScroll, redraw.GridDestroy:
		return ClassGrid
	case redraw.WinPos, redraw.WinFloatPos, redraw.WinExternalPos,
		redraw.WinHide, redraw.WinClose, redraw.WinViewport, redraw.WinExtmark:
		return ClassWindow
	case redraw.WinViewportMargins:
		return ClassMargin
	case redraw.MsgSetPos:
		return ClassMessage
	default:
		return ClassGlobal
	}
}

// Plan is a batch split into its deferred classes.
type Plan struct {
	Global  []redraw.Event
	Grid    []redraw.Event
	Window  []redraw.Event
	Margin  []redraw.Event
	Message []redraw.Event
}

// Deferred returns the deferred events in apply order.
func (p Plan) Deferred() []redraw.Event {
	out := make([]redraw.Event, 0, len(p.Grid)+len(p.Window)+len(p.Margin)+len(p.Message))
	out = append(out, p.Grid...)
	out = append(out, p.Window...)
	out = append(out, p.Margin...)
	return append(out, p.Message...)
}

// Partition splits events by class. A resize of the default grid also
// places the default window over the whole grid. That window event goes
// ahead of the batch's other window events so floats can anchor to it.
func Partition(events []redraw.Event) Plan {
	var p Plan
	var base []redraw.Event
	for _, ev := range events {
		switch ClassOf(ev) {
		case ClassGrid:
			p.Grid = append(p.Grid, ev)
			if r, ok := ev.(redraw.GridResize); ok && r.Grid == grid.DefaultID {
				base = append(base, redraw.WinPos{
					Grid:   grid.DefaultID,
					Width:  r.Width,
					Height: r.Height,
				})
			}
		case ClassWindow:
			p.Window = append(p.Window, ev)
		case ClassMargin:
			p.Margin = append(p.Margin, ev)
		case ClassMessage:
			p.Message = append(p.Message, ev)
		default:
			p.Global = append(p.Global, ev)
		}
	}
	if len(base) > 0 {
		p.Window = append(base, p.Window...)
	}
	return p
}

// Stats counts reconciliation work.
type Stats struct {
	Batches    uint64
	Events     uint64
	SoftErrors uint64
	Scrolls    uint64
}

// Reconciler is the single writer of the screen model. It is not
// synchronized; Screen wraps it with a lock.
type Reconciler struct {
	grids      *grid.Manager
	windows    *window.Manager
	highlights *highlight.Table
	globals    Globals
	log        *logging.Logger
	stats      Stats
	forceClose bool
}

// NewReconciler wires a reconciler over fresh managers.
func NewReconciler(opts Options) *Reconciler {
	log := logging.OrNull(opts.Logger).WithComponent("reconcile")
	grids := grid.NewManager(opts.Logger)
	r := &Reconciler{
		grids: grids,
		windows: window.NewManager(grids,
			window.WithLogger(opts.Logger),
			window.WithResourceHook(opts.ResourceHook),
			window.WithCellSize(opts.CellWidth, opts.CellHeight),
		),
		highlights: highlight.New(),
		globals:    newGlobals(),
		log:        log,
		forceClose: opts.ForceCloseOnDestroy,
	}
	grids.OnDestroy(r.gridDestroyed)
	return r
}

// gridDestroyed closes the window bound to a destroyed grid. The editor
// does not always send win_close before grid_destroy.
func (r *Reconciler) gridDestroyed(id int) {
	if !r.forceClose {
		return
	}
	if r.windows.Close(id) {
		r.log.Debug("closed window of destroyed grid %d", id)
	}
}

// Apply reconciles one batch.
func (r *Reconciler) Apply(b batch.Batch) {
	r.stats.Batches++
	r.stats.Events += uint64(len(b.Events))

	p := Partition(b.Events)
	for _, ev := range p.Global {
		r.applyGlobal(ev)
	}
	for _, ev := range p.Grid {
		r.applyGrid(ev)
	}
	for _, ev := range p.Window {
		r.applyWindow(ev)
	}
	for _, ev := range p.Margin {
		r.applyMargin(ev)
	}
	for _, ev := range p.Message {
		r.applyMessage(ev)
	}
}

func (r *Reconciler) soft(ev redraw.Event, err error) {
	if err == nil {
		return
	}
	r.stats.SoftErrors++
	r.log.Warn("%s skipped: %v", ev.Name(), err)
}

func (r *Reconciler) applyGlobal(ev redraw.Event) {
	g := &r.globals
	switch e := ev.(type) {
	case redraw.SetTitle:
		g.Title = e.Title
	case redraw.SetIcon:
		g.Icon = e.Icon
	case redraw.ModeInfoSet:
		g.CursorStyleEnabled = e.CursorStyleEnabled
		g.Modes = e.Modes
	case redraw.ModeChange:
		g.Mode = e.Mode
		g.ModeIndex = e.Index
	case redraw.OptionSet:
		g.Options[e.Option] = e.Value
	case redraw.Chdir:
		g.Cwd = e.Path
	case redraw.MouseOn:
		g.Mouse = true
	case redraw.MouseOff:
		g.Mouse = false
	case redraw.BusyStart:
		g.Busy = true
	case redraw.BusyStop:
		g.Busy = false
	case redraw.UpdateMenu:
		g.MenuDirty = true
	case redraw.DefaultColorsSet:
		r.highlights.SetDefaults(e)
	case redraw.HlAttrDefine:
		r.highlights.Define(e.ID, e.RGB)
	case redraw.HlGroupSet:
		r.highlights.SetGroup(e.Group, e.ID)
	default:
		r.log.Debug("no handler for %s", ev.Name())
	}
}

func (r *Reconciler) applyGrid(ev redraw.Event) {
	switch e := ev.(type) {
	case redraw.GridResize:
		r.grids.Resize(e.Grid, e.Width, e.Height)
	case redraw.GridClear:
		r.soft(ev, r.grids.Clear(e.Grid))
	case redraw.GridCursorGoto:
		r.soft(ev, r.grids.CursorGoto(e.Grid, e.Row, e.Col))
	case redraw.GridLine:
		r.soft(ev, r.grids.Line(e.Grid, e.Row, e.ColStart, e.Cells, e.Wrap))
	case redraw.GridScroll:
		r.soft(ev, r.grids.Scroll(e.Grid, e.Top, e.Bot, e.Left, e.Right, e.Rows, e.Cols))
	case redraw.GridDestroy:
		r.grids.Destroy(e.Grid)
	}
}

func (r *Reconciler) applyWindow(ev redraw.Event) {
	switch e := ev.(type) {
	case redraw.WinPos:
		r.soft(ev, r.windows.Pos(e.Grid, e.Win, e.StartRow, e.StartCol, e.Width, e.Height))
	case redraw.WinFloatPos:
		r.soft(ev, r.windows.FloatPos(e.Grid, e.Win, window.FloatAnchor{
			AnchorGrid: e.AnchorGrid,
			Corner:     e.Anchor,
			AnchorRow:  e.AnchorRow,
			AnchorCol:  e.AnchorCol,
			Focusable:  e.Focusable,
			ZIndex:     e.ZIndex,
		}))
	case redraw.WinExternalPos:
		r.soft(ev, r.windows.ExternalPos(e.Grid, e.Win))
	case redraw.WinHide:
		r.soft(ev, r.windows.Hide(e.Grid))
	case redraw.WinClose:
		r.windows.Close(e.Grid)
	case redraw.WinViewport:
		applied, err := r.windows.Viewport(e.Grid, window.Viewport{
			Topline:     e.Topline,
			Botline:     e.Botline,
			Curline:     e.Curline,
			Curcol:      e.Curcol,
			LineCount:   e.LineCount,
			ScrollDelta: e.ScrollDelta,
		})
		r.soft(ev, err)
		if applied {
			r.stats.Scrolls++
		}
	case redraw.WinExtmark:
		r.soft(ev, r.windows.Extmark(e.Grid, window.Extmark{
			NsID:   e.NsID,
			MarkID: e.MarkID,
			Row:    e.Row,
			Col:    e.Col,
		}))
	}
}

func (r *Reconciler) applyMargin(ev redraw.Event) {
	if e, ok := ev.(redraw.WinViewportMargins); ok {
		r.soft(ev, r.windows.ViewportMargins(e.Grid, window.Margins{
			Top:    e.Top,
			Bottom: e.Bottom,
			Left:   e.Left,
			Right:  e.Right,
		}))
	}
}

func (r *Reconciler) applyMessage(ev redraw.Event) {
	if e, ok := ev.(redraw.MsgSetPos); ok {
		r.soft(ev, r.windows.MsgSetPos(e.Grid, e.Row))
	}
}
