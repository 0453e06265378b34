// Package termhost runs the engines in a terminal: tcell mouse and key
// input becomes scene events, and scene collections are drawn as cells.
package termhost

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/globedraw/scene"
)

const (
	DefaultCellWidth           = 8.0
	DefaultCellHeight          = 16.0
	DefaultDoubleClickInterval = 400 * time.Millisecond
)

// Input is the outcome of one terminal event.
type Input struct {
	Events []scene.Event
	Quit   bool
	// PanX and PanY are arrow-key steps, east and north positive.
	PanX, PanY int
}

// Translator maps terminal events to scene events. Cells are scaled to
// pixels so pick tolerances stay meaningful.
type Translator struct {
	CellWidth           float64
	CellHeight          float64
	DoubleClickInterval time.Duration

	buttons   tcell.ButtonMask
	lastClick time.Time
	lastCell  [2]int
	armed     bool
}

// NewTranslator returns a Translator with the default cell size.
func NewTranslator() *Translator {
	return &Translator{
		CellWidth:           DefaultCellWidth,
		CellHeight:          DefaultCellHeight,
		DoubleClickInterval: DefaultDoubleClickInterval,
	}
}

// ScreenPosition returns the pixel at the centre of cell (x, y).
func (t *Translator) ScreenPosition(x, y int) scene.ScreenPosition {
	return scene.ScreenPosition{
		X: (float64(x) + 0.5) * t.CellWidth,
		Y: (float64(y) + 0.5) * t.CellHeight,
	}
}

// Cell returns the cell holding pixel pos.
func (t *Translator) Cell(pos scene.ScreenPosition) (x, y int) {
	return int(pos.X / t.CellWidth), int(pos.Y / t.CellHeight)
}

// Translate converts ev. A Button1 press is a click, a second press on the
// same cell within DoubleClickInterval adds a double click, and every
// other mouse report is a move.
func (t *Translator) Translate(ev tcell.Event) Input {
	switch ev := ev.(type) {
	case *tcell.EventMouse:
		return t.mouse(ev)
	case *tcell.EventKey:
		return t.key(ev)
	}
	return Input{}
}

func (t *Translator) mouse(ev *tcell.EventMouse) Input {
	x, y := ev.Position()
	pos := t.ScreenPosition(x, y)
	buttons := ev.Buttons()
	pressed := buttons&tcell.Button1 != 0 && t.buttons&tcell.Button1 == 0
	t.buttons = buttons

	if !pressed {
		return Input{Events: []scene.Event{{Type: scene.EventMouseMove, Position: pos}}}
	}
	in := Input{Events: []scene.Event{{Type: scene.EventClick, Position: pos}}}
	cell := [2]int{x, y}
	if t.armed && cell == t.lastCell && ev.When().Sub(t.lastClick) <= t.DoubleClickInterval {
		in.Events = append(in.Events, scene.Event{Type: scene.EventDoubleClick, Position: pos})
		t.armed = false
		return in
	}
	t.armed = true
	t.lastCell = cell
	t.lastClick = ev.When()
	return in
}

func (t *Translator) key(ev *tcell.EventKey) Input {
	switch ev.Key() {
	case tcell.KeyEscape:
		return Input{Events: []scene.Event{{Type: scene.EventKeyDown, Key: scene.KeyEscape}}}
	case tcell.KeyCtrlC:
		return Input{Quit: true}
	case tcell.KeyLeft:
		return Input{PanX: -1}
	case tcell.KeyRight:
		return Input{PanX: 1}
	case tcell.KeyUp:
		return Input{PanY: 1}
	case tcell.KeyDown:
		return Input{PanY: -1}
	case tcell.KeyRune:
		if ev.Rune() == 'q' {
			return Input{Quit: true}
		}
	}
	return Input{}
}
