package termhost

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/paulmach/orb"

	"github.com/signalsfoundry/globedraw/internal/logging"
	"github.com/signalsfoundry/globedraw/scene"
)

const (
	DefaultRefreshInterval = 100 * time.Millisecond
	// DefaultPanFraction is the share of the view one arrow key moves.
	DefaultPanFraction = 0.1
)

// Host drives a scene from a terminal. The caller owns the screen's
// Init and Fini.
type Host struct {
	screen   tcell.Screen
	scene    *scene.Scene
	input    *Translator
	renderer *Renderer
	log      logging.Logger

	// Status, when set, supplies the bottom row text on each frame.
	Status func() string
	// OnViewportChange runs after a pan or resize, before the camera
	// move end is dispatched.
	OnViewportChange func(scene.Viewport)
	RefreshInterval  time.Duration
	PanFraction      float64

	lastRender int64
	dirty      bool
}

// NewHost wraps screen and sc.
func NewHost(screen tcell.Screen, sc *scene.Scene, log logging.Logger) *Host {
	input := NewTranslator()
	return &Host{
		screen:          screen,
		scene:           sc,
		input:           input,
		renderer:        NewRenderer(screen, input),
		log:             logging.OrNoop(log),
		RefreshInterval: DefaultRefreshInterval,
		PanFraction:     DefaultPanFraction,
		lastRender:      -1,
	}
}

// Translator exposes the input mapping, mostly for its cell size.
func (h *Host) Translator() *Translator { return h.input }

// Fit sizes the scene viewport to the screen, keeping its bound. The
// bottom row is left for the status line.
func (h *Host) Fit() {
	w, rows := h.screen.Size()
	if rows > 1 {
		rows--
	}
	v := h.scene.Viewport()
	v.Width = float64(w) * h.input.CellWidth
	v.Height = float64(rows) * h.input.CellHeight
	h.scene.SetViewport(v)
	h.dirty = true
}

// Run polls terminal events and redraws when the scene asked for a render
// or the screen changed. It returns when ctx is done, the screen is
// finalised, or the user quits.
func (h *Host) Run(ctx context.Context) error {
	events := make(chan tcell.Event)
	go func() {
		defer close(events)
		for {
			ev := h.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	h.Fit()
	h.Render()
	ticker := time.NewTicker(h.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if h.Handle(ev) {
				h.log.Info(ctx, "terminal host quit")
				return nil
			}
		case <-ticker.C:
			if h.dirty || h.scene.Renders() != h.lastRender {
				h.Render()
			}
		}
	}
}

// Handle applies one terminal event and reports whether the user quit.
func (h *Host) Handle(ev tcell.Event) bool {
	if _, ok := ev.(*tcell.EventResize); ok {
		h.screen.Sync()
		h.Fit()
		h.viewportChanged()
		return false
	}
	in := h.input.Translate(ev)
	if in.Quit {
		return true
	}
	for _, e := range in.Events {
		h.scene.Dispatch(e)
	}
	if in.PanX != 0 || in.PanY != 0 {
		h.Pan(in.PanX, in.PanY)
	}
	return false
}

// Pan shifts the view by steps of PanFraction and ends the camera move.
func (h *Host) Pan(dx, dy int) {
	v := h.scene.Viewport()
	stepX := (v.Bound.Right() - v.Bound.Left()) * h.PanFraction * float64(dx)
	stepY := (v.Bound.Top() - v.Bound.Bottom()) * h.PanFraction * float64(dy)
	v.Bound = orb.Bound{
		Min: orb.Point{v.Bound.Min[0] + stepX, v.Bound.Min[1] + stepY},
		Max: orb.Point{v.Bound.Max[0] + stepX, v.Bound.Max[1] + stepY},
	}
	h.scene.SetViewport(v)
	h.viewportChanged()
}

func (h *Host) viewportChanged() {
	h.dirty = true
	if h.OnViewportChange != nil {
		h.OnViewportChange(h.scene.Viewport())
	}
	h.scene.CameraMoveEnd()
}

// Render draws one frame.
func (h *Host) Render() {
	h.lastRender = h.scene.Renders()
	h.dirty = false
	status := ""
	if h.Status != nil {
		status = h.Status()
	}
	h.renderer.Draw(h.scene, status)
}
