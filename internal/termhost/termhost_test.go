package termhost

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/paulmach/orb"

	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/primitive"
	"github.com/signalsfoundry/globedraw/scene"
)

func types(events []scene.Event) []scene.EventType {
	out := make([]scene.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestTranslatePressIsClick(t *testing.T) {
	tr := NewTranslator()
	in := tr.Translate(tcell.NewEventMouse(3, 2, tcell.Button1, tcell.ModNone))
	if len(in.Events) != 1 || in.Events[0].Type != scene.EventClick {
		t.Fatalf("events = %v, want click", types(in.Events))
	}
	want := scene.ScreenPosition{X: 3.5 * DefaultCellWidth, Y: 2.5 * DefaultCellHeight}
	if in.Events[0].Position != want {
		t.Fatalf("position = %+v, want %+v", in.Events[0].Position, want)
	}

	// Holding the button reports moves, not more clicks.
	in = tr.Translate(tcell.NewEventMouse(4, 2, tcell.Button1, tcell.ModNone))
	if len(in.Events) != 1 || in.Events[0].Type != scene.EventMouseMove {
		t.Fatalf("drag events = %v, want mouse-move", types(in.Events))
	}
}

func TestTranslateDoubleClick(t *testing.T) {
	tr := NewTranslator()
	tr.Translate(tcell.NewEventMouse(5, 5, tcell.Button1, tcell.ModNone))
	tr.Translate(tcell.NewEventMouse(5, 5, tcell.ButtonNone, tcell.ModNone))
	in := tr.Translate(tcell.NewEventMouse(5, 5, tcell.Button1, tcell.ModNone))
	got := types(in.Events)
	if len(got) != 2 || got[0] != scene.EventClick || got[1] != scene.EventDoubleClick {
		t.Fatalf("events = %v, want click then double-click", got)
	}

	// A third press starts a new pair.
	tr.Translate(tcell.NewEventMouse(5, 5, tcell.ButtonNone, tcell.ModNone))
	in = tr.Translate(tcell.NewEventMouse(5, 5, tcell.Button1, tcell.ModNone))
	if len(in.Events) != 1 {
		t.Fatalf("third press events = %v, want a single click", types(in.Events))
	}
}

func TestTranslateDoubleClickNeedsSameCell(t *testing.T) {
	tr := NewTranslator()
	tr.Translate(tcell.NewEventMouse(5, 5, tcell.Button1, tcell.ModNone))
	tr.Translate(tcell.NewEventMouse(5, 5, tcell.ButtonNone, tcell.ModNone))
	in := tr.Translate(tcell.NewEventMouse(9, 5, tcell.Button1, tcell.ModNone))
	if len(in.Events) != 1 || in.Events[0].Type != scene.EventClick {
		t.Fatalf("events = %v, want click only", types(in.Events))
	}
}

func TestTranslateKeys(t *testing.T) {
	tr := NewTranslator()
	in := tr.Translate(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
	if len(in.Events) != 1 || in.Events[0].Type != scene.EventKeyDown || in.Events[0].Key != scene.KeyEscape {
		t.Fatalf("escape = %+v", in)
	}
	if !tr.Translate(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)).Quit {
		t.Fatalf("q should quit")
	}
	if !tr.Translate(tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl)).Quit {
		t.Fatalf("ctrl-c should quit")
	}
	if in := tr.Translate(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)); in.PanY != 1 || in.PanX != 0 {
		t.Fatalf("up = %+v, want north pan", in)
	}
}

func simulationScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("")
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	s.SetSize(w, h)
	t.Cleanup(s.Fini)
	return s
}

func newScene() *scene.Scene {
	return scene.New(scene.Viewport{Bound: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}})
}

func TestRenderDrawsCollections(t *testing.T) {
	screen := simulationScreen(t, 20, 11)
	sc := newScene()
	h := NewHost(screen, sc, nil)
	h.Fit()
	h.Status = func() string { return "drawing" }

	c := scene.NewCollection("test")
	c.AddPrimitive(primitive.NewPolyline([]geodesy.Cartesian3{
		geodesy.FromDegreesToCartesian(0.5, 5.3, 0),
		geodesy.FromDegreesToCartesian(9.5, 5.3, 0),
	}, primitive.Style{Color: "#00ff00"}))
	c.AddBillboard(primitive.NewBillboard(geodesy.FromDegreesToCartesian(5.3, 5.3, 0), primitive.BillboardOptions{Color: "#ff0000"}))
	sc.AddCollection(c)
	h.Render()

	if ch, _, _, _ := screen.GetContent(3, 4); ch != lineGlyph {
		t.Fatalf("cell (3,4) = %q, want line glyph", ch)
	}
	ch, _, style, _ := screen.GetContent(10, 4)
	if ch != billboardGlyph {
		t.Fatalf("cell (10,4) = %q, want billboard glyph", ch)
	}
	if fg, _, _ := style.Decompose(); fg != tcell.NewRGBColor(255, 0, 0) {
		t.Fatalf("billboard colour = %v, want red", fg)
	}
	if ch, _, _, _ := screen.GetContent(0, 10); ch != 'd' {
		t.Fatalf("status row starts with %q, want d", ch)
	}

	c.SetShow(false)
	h.Render()
	if ch, _, _, _ := screen.GetContent(10, 4); ch == billboardGlyph {
		t.Fatalf("hidden collection still drawn")
	}
}

func TestHostPanEndsCameraMove(t *testing.T) {
	screen := simulationScreen(t, 20, 11)
	sc := newScene()
	h := NewHost(screen, sc, nil)
	h.Fit()

	var got []scene.EventType
	sc.Subscribe(func(ev scene.Event) { got = append(got, ev.Type) })
	var changed scene.Viewport
	h.OnViewportChange = func(v scene.Viewport) { changed = v }

	if h.Handle(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone)) {
		t.Fatalf("arrow key should not quit")
	}
	if left := sc.Viewport().Bound.Left(); left != 1 {
		t.Fatalf("left = %v, want 1 after panning east", left)
	}
	if changed.Bound.Left() != 1 {
		t.Fatalf("OnViewportChange saw %+v", changed.Bound)
	}
	if len(got) != 1 || got[0] != scene.EventCameraMoveEnd {
		t.Fatalf("events = %v, want camera-move-end", got)
	}

	h.Handle(tcell.NewEventMouse(2, 2, tcell.Button1, tcell.ModNone))
	if got[len(got)-1] != scene.EventClick {
		t.Fatalf("events = %v, want a click dispatched", got)
	}
	if !h.Handle(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
		t.Fatalf("q should quit")
	}
}

func TestFitLeavesStatusRow(t *testing.T) {
	screen := simulationScreen(t, 20, 11)
	sc := newScene()
	NewHost(screen, sc, nil).Fit()
	v := sc.Viewport()
	if v.Width != 20*DefaultCellWidth || v.Height != 10*DefaultCellHeight {
		t.Fatalf("viewport = %vx%v", v.Width, v.Height)
	}
}
