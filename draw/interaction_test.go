package draw

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/model"
	"github.com/signalsfoundry/globedraw/scene"
	"github.com/signalsfoundry/globedraw/timectrl"
)

type recorder struct {
	mu       sync.Mutex
	sessions map[string]int
}

func (r *recorder) ObserveDrawSession(geometry, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions == nil {
		r.sessions = make(map[string]int)
	}
	r.sessions[geometry+"/"+outcome]++
}

type capture struct {
	mu      sync.Mutex
	starts  []Preview
	drawing []Preview
	moves   []Preview
	ends    []Result
}

func (c *capture) options(typ model.GeometryType) Options {
	return Options{
		Type:              typ,
		MouseMoveThrottle: -1,
		Clock:             timectrl.NewTimeController(time.Unix(0, 0)),
		OnDrawStart:       func(p Preview) { c.mu.Lock(); c.starts = append(c.starts, p); c.mu.Unlock() },
		OnDrawing:         func(p Preview) { c.mu.Lock(); c.drawing = append(c.drawing, p); c.mu.Unlock() },
		OnMouseMove:       func(p Preview) { c.mu.Lock(); c.moves = append(c.moves, p); c.mu.Unlock() },
		OnDrawEnd:         func(r Result) { c.mu.Lock(); c.ends = append(c.ends, r); c.mu.Unlock() },
	}
}

func newScene() *scene.Scene {
	return scene.New(scene.Viewport{
		Width:  1000,
		Height: 1000,
		Bound:  orb.Bound{Min: orb.Point{9, 44}, Max: orb.Point{12, 46}},
	})
}

func newInteraction(t *testing.T, s *scene.Scene, opts Options) *Interaction {
	t.Helper()
	i, err := New(s, opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(i.Remove)
	return i
}

func TestDrawLineStringEndToEnd(t *testing.T) {
	s := newScene()
	var c capture
	rec := &recorder{}
	opts := c.options(model.GeometryLineString)
	opts.Metrics = rec
	i := newInteraction(t, s, opts)

	s.Click(s.At(10, 45))
	if !i.Drawing() || len(c.starts) != 1 {
		t.Fatalf("first click did not start a session")
	}
	s.Click(s.At(11, 45))
	s.DoubleClick(s.At(11.5, 45))

	if len(c.ends) != 1 {
		t.Fatalf("OnDrawEnd called %d times, want 1", len(c.ends))
	}
	f := c.ends[0].Feature
	if f == nil || f.Geometry == nil || !f.Geometry.IsLineString() {
		t.Fatalf("expected a LineString feature, got %+v", f)
	}
	coords := f.Geometry.LineString
	if len(coords) != 3 {
		t.Fatalf("coordinates length = %d, want 3", len(coords))
	}
	last := coords[2]
	if math.Abs(last[0]-11.5) > 1e-6 || math.Abs(last[1]-45) > 1e-6 {
		t.Fatalf("last coordinate = %v, want (11.5, 45)", last)
	}
	if f.ID == nil || f.Properties[model.PropLengthUom] != "m" {
		t.Fatalf("unexpected feature metadata: id=%v props=%v", f.ID, f.Properties)
	}
	if got, want := f.Properties[model.PropLength].(float64), geodesy.Distance(c.ends[0].Coordinates, false); got != want {
		t.Fatalf("length = %v, want %v", got, want)
	}
	if i.Drawing() || i.preview.Len() != 0 {
		t.Fatalf("session not reset after draw end")
	}
	if rec.sessions["LineString/completed"] != 1 {
		t.Fatalf("metrics = %v", rec.sessions)
	}
}

func TestDrawDegeneratePolygonEmitsNoFeature(t *testing.T) {
	s := newScene()
	var c capture
	rec := &recorder{}
	opts := c.options(model.GeometryPolygon)
	opts.Metrics = rec
	i := newInteraction(t, s, opts)

	s.Click(s.At(10, 45))
	s.Click(s.At(11, 45))
	s.DoubleClick(s.At(11, 45))

	if len(c.ends) != 1 {
		t.Fatalf("OnDrawEnd called %d times, want 1", len(c.ends))
	}
	if c.ends[0].Feature != nil {
		t.Fatalf("expected no feature, got %+v", c.ends[0].Feature)
	}
	if i.Drawing() || len(i.Coordinates()) != 0 {
		t.Fatalf("engine did not return to idle")
	}
	if rec.sessions["Polygon/invalid"] != 1 {
		t.Fatalf("metrics = %v", rec.sessions)
	}
}

func TestDrawLineStringOnSinglePointCompletes(t *testing.T) {
	s := newScene()
	var c capture
	rec := &recorder{}
	opts := c.options(model.GeometryLineString)
	opts.Metrics = rec
	i := newInteraction(t, s, opts)

	s.Click(s.At(10, 45))
	s.DoubleClick(s.At(10, 45))

	if len(c.ends) != 1 {
		t.Fatalf("OnDrawEnd called %d times, want 1", len(c.ends))
	}
	f := c.ends[0].Feature
	if f == nil || f.Geometry == nil || !f.Geometry.IsLineString() {
		t.Fatalf("expected a LineString feature, got %+v", f)
	}
	if len(f.Geometry.LineString) != 2 {
		t.Fatalf("coordinates length = %d, want 2", len(f.Geometry.LineString))
	}
	if got := f.Properties[model.PropLength].(float64); got != 0 {
		t.Fatalf("length = %v, want 0", got)
	}
	if i.Drawing() {
		t.Fatalf("engine did not return to idle")
	}
	if rec.sessions["LineString/completed"] != 1 {
		t.Fatalf("metrics = %v", rec.sessions)
	}
}

func TestDrawPolygonClosesRing(t *testing.T) {
	s := newScene()
	var c capture
	newInteraction(t, s, c.options(model.GeometryPolygon))

	s.Click(s.At(10, 45))
	s.Click(s.At(11, 45))
	s.Click(s.At(11, 45.5))
	s.DoubleClick(s.At(10, 45.5))

	if len(c.ends) != 1 || c.ends[0].Feature == nil {
		t.Fatalf("expected a polygon feature")
	}
	ring := c.ends[0].Feature.Geometry.Polygon[0]
	if len(ring) != 5 {
		t.Fatalf("ring length = %d, want 5", len(ring))
	}
	first, last := ring[0], ring[len(ring)-1]
	if first[0] != last[0] || first[1] != last[1] || first[2] != last[2] {
		t.Fatalf("ring not closed: %v != %v", first, last)
	}
	if c.ends[0].Area <= 0 || c.ends[0].Feature.Properties[model.PropAreaUom] != "sqm" {
		t.Fatalf("unexpected area %v", c.ends[0].Area)
	}
}

func TestDrawCircleRadiusMatchesDistance(t *testing.T) {
	for _, geodesic := range []bool{true, false} {
		s := newScene()
		s.Elevation = func(lon, lat float64) float64 { return 40 }
		var c capture
		opts := c.options(model.GeometryCircle)
		opts.Geodesic = geodesic
		i := newInteraction(t, s, opts)

		s.Click(s.At(10.3, 44.9))
		s.Click(s.At(10.35, 44.85))

		if len(c.ends) != 1 || c.ends[0].Feature == nil {
			t.Fatalf("geodesic=%v: expected a circle feature after two clicks", geodesic)
		}
		if i.Drawing() {
			t.Fatalf("geodesic=%v: circle session still open", geodesic)
		}
		f := c.ends[0].Feature
		if !f.Geometry.IsPoint() {
			t.Fatalf("circle exported as %s, want Point", f.Geometry.Type)
		}
		want := geodesy.Distance(c.ends[0].Coordinates, geodesic)
		if got := f.Properties[model.PropRadius].(float64); math.Abs(got-want) > 1e-6 {
			t.Fatalf("geodesic=%v: radius = %v, want %v", geodesic, got, want)
		}
		wantHeight := 40.0
		if geodesic {
			wantHeight = 0
		}
		if h := f.Geometry.Point[2]; math.Abs(h-wantHeight) > 1e-3 {
			t.Fatalf("geodesic=%v: exported height = %v, want %v", geodesic, h, wantHeight)
		}
		if typ, err := model.ResolveGeometryType(f); err != nil || typ != model.GeometryCircle {
			t.Fatalf("exported feature resolves to %v (%v)", typ, err)
		}
	}
}

func TestDrawCoordinatesLengthForcesEnd(t *testing.T) {
	s := newScene()
	var c capture
	opts := c.options(model.GeometryLineString)
	opts.CoordinatesLength = 3
	newInteraction(t, s, opts)

	s.Click(s.At(10, 45))
	s.Click(s.At(10.5, 45))
	s.Click(s.At(11, 45))

	if len(c.ends) != 1 || c.ends[0].Feature == nil {
		t.Fatalf("expected the third click to finish the line")
	}
	if n := len(c.ends[0].Feature.Geometry.LineString); n != 3 {
		t.Fatalf("coordinates = %d, want 3", n)
	}
	s.Click(s.At(11.5, 45))
	if len(c.starts) != 2 {
		t.Fatalf("a click after the forced end should start a new session")
	}
}

func TestDrawMouseMovePreview(t *testing.T) {
	s := newScene()
	var c capture
	i := newInteraction(t, s, c.options(model.GeometryLineString))

	s.MouseMove(s.At(10, 45))
	if len(c.moves) != 1 || len(c.moves[0].Coordinates) != 1 {
		t.Fatalf("hover before the first click: %+v", c.moves)
	}
	s.Click(s.At(10, 45))
	s.MouseMove(s.At(10.5, 45))
	p := c.moves[1]
	if len(p.Coordinates) != 2 || p.Distance <= 0 || p.PreviousCartesian == nil {
		t.Fatalf("unexpected preview %+v", p)
	}
	if len(i.preview.Primitives()) == 0 || len(i.preview.Billboards()) != 1 {
		t.Fatalf("preview not drawn")
	}
	if len(i.Coordinates()) != 1 {
		t.Fatalf("mouse move must not commit coordinates")
	}
	// the preview is excluded from picking
	if res := s.Pick(s.At(10.5, 45), i.preview); len(res.Objects) != 0 {
		t.Fatalf("preview is pickable through the exclude list")
	}
}

func TestDrawMouseMoveThrottled(t *testing.T) {
	s := newScene()
	var c capture
	clock := timectrl.NewTimeController(time.Unix(0, 0))
	opts := c.options(model.GeometryLineString)
	opts.Clock = clock
	opts.MouseMoveThrottle = 0
	newInteraction(t, s, opts)

	s.MouseMove(s.At(10, 45))
	s.MouseMove(s.At(10.2, 45))
	s.MouseMove(s.At(10.4, 45))
	if len(c.moves) != 1 {
		t.Fatalf("moves inside the window = %d, want 1", len(c.moves))
	}
	clock.Advance(DefaultMouseMoveThrottle)
	if len(c.moves) != 2 {
		t.Fatalf("trailing move not delivered")
	}
	pos := geodesy.CartographicFromCartesian(c.moves[1].Cartesian)
	if math.Abs(pos.LongitudeDegrees()-10.4) > 1e-6 {
		t.Fatalf("trailing move used %v, want the latest position", pos.LongitudeDegrees())
	}
}

type heightSampler struct {
	height float64
	err    error
}

func (h heightSampler) SampleHeights(_ context.Context, _ int, positions []geodesy.Cartographic) ([]geodesy.Cartographic, error) {
	if h.err != nil {
		return nil, h.err
	}
	out := make([]geodesy.Cartographic, len(positions))
	for i, p := range positions {
		out[i] = p.WithHeight(h.height)
	}
	return out, nil
}

func TestDrawPointSamplesTerrain(t *testing.T) {
	s := newScene()
	s.Elevation = func(lon, lat float64) float64 { return 250 }
	var c capture
	opts := c.options(model.GeometryPoint)
	opts.SampleTerrain = true
	opts.Terrain = heightSampler{height: 100}
	i := newInteraction(t, s, opts)

	s.Click(s.At(10, 45))
	i.Wait()

	if len(c.starts) != 1 || len(c.ends) != 1 {
		t.Fatalf("starts=%d ends=%d, want 1 each", len(c.starts), len(c.ends))
	}
	f := c.ends[0].Feature
	if h := f.Properties[model.PropHeight].(float64); math.Abs(h-150) > 1e-3 {
		t.Fatalf("height = %v, want 150", h)
	}
	terrain := f.Properties[model.PropTerrainCoordinates].([]float64)
	if math.Abs(terrain[2]-100) > 1e-3 {
		t.Fatalf("terrain coordinates = %v", terrain)
	}
	if math.Abs(f.Geometry.Point[2]-250) > 1e-3 {
		t.Fatalf("point height = %v, want the picked 250", f.Geometry.Point[2])
	}
}

func TestDrawPointReusesHoverSample(t *testing.T) {
	s := newScene()
	var c capture
	opts := c.options(model.GeometryPoint)
	opts.SampleTerrain = true
	opts.Terrain = heightSampler{height: -20}
	i := newInteraction(t, s, opts)

	s.MouseMove(s.At(10, 45))
	i.Wait()
	if len(i.Coordinates()) != 2 || len(c.moves) != 1 || c.moves[0].Distance <= 0 {
		t.Fatalf("hover sample not applied: %+v", c.moves)
	}
	s.Click(s.At(10, 45))
	if len(c.ends) != 1 {
		t.Fatalf("click with a hover sample should finish synchronously")
	}
	if h := c.ends[0].Feature.Properties[model.PropHeight].(float64); math.Abs(h-20) > 1e-3 {
		t.Fatalf("height = %v, want 20", h)
	}
}

func TestDrawPointTerrainFailureFallsBack(t *testing.T) {
	s := newScene()
	var c capture
	opts := c.options(model.GeometryPoint)
	opts.SampleTerrain = true
	opts.Geodesic = true
	opts.Terrain = heightSampler{err: errors.New("no tiles")}
	i := newInteraction(t, s, opts)

	s.Click(s.At(10, 45))
	i.Wait()

	if len(c.ends) != 1 || c.ends[0].Feature == nil {
		t.Fatalf("expected a fallback point")
	}
	props := c.ends[0].Feature.Properties
	if _, ok := props[model.PropHeight]; ok || props[model.PropGeodesic] != true {
		t.Fatalf("unexpected properties %v", props)
	}
}

type gatedSampler struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (g *gatedSampler) SampleHeights(ctx context.Context, _ int, positions []geodesy.Cartographic) ([]geodesy.Cartographic, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()
	if first {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return positions, nil
}

func TestDrawLatestHoverSampleWins(t *testing.T) {
	s := newScene()
	var c capture
	opts := c.options(model.GeometryPoint)
	opts.SampleTerrain = true
	sampler := &gatedSampler{gate: make(chan struct{})}
	opts.Terrain = sampler
	i := newInteraction(t, s, opts)

	s.MouseMove(s.At(10, 45))
	s.MouseMove(s.At(11, 45))
	close(sampler.gate)
	i.Wait()

	if len(c.moves) != 1 {
		t.Fatalf("OnMouseMove called %d times, want only the latest", len(c.moves))
	}
	coords := i.Coordinates()
	if len(coords) != 2 {
		t.Fatalf("hover = %v", coords)
	}
	if lon := geodesy.CartographicFromCartesian(coords[1]).LongitudeDegrees(); math.Abs(lon-11) > 1e-6 {
		t.Fatalf("hover longitude = %v, want 11", lon)
	}
}

func TestDrawRemoveDiscardsPendingSample(t *testing.T) {
	s := newScene()
	var c capture
	opts := c.options(model.GeometryPoint)
	opts.SampleTerrain = true
	sampler := &gatedSampler{gate: make(chan struct{})}
	opts.Terrain = sampler
	i, err := New(s, opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	s.Click(s.At(10, 45))
	i.Remove()
	close(sampler.gate)
	i.Wait()

	if len(c.starts) != 0 || len(c.ends) != 0 {
		t.Fatalf("callbacks fired after Remove: starts=%d ends=%d", len(c.starts), len(c.ends))
	}
	if s.Subscribers() != 0 || len(s.Collections()) != 0 {
		t.Fatalf("engine left listeners or collections behind")
	}
	s.Click(s.At(10, 45))
	i.Remove()
}

func TestDrawRemoveMidSession(t *testing.T) {
	s := newScene()
	var c capture
	i, err := New(s, c.options(model.GeometryLineString))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	s.Click(s.At(10, 45))
	s.MouseMove(s.At(10.5, 45))
	i.Remove()
	if i.Drawing() || len(c.ends) != 0 || i.preview.Len() != 0 {
		t.Fatalf("Remove emitted or kept a partial session")
	}
}

func TestNewRejectsUnsupportedType(t *testing.T) {
	_, err := New(newScene(), Options{Type: "MultiPolygon"})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
	if _, err := New(nil, Options{Type: model.GeometryPoint}); err == nil {
		t.Fatalf("expected an error without a host")
	}
}
