package modify

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	geojson "github.com/paulmach/go.geojson"

	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/model"
	"github.com/signalsfoundry/globedraw/scene"
)

type editRecorder struct {
	edits map[string]int
}

func (r *editRecorder) ObserveEdit(handle string) {
	if r.edits == nil {
		r.edits = make(map[string]int)
	}
	r.edits[handle]++
}

func newScene() *scene.Scene {
	return scene.New(scene.Viewport{
		Width:  1000,
		Height: 1000,
		Bound:  orb.Bound{Min: orb.Point{10.2, 43.8}, Max: orb.Point{10.4, 44.0}},
	})
}

type harness struct {
	scene *scene.Scene
	edit  *Interaction
	docs  []model.Document
}

func newHarness(t *testing.T, doc model.Document, configure func(*Options)) *harness {
	t.Helper()
	h := &harness{scene: newScene()}
	opts := Options{
		GeoJSON:           doc,
		MouseMoveThrottle: -1,
		OnEditEnd:         func(d model.Document) { h.docs = append(h.docs, d) },
	}
	if configure != nil {
		configure(&opts)
	}
	i, err := New(h.scene, opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(i.Remove)
	h.edit = i
	return h
}

func (h *harness) last(t *testing.T) *geojson.Feature {
	t.Helper()
	if len(h.docs) == 0 {
		t.Fatalf("OnEditEnd was not called")
	}
	return h.docs[len(h.docs)-1].Features()[0]
}

func lineFeature(id string, positions ...[]float64) *geojson.Feature {
	f := geojson.NewLineStringFeature(positions)
	f.ID = id
	return f
}

func assertPosition(t *testing.T, got []float64, lon, lat float64) {
	t.Helper()
	if len(got) < 2 || math.Abs(got[0]-lon) > 1e-6 || math.Abs(got[1]-lat) > 1e-6 {
		t.Fatalf("position = %v, want (%v, %v)", got, lon, lat)
	}
}

func TestCircleRadiusDrag(t *testing.T) {
	circle := geojson.NewPointFeature([]float64{10.3, 43.9})
	circle.ID = "c1"
	circle.SetProperty(model.PropRadius, 500.0)
	circle.SetProperty(model.PropGeodesic, true)
	rec := &editRecorder{}
	h := newHarness(t, model.FromFeatures(circle), func(o *Options) {
		o.Metrics = rec
	})

	center := geodesy.FromDegrees(10.3, 43.9, 0)
	rim := geodesy.WGS84.Destination(center, 500, math.Pi/2)
	h.scene.Click(h.scene.At(rim.LongitudeDegrees(), rim.LatitudeDegrees()))
	handle, ok := h.edit.Editing()
	if !ok || handle.Kind != model.HandleCircleBody || handle.FeatureID != "c1" {
		t.Fatalf("Editing() = %v, %v; want the circle body of c1", handle, ok)
	}

	h.scene.MouseMove(h.scene.At(10.35, 43.85))
	if h.edit.preview.Len() == 0 {
		t.Fatalf("radius drag drew no preview")
	}
	h.scene.Click(h.scene.At(10.35, 43.85))

	if len(h.docs) != 1 {
		t.Fatalf("OnEditEnd called %d times, want 1", len(h.docs))
	}
	if h.docs[0].IsFeature() {
		t.Fatalf("collection input came back as a single feature")
	}
	f := h.last(t)
	if id, _ := model.FeatureID(f); id != "c1" {
		t.Fatalf("feature id = %q, want c1", id)
	}
	radius, _ := model.Radius(f)
	want := geodesy.Distance([]geodesy.Cartesian3{
		geodesy.FromDegreesToCartesian(10.3, 43.9, 0),
		geodesy.FromDegreesToCartesian(10.35, 43.85, 0),
	}, true)
	if math.Abs(radius-want) > 1e-3 || math.Abs(radius-6857) > 50 {
		t.Fatalf("radius = %v, want %v (about 6857)", radius, want)
	}
	if p := f.Geometry.Point; len(p) != 2 || p[0] != 10.3 || p[1] != 43.9 {
		t.Fatalf("centre changed to %v", p)
	}
	if r, _ := model.Radius(circle); r != 500 {
		t.Fatalf("input feature mutated: radius %v", r)
	}
	if _, editing := h.edit.Editing(); editing || h.edit.preview.Len() != 0 {
		t.Fatalf("engine not idle after commit")
	}
	if rec.edits["circle-body"] != 1 {
		t.Fatalf("metrics = %v", rec.edits)
	}
}

func TestCircleCenterMoveKeepsRadius(t *testing.T) {
	circle := geojson.NewPointFeature([]float64{10.3, 43.9, 15})
	circle.ID = "c1"
	circle.SetProperty(model.PropRadius, 500.0)
	h := newHarness(t, model.FromFeature(circle), nil)
	h.scene.Elevation = func(lon, lat float64) float64 { return 80 }

	h.scene.Click(h.scene.At(10.3, 43.9))
	if handle, ok := h.edit.Editing(); !ok || handle.Kind != model.HandleCircleCenter {
		t.Fatalf("Editing() = %v, %v; want circle centre", handle, ok)
	}
	h.scene.Click(h.scene.At(10.25, 43.95))

	f := h.last(t)
	assertPosition(t, f.Geometry.Point, 10.25, 43.95)
	if math.Abs(f.Geometry.Point[2]-80) > 1e-3 {
		t.Fatalf("non-geodesic height = %v, want the picked 80", f.Geometry.Point[2])
	}
	if r, _ := model.Radius(f); r != 500 {
		t.Fatalf("radius = %v, want 500", r)
	}
	if !h.docs[0].IsFeature() {
		t.Fatalf("single feature input came back as a collection")
	}
}

func TestGeodesicPointPinnedToSurface(t *testing.T) {
	p := geojson.NewPointFeature([]float64{10.3, 43.9, 40})
	p.ID = "p1"
	p.SetProperty(model.PropGeodesic, true)
	h := newHarness(t, model.FromFeature(p), nil)
	h.scene.Elevation = func(lon, lat float64) float64 { return 120 }

	h.scene.Click(h.scene.At(10.3, 43.9))
	h.scene.MouseMove(h.scene.At(10.32, 43.9))
	if len(h.edit.preview.Billboards()) != 2 {
		t.Fatalf("geodesic point drag should show a cursor and a surface node")
	}
	h.scene.Click(h.scene.At(10.32, 43.9))

	got := h.last(t).Geometry.Point
	assertPosition(t, got, 10.32, 43.9)
	if got[2] != 0 {
		t.Fatalf("geodesic height = %v, want 0", got[2])
	}
}

func TestVertexMove(t *testing.T) {
	line := lineFeature("l1", []float64{10.25, 43.85}, []float64{10.3, 43.85}, []float64{10.35, 43.85})
	h := newHarness(t, model.FromFeatures(line), nil)

	if got := len(h.edit.static.Billboards()); got != 3 {
		t.Fatalf("vertex billboards = %d, want 3", got)
	}
	if got := len(h.edit.static.Primitives()); got != 4 {
		t.Fatalf("segment primitives = %d, want 4", got)
	}

	h.scene.Click(h.scene.At(10.3, 43.85))
	if handle, ok := h.edit.Editing(); !ok || handle.Kind != model.HandleVertex || handle.Index != 1 {
		t.Fatalf("Editing() = %v, %v; want vertex 1", handle, ok)
	}
	h.scene.MouseMove(h.scene.At(10.3, 43.95))
	if len(h.edit.preview.Primitives()) != 1 {
		t.Fatalf("vertex drag should draw one line through its neighbours")
	}
	h.scene.Click(h.scene.At(10.3, 43.95))

	coords := h.last(t).Geometry.LineString
	if len(coords) != 3 {
		t.Fatalf("coordinates = %d, want 3", len(coords))
	}
	assertPosition(t, coords[1], 10.3, 43.95)
	for _, c := range coords {
		if len(c) != 3 {
			t.Fatalf("missing heights not filled: %v", coords)
		}
	}
	if orig := line.Geometry.LineString[1]; orig[1] != 43.85 {
		t.Fatalf("input line mutated: %v", orig)
	}
	// the engine tracks its own commit
	if got := h.edit.Document().Features()[0].Geometry.LineString[1]; math.Abs(got[1]-43.95) > 1e-6 {
		t.Fatalf("tracked document not updated: %v", got)
	}
}

func TestSegmentInsert(t *testing.T) {
	line := lineFeature("l1", []float64{10.25, 43.85}, []float64{10.3, 43.85}, []float64{10.35, 43.85})
	h := newHarness(t, model.FromFeatures(line), nil)

	h.scene.Click(h.scene.At(10.275, 43.85))
	if handle, ok := h.edit.Editing(); !ok || handle.Kind != model.HandleSegment || handle.Index != 0 {
		t.Fatalf("Editing() = %v, %v; want segment 0", handle, ok)
	}
	h.scene.Click(h.scene.At(10.275, 43.9))

	coords := h.last(t).Geometry.LineString
	if len(coords) != 4 {
		t.Fatalf("coordinates = %d, want 4", len(coords))
	}
	assertPosition(t, coords[0], 10.25, 43.85)
	assertPosition(t, coords[1], 10.275, 43.9)
	assertPosition(t, coords[2], 10.3, 43.85)
}

func TestPolygonEndsMoveTogether(t *testing.T) {
	ring := [][]float64{{10.25, 43.85}, {10.35, 43.85}, {10.35, 43.95}, {10.25, 43.85}}
	poly := geojson.NewPolygonFeature([][][]float64{ring, {{10.3, 43.88}, {10.31, 43.88}, {10.31, 43.89}, {10.3, 43.88}}})
	poly.ID = "g1"
	h := newHarness(t, model.FromFeatures(poly), nil)

	h.scene.Click(h.scene.At(10.25, 43.85))
	handle, ok := h.edit.Editing()
	if !ok || handle.Kind != model.HandleVertex {
		t.Fatalf("Editing() = %v, %v; want a vertex", handle, ok)
	}
	h.scene.MouseMove(h.scene.At(10.22, 43.82))
	h.scene.Click(h.scene.At(10.22, 43.82))

	g := h.last(t).Geometry
	updated := g.Polygon[0]
	assertPosition(t, updated[0], 10.22, 43.82)
	assertPosition(t, updated[len(updated)-1], 10.22, 43.82)
	assertPosition(t, updated[1], 10.35, 43.85)
	if len(g.Polygon) != 2 {
		t.Fatalf("holes dropped: %d rings", len(g.Polygon))
	}
}

func TestVertexNeighboursWrapPolygon(t *testing.T) {
	coords, err := geodesy.ArraysToCartesians([][]float64{{0, 0}, {1, 0}, {1, 1}, {0, 0}})
	if err != nil {
		t.Fatalf("ArraysToCartesians error: %v", err)
	}
	cursor := geodesy.FromDegreesToCartesian(5, 5, 0)
	poly := tracked{typ: model.GeometryPolygon, coords: coords}
	got := vertexNeighbours(poly, 0, cursor)
	if len(got) != 3 || got[0] != coords[2] || got[2] != coords[1] {
		t.Fatalf("polygon neighbours of vertex 0 = %v", got)
	}
	line := tracked{typ: model.GeometryLineString, coords: coords[:3]}
	if got := vertexNeighbours(line, 0, cursor); len(got) != 2 {
		t.Fatalf("line neighbours of vertex 0 = %d positions, want 2", len(got))
	}
}

func TestEscapeCancelsEdit(t *testing.T) {
	line := lineFeature("l1", []float64{10.25, 43.85}, []float64{10.35, 43.85})
	h := newHarness(t, model.FromFeatures(line), nil)

	h.scene.Click(h.scene.At(10.25, 43.85))
	h.scene.MouseMove(h.scene.At(10.3, 43.9))
	if h.edit.preview.Len() == 0 {
		t.Fatalf("expected a drag preview")
	}
	h.scene.KeyDown(scene.KeyEscape)
	if _, ok := h.edit.Editing(); ok || h.edit.preview.Len() != 0 {
		t.Fatalf("escape did not cancel the edit")
	}
	h.scene.Click(h.scene.At(10.3, 43.95))
	if len(h.docs) != 0 {
		t.Fatalf("a cancelled edit was committed")
	}
}

func TestPickMissKeepsEditing(t *testing.T) {
	line := lineFeature("l1", []float64{10.25, 43.85}, []float64{10.35, 43.85})
	h := newHarness(t, model.FromFeatures(line), nil)

	h.scene.Click(h.scene.At(10.25, 43.85))
	h.scene.Click(scene.ScreenPosition{X: -20, Y: -20})
	if _, ok := h.edit.Editing(); !ok || len(h.docs) != 0 {
		t.Fatalf("an off-globe click ended the edit")
	}
}

func TestRejectedEditKeepsEditing(t *testing.T) {
	line := lineFeature("l1", []float64{10.25, 43.85}, []float64{10.3, 43.85}, []float64{10.35, 43.85})
	// lines reaching north of 43.9 are not editable
	resolve := func(f *geojson.Feature) (model.GeometryType, error) {
		for _, c := range f.Geometry.LineString {
			if c[1] > 43.9 {
				return "", model.ErrUnsupportedGeometry
			}
		}
		return model.ResolveGeometryType(f)
	}
	h := newHarness(t, model.FromFeatures(line), func(o *Options) { o.GeometryType = resolve })

	h.scene.Click(h.scene.At(10.3, 43.85))
	h.scene.Click(h.scene.At(10.3, 43.95))
	if handle, ok := h.edit.Editing(); !ok || handle.Index != 1 || len(h.docs) != 0 {
		t.Fatalf("rejected drop ended the edit: editing=%v docs=%d", ok, len(h.docs))
	}
	if got := h.edit.Document().Features()[0].Geometry.LineString[1]; got[1] != 43.85 {
		t.Fatalf("rejected edit reached the document: %v", got)
	}

	h.scene.Click(h.scene.At(10.3, 43.88))
	if _, ok := h.edit.Editing(); ok {
		t.Fatalf("accepted drop left the edit open")
	}
	assertPosition(t, h.last(t).Geometry.LineString[1], 10.3, 43.88)
}

func TestIdleHoverShowsCursor(t *testing.T) {
	line := lineFeature("l1", []float64{10.25, 43.85}, []float64{10.35, 43.85})
	h := newHarness(t, model.FromFeatures(line), nil)

	h.scene.MouseMove(h.scene.At(10.25, 43.85))
	bbs := h.edit.preview.Billboards()
	if len(bbs) != 1 {
		t.Fatalf("hover billboards = %d, want 1", len(bbs))
	}
	if !bbs[0].Position.Equal(geodesy.FromDegreesToCartesian(10.25, 43.85, 0), 1e-6) {
		t.Fatalf("hover cursor not snapped to the vertex")
	}
	h.scene.MouseMove(h.scene.At(10.3, 43.95))
	if h.edit.preview.Len() != 0 {
		t.Fatalf("hover cursor left behind over empty space")
	}
}

func TestLineExtension(t *testing.T) {
	line := lineFeature("l1", []float64{10.25, 43.85}, []float64{10.3, 43.85})
	rec := &editRecorder{}
	h := newHarness(t, model.FromFeature(line), func(o *Options) {
		o.ExtendLineString = true
		o.Metrics = rec
	})

	h.scene.Click(h.scene.At(10.35, 43.9))
	if !h.edit.Extending() || len(h.docs) != 1 {
		t.Fatalf("click on empty space should append and keep extending")
	}
	first := h.docs[0]
	if n := len(first.Feature().Geometry.LineString); n != 3 {
		t.Fatalf("coordinates after first extension = %d, want 3", n)
	}
	h.scene.MouseMove(h.scene.At(10.38, 43.95))
	if len(h.edit.preview.Billboards()) != 1 {
		t.Fatalf("extension preview missing its cursor")
	}

	h.scene.DoubleClick(h.scene.At(10.38, 43.95))
	if h.edit.Extending() {
		t.Fatalf("double click should stop extending")
	}
	coords := h.last(t).Geometry.LineString
	if len(coords) != 4 {
		t.Fatalf("coordinates = %d, want 4", len(coords))
	}
	assertPosition(t, coords[3], 10.38, 43.95)
	if n := len(first.Feature().Geometry.LineString); n != 3 {
		t.Fatalf("earlier document mutated: %d coordinates", n)
	}
	if rec.edits[HandleExtension] != 4 {
		t.Fatalf("metrics = %v", rec.edits)
	}
}

func TestExtensionDisabled(t *testing.T) {
	line := lineFeature("l1", []float64{10.25, 43.85}, []float64{10.3, 43.85})
	h := newHarness(t, model.FromFeature(line), nil)
	h.scene.Click(h.scene.At(10.35, 43.9))
	if h.edit.Extending() || len(h.docs) != 0 {
		t.Fatalf("extension ran without ExtendLineString")
	}
}

func TestFeatureWithoutIDHasNoHandles(t *testing.T) {
	line := geojson.NewLineStringFeature([][]float64{{10.25, 43.85}, {10.35, 43.85}})
	h := newHarness(t, model.FromFeatures(line), nil)
	if h.edit.static.Len() == 0 {
		t.Fatalf("feature without id should still be drawn")
	}
	h.scene.Click(h.scene.At(10.25, 43.85))
	if _, ok := h.edit.Editing(); ok {
		t.Fatalf("feature without id became editable")
	}
}

func TestRejectsMultiGeometry(t *testing.T) {
	multi := geojson.NewMultiPointFeature([]float64{10.3, 43.9}, []float64{10.31, 43.9})
	multi.ID = "m1"
	_, err := New(newScene(), Options{GeoJSON: model.FromFeatures(multi)})
	if !errors.Is(err, model.ErrUnsupportedGeometry) {
		t.Fatalf("New err = %v, want ErrUnsupportedGeometry", err)
	}

	line := lineFeature("l1", []float64{10.25, 43.85}, []float64{10.35, 43.85})
	h := newHarness(t, model.FromFeatures(line), nil)
	if err := h.edit.SetGeoJSON(model.FromFeatures(line, multi)); !errors.Is(err, model.ErrUnsupportedGeometry) {
		t.Fatalf("SetGeoJSON err = %v, want ErrUnsupportedGeometry", err)
	}
	if got := len(h.edit.Document().Features()); got != 1 {
		t.Fatalf("rejected document replaced the tracked one")
	}
}

func TestSetGeoJSONRedraws(t *testing.T) {
	line := lineFeature("l1", []float64{10.25, 43.85}, []float64{10.35, 43.85})
	h := newHarness(t, model.FromFeatures(line), nil)
	h.scene.Click(h.scene.At(10.25, 43.85))

	p := geojson.NewPointFeature([]float64{10.3, 43.9})
	p.ID = "p1"
	if err := h.edit.SetGeoJSON(model.FromFeatures(p)); err != nil {
		t.Fatalf("SetGeoJSON error: %v", err)
	}
	if _, ok := h.edit.Editing(); ok {
		t.Fatalf("edit survived the removal of its feature")
	}
	if len(h.edit.static.Billboards()) != 1 || len(h.edit.static.Primitives()) != 0 {
		t.Fatalf("static primitives not rebuilt")
	}
}

func TestRemoveDetaches(t *testing.T) {
	line := lineFeature("l1", []float64{10.25, 43.85}, []float64{10.35, 43.85})
	s := newScene()
	var docs int
	i, err := New(s, Options{
		GeoJSON:           model.FromFeatures(line),
		MouseMoveThrottle: -1,
		OnEditEnd:         func(model.Document) { docs++ },
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	s.Click(s.At(10.25, 43.85))
	i.Remove()
	s.Click(s.At(10.3, 43.9))
	if docs != 0 || s.Subscribers() != 0 || len(s.Collections()) != 0 {
		t.Fatalf("Remove left the engine attached")
	}
	i.Remove()
}
