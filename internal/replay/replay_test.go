package replay

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalsfoundry/globedraw/internal/config"
	"github.com/signalsfoundry/globedraw/model"
)

type recorder struct {
	sessions map[string]int
	edits    int
}

func (r *recorder) ObserveDrawSession(geometry, outcome string) {
	if r.sessions == nil {
		r.sessions = make(map[string]int)
	}
	r.sessions[geometry+"/"+outcome]++
}

func (r *recorder) ObserveEdit(string) { r.edits++ }

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestReplayDrawsLineString(t *testing.T) {
	s, err := ParseScript([]byte(`
view: {west: 9, south: 44, east: 12, north: 46}
mode: draw
draw:
  type: LineString
steps:
  - click: [10, 45]
  - move: [10.5, 45]
    wait: 200ms
  - click: [11, 45]
  - doubleClick: [11.5, 45]
  - click: [9.5, 44.5]
  - key: Escape
`))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	rec := &recorder{}
	report, err := Runner{Config: config.Default(), Metrics: rec}.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Drawn) != 1 || report.Invalid != 0 {
		t.Fatalf("drawn = %d invalid = %d, want one line", len(report.Drawn), report.Invalid)
	}
	coords := report.Drawn[0].Geometry.LineString
	if len(coords) != 3 || math.Abs(coords[2][0]-11.5) > 1e-6 {
		t.Fatalf("coordinates = %v", coords)
	}
	if rec.sessions["LineString/completed"] != 1 {
		t.Fatalf("metrics = %v", rec.sessions)
	}
	if n := len(report.FeatureCollection().Features); n != 1 {
		t.Fatalf("collection features = %d, want 1", n)
	}
}

func TestReplayModifiesDocument(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "line.geojson", `{"type":"Feature","id":"l1","properties":{},
"geometry":{"type":"LineString","coordinates":[[10.25,43.85],[10.3,43.85],[10.35,43.85]]}}`)
	path := writeFile(t, dir, "edit.yaml", `
view: {west: 10.2, south: 43.8, east: 10.4, north: 44.0}
mode: modify
modify:
  geojson: line.geojson
steps:
  - click: [10.3, 43.85]
  - move: [10.3, 43.95]
    wait: 200ms
  - click: [10.3, 43.95]
`)
	s, err := LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	rec := &recorder{}
	report, err := Runner{Config: config.Default(), Metrics: rec}.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Edits != 1 || rec.edits != 1 {
		t.Fatalf("edits = %d recorded = %d, want 1", report.Edits, rec.edits)
	}
	got := report.Document.Features()[0].Geometry.LineString[1]
	if math.Abs(got[1]-43.95) > 1e-6 {
		t.Fatalf("moved vertex = %v, want latitude 43.95", got)
	}
	if !report.Document.IsFeature() {
		t.Fatalf("document shape changed from a single feature")
	}
}

func TestParseScriptRejectsBadSteps(t *testing.T) {
	_, err := ParseScript([]byte(`
view: {west: 0, south: 0, east: 1, north: 1}
mode: draw
draw:
  type: Hexagon
steps:
  - click: [1]
  - {}
`))
	if !errors.Is(err, ErrInvalidScript) || !errors.Is(err, model.ErrUnsupportedGeometry) {
		t.Fatalf("err = %v, want invalid script with unsupported geometry", err)
	}
}

func TestRunHonoursCancel(t *testing.T) {
	s, err := ParseScript([]byte(`
view: {west: 0, south: 0, east: 1, north: 1}
mode: draw
draw:
  type: Point
steps:
  - click: [0.5, 0.5]
`))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Runner{Config: config.Default()}).Run(ctx, s); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
