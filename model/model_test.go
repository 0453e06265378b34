package model

import (
	"encoding/json"
	"errors"
	"testing"

	geojson "github.com/paulmach/go.geojson"
)

func TestResolveGeometryType(t *testing.T) {
	circle := geojson.NewPointFeature([]float64{10.3, 43.9})
	circle.SetProperty(PropRadius, 500.0)

	line := geojson.NewLineStringFeature([][]float64{{10, 45}, {11, 45}})
	poly := geojson.NewPolygonFeature([][][]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})
	point := geojson.NewPointFeature([]float64{1, 2, 3})
	multi := geojson.NewMultiPointFeature([]float64{1, 2}, []float64{3, 4})

	cases := []struct {
		name    string
		feature *geojson.Feature
		want    GeometryType
		err     error
	}{
		{"circle", circle, GeometryCircle, nil},
		{"point", point, GeometryPoint, nil},
		{"line", line, GeometryLineString, nil},
		{"polygon", poly, GeometryPolygon, nil},
		{"multipoint", multi, "", ErrUnsupportedGeometry},
		{"nil geometry", &geojson.Feature{Type: "Feature"}, "", ErrMissingGeometry},
	}
	for _, tc := range cases {
		got, err := ResolveGeometryType(tc.feature)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("%s: error = %v, want %v", tc.name, err, tc.err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: type = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestParseGeometryType(t *testing.T) {
	if _, err := ParseGeometryType("MultiPolygon"); !errors.Is(err, ErrUnsupportedGeometry) {
		t.Fatalf("ParseGeometryType(MultiPolygon) error = %v, want ErrUnsupportedGeometry", err)
	}
	if got, err := ParseGeometryType("Circle"); err != nil || got != GeometryCircle {
		t.Fatalf("ParseGeometryType(Circle) = %v, %v", got, err)
	}
}

func TestFeatureID(t *testing.T) {
	f := geojson.NewPointFeature([]float64{0, 0})
	if _, ok := FeatureID(f); ok {
		t.Fatalf("expected missing id")
	}
	f.ID = "abc"
	if id, _ := FeatureID(f); id != "abc" {
		t.Fatalf("id = %q, want abc", id)
	}
	f.ID = float64(42)
	if id, _ := FeatureID(f); id != "42" {
		t.Fatalf("id = %q, want 42", id)
	}
}

func TestParseDocumentKeepsShape(t *testing.T) {
	single := []byte(`{"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}`)
	doc, err := ParseDocument(single)
	if err != nil {
		t.Fatalf("ParseDocument(feature) error: %v", err)
	}
	if !doc.IsFeature() || len(doc.Features()) != 1 {
		t.Fatalf("expected a single feature document")
	}

	collection := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}},
		{"type":"Feature","id":"b","geometry":{"type":"LineString","coordinates":[[1,2],[3,4]]},"properties":{}}
	]}`)
	doc, err = ParseDocument(collection)
	if err != nil {
		t.Fatalf("ParseDocument(collection) error: %v", err)
	}
	if doc.IsFeature() || len(doc.Features()) != 2 {
		t.Fatalf("expected a two feature collection")
	}

	if _, err := ParseDocument([]byte(`{"type":"Point","coordinates":[1,2]}`)); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("ParseDocument(geometry) error = %v, want ErrInvalidDocument", err)
	}
}

func TestReplaceFeature(t *testing.T) {
	a := geojson.NewPointFeature([]float64{1, 2})
	a.ID = "a"
	b := geojson.NewPointFeature([]float64{3, 4})
	b.ID = "b"
	doc := FromFeatures(a, b)

	moved := CloneFeature(b)
	moved.Geometry.Point = []float64{5, 6, 0}
	out := doc.ReplaceFeature(moved)

	if out.IsFeature() {
		t.Fatalf("collection turned into a single feature")
	}
	got := out.Features()
	if got[0] != a || got[1] != moved {
		t.Fatalf("unexpected features after replace: %+v", got)
	}
	if doc.Features()[1] != b {
		t.Fatalf("original document mutated")
	}

	single := FromFeature(a)
	movedA := CloneFeature(a)
	movedA.Geometry.Point = []float64{0, 0, 0}
	if out := single.ReplaceFeature(movedA); !out.IsFeature() || out.Feature() != movedA {
		t.Fatalf("single feature replace lost its shape")
	}
}

func TestCloneFeatureIsDeep(t *testing.T) {
	f := geojson.NewLineStringFeature([][]float64{{1, 2, 3}, {4, 5, 6}})
	f.SetProperty(PropGeodesic, true)
	c := CloneFeature(f)
	c.Geometry.LineString[0][0] = 99
	c.Properties[PropGeodesic] = false
	if f.Geometry.LineString[0][0] != 1 {
		t.Fatalf("clone shares coordinates")
	}
	if !IsGeodesic(f) {
		t.Fatalf("clone shares properties")
	}
}

func TestDocumentValidate(t *testing.T) {
	ok := geojson.NewPointFeature([]float64{1, 2})
	bad := geojson.NewMultiLineStringFeature([][]float64{{1, 2}, {3, 4}})
	bad.ID = "bad"
	if err := FromFeatures(ok).Validate(nil); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if err := FromFeatures(ok, bad).Validate(nil); !errors.Is(err, ErrUnsupportedGeometry) {
		t.Fatalf("Validate error = %v, want ErrUnsupportedGeometry", err)
	}
}

func TestDocumentMarshal(t *testing.T) {
	f := geojson.NewPointFeature([]float64{1, 2, 0})
	f.ID = "x"
	data, err := json.Marshal(FromFeature(f))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if raw["type"] != "Feature" || raw["id"] != "x" {
		t.Fatalf("unexpected encoding: %s", data)
	}
}

func TestWithZeroHeight(t *testing.T) {
	got := WithZeroHeight([][]float64{{1, 2}, {3, 4, 5}})
	if len(got[0]) != 3 || got[0][2] != 0 || got[1][2] != 5 {
		t.Fatalf("WithZeroHeight = %v", got)
	}
}
