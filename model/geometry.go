package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	geojson "github.com/paulmach/go.geojson"
)

// GeometryType identifies the shape a feature is drawn or edited as.
type GeometryType string

const (
	GeometryPoint      GeometryType = "Point"
	GeometryLineString GeometryType = "LineString"
	GeometryPolygon    GeometryType = "Polygon"
	// GeometryCircle is encoded on the wire as a Point carrying a radius
	// property in metres.
	GeometryCircle GeometryType = "Circle"
)

// Feature property keys written and read by the engines.
const (
	PropGeodesic           = "geodesic"
	PropRadius             = "radius"
	PropRadiusUom          = "radiusUom"
	PropLength             = "length"
	PropLengthUom          = "lengthUom"
	PropArea               = "area"
	PropAreaUom            = "areaUom"
	PropHeight             = "height"
	PropHeightUom          = "heightUom"
	PropTerrainCoordinates = "terrainCoordinates"
)

var (
	// ErrUnsupportedGeometry is returned for multi-geometries, geometry
	// collections and anything else outside Point, LineString, Polygon and
	// Circle.
	ErrUnsupportedGeometry = errors.New("model: unsupported geometry")
	// ErrMissingGeometry is returned for features with a null geometry.
	ErrMissingGeometry = errors.New("model: feature has no geometry")
	// ErrInvalidDocument is returned when input is neither a GeoJSON
	// Feature nor a FeatureCollection.
	ErrInvalidDocument = errors.New("model: invalid geojson document")
)

// Valid reports whether t is one of the supported geometry types.
func (t GeometryType) Valid() bool {
	switch t {
	case GeometryPoint, GeometryLineString, GeometryPolygon, GeometryCircle:
		return true
	default:
		return false
	}
}

// ParseGeometryType validates a geometry type name.
func ParseGeometryType(s string) (GeometryType, error) {
	t := GeometryType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedGeometry, s)
	}
	return t, nil
}

// GeometryTypeResolver maps a feature to the geometry type it is edited as.
type GeometryTypeResolver func(f *geojson.Feature) (GeometryType, error)

// ResolveGeometryType is the default GeometryTypeResolver. Points with a
// numeric radius property are circles.
func ResolveGeometryType(f *geojson.Feature) (GeometryType, error) {
	if f == nil || f.Geometry == nil {
		return "", ErrMissingGeometry
	}
	g := f.Geometry
	switch g.Type {
	case geojson.GeometryPoint:
		if len(g.Point) < 2 {
			return "", fmt.Errorf("%w: point has %d values", ErrUnsupportedGeometry, len(g.Point))
		}
		if _, ok := Radius(f); ok {
			return GeometryCircle, nil
		}
		return GeometryPoint, nil
	case geojson.GeometryLineString:
		if err := checkPositions(g.LineString); err != nil {
			return "", err
		}
		return GeometryLineString, nil
	case geojson.GeometryPolygon:
		if len(g.Polygon) == 0 {
			return "", fmt.Errorf("%w: polygon without rings", ErrUnsupportedGeometry)
		}
		if err := checkPositions(g.Polygon[0]); err != nil {
			return "", err
		}
		return GeometryPolygon, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.Type)
	}
}

func checkPositions(positions [][]float64) error {
	for i, p := range positions {
		if len(p) < 2 {
			return fmt.Errorf("%w: position %d has %d values", ErrUnsupportedGeometry, i, len(p))
		}
	}
	return nil
}

// IsGeodesic reports whether the feature asks for geodesic rendering.
func IsGeodesic(f *geojson.Feature) bool {
	if f == nil || f.Properties == nil {
		return false
	}
	v, _ := f.Properties[PropGeodesic].(bool)
	return v
}

// Radius returns the numeric radius property, if any.
func Radius(f *geojson.Feature) (float64, bool) {
	if f == nil || f.Properties == nil {
		return 0, false
	}
	return toFloat(f.Properties[PropRadius])
}

// FeatureID returns the feature id as a string. Numeric ids are formatted
// without exponent.
func FeatureID(f *geojson.Feature) (string, bool) {
	if f == nil {
		return "", false
	}
	switch v := f.ID.(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

// CloneFeature deep-copies the geometry and shallow-copies the properties.
func CloneFeature(f *geojson.Feature) *geojson.Feature {
	if f == nil {
		return nil
	}
	out := *f
	if f.Properties != nil {
		out.Properties = make(map[string]interface{}, len(f.Properties))
		for k, v := range f.Properties {
			out.Properties[k] = v
		}
	}
	out.Geometry = cloneGeometry(f.Geometry)
	return &out
}

func cloneGeometry(g *geojson.Geometry) *geojson.Geometry {
	if g == nil {
		return nil
	}
	out := *g
	out.Point = clonePosition(g.Point)
	out.LineString = clonePositions(g.LineString)
	if g.Polygon != nil {
		out.Polygon = make([][][]float64, len(g.Polygon))
		for i, ring := range g.Polygon {
			out.Polygon[i] = clonePositions(ring)
		}
	}
	return &out
}

func clonePosition(p []float64) []float64 {
	if p == nil {
		return nil
	}
	return append([]float64(nil), p...)
}

func clonePositions(ps [][]float64) [][]float64 {
	if ps == nil {
		return nil
	}
	out := make([][]float64, len(ps))
	for i, p := range ps {
		out[i] = clonePosition(p)
	}
	return out
}

// WithZeroHeight returns positions with a missing height filled in as 0.
func WithZeroHeight(positions [][]float64) [][]float64 {
	out := make([][]float64, len(positions))
	for i, p := range positions {
		switch {
		case len(p) >= 3:
			out[i] = clonePosition(p)
		case len(p) == 2:
			out[i] = []float64{p[0], p[1], 0}
		default:
			out[i] = clonePosition(p)
		}
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
