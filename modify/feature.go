package modify

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"

	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/model"
)

// tracked is a feature of the current document together with the values
// the engine reads on every event.
type tracked struct {
	id       string
	hasID    bool
	feature  *geojson.Feature
	typ      model.GeometryType
	geodesic bool
	radius   float64
	// coords holds the point, the line vertices or the outer ring.
	coords []geodesy.Cartesian3
}

func track(f *geojson.Feature, resolve model.GeometryTypeResolver) (tracked, error) {
	typ, err := resolve(f)
	if err != nil {
		return tracked{}, err
	}
	if !typ.Valid() {
		return tracked{}, fmt.Errorf("%w: %s", model.ErrUnsupportedGeometry, typ)
	}
	positions, err := positionsOf(f, typ)
	if err != nil {
		return tracked{}, err
	}
	coords, err := geodesy.ArraysToCartesians(positions)
	if err != nil {
		return tracked{}, fmt.Errorf("%w: %v", model.ErrUnsupportedGeometry, err)
	}
	t := tracked{feature: f, typ: typ, geodesic: model.IsGeodesic(f), coords: coords}
	t.id, t.hasID = model.FeatureID(f)
	t.radius, _ = model.Radius(f)
	return t, nil
}

// positionsOf returns the editable positions of f when edited as typ.
func positionsOf(f *geojson.Feature, typ model.GeometryType) ([][]float64, error) {
	g := f.Geometry
	if g == nil {
		return nil, model.ErrMissingGeometry
	}
	switch {
	case (typ == model.GeometryPoint || typ == model.GeometryCircle) && g.IsPoint():
		return [][]float64{g.Point}, nil
	case typ == model.GeometryLineString && g.IsLineString():
		return g.LineString, nil
	case typ == model.GeometryPolygon && g.IsPolygon() && len(g.Polygon) > 0:
		return g.Polygon[0], nil
	default:
		return nil, fmt.Errorf("%w: %s geometry edited as %s", model.ErrUnsupportedGeometry, g.Type, typ)
	}
}

// dropPosition converts a picked position into a GeoJSON position. Geodesic
// features stay on the ellipsoid surface.
func dropPosition(c geodesy.Cartographic, geodesic bool) []float64 {
	if geodesic {
		return geodesy.CartographicToArrayAtHeight(c, 0)
	}
	return geodesy.CartographicToArray(c)
}

// editPositions maps the editable positions of f through fn and writes
// them back with missing heights set to 0. Polygon holes are kept.
func editPositions(f *geojson.Feature, fn func([][]float64) [][]float64) *geojson.Feature {
	out := model.CloneFeature(f)
	g := out.Geometry
	switch {
	case g.IsPoint():
		edited := model.WithZeroHeight(fn([][]float64{g.Point}))
		if len(edited) > 0 {
			g.Point = edited[0]
		}
	case g.IsLineString():
		g.LineString = model.WithZeroHeight(fn(g.LineString))
	case g.IsPolygon() && len(g.Polygon) > 0:
		g.Polygon[0] = model.WithZeroHeight(fn(g.Polygon[0]))
	}
	return out
}

// commitHandle applies a drop at c to the part of t picked by h.
func commitHandle(t tracked, h model.Handle, c geodesy.Cartographic) *geojson.Feature {
	p := dropPosition(c, t.geodesic)
	switch h.Kind {
	case model.HandleCircleCenter:
		return editPositions(t.feature, func([][]float64) [][]float64 {
			return [][]float64{p}
		})
	case model.HandleCircleBody:
		out := model.CloneFeature(t.feature)
		if out.Properties == nil {
			out.Properties = make(map[string]interface{})
		}
		out.Properties[model.PropRadius] = geodesy.Distance([]geodesy.Cartesian3{t.coords[0], c.ToCartesian()}, t.geodesic)
		return out
	case model.HandleVertex:
		return editPositions(t.feature, func(positions [][]float64) [][]float64 {
			last := len(positions) - 1
			for idx := range positions {
				if idx == h.Index || (t.typ == model.GeometryPolygon && (h.Index == 0 || h.Index == last) && (idx == 0 || idx == last)) {
					positions[idx] = p
				}
			}
			return positions
		})
	case model.HandleSegment:
		return editPositions(t.feature, func(positions [][]float64) [][]float64 {
			if h.Index < 0 || h.Index >= len(positions) {
				return positions
			}
			out := make([][]float64, 0, len(positions)+1)
			out = append(out, positions[:h.Index+1]...)
			out = append(out, p)
			return append(out, positions[h.Index+1:]...)
		})
	default:
		return model.CloneFeature(t.feature)
	}
}

// extendLine appends a vertex at c to a LineString.
func extendLine(t tracked, c geodesy.Cartographic) *geojson.Feature {
	p := dropPosition(c, t.geodesic)
	return editPositions(t.feature, func(positions [][]float64) [][]float64 {
		return append(positions, p)
	})
}

// trimLine drops the trailing vertex of a LineString, keeping at least two.
func trimLine(t tracked) *geojson.Feature {
	return editPositions(t.feature, func(positions [][]float64) [][]float64 {
		if len(positions) <= 2 {
			return positions
		}
		return positions[:len(positions)-1]
	})
}
