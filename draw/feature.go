package draw

import (
	"github.com/google/uuid"
	geojson "github.com/paulmach/go.geojson"

	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/model"
)

const distinctEpsilon = 1e-6

// measures are the properties written onto a finished feature.
type measures struct {
	area               float64
	length             float64
	height             float64
	terrainCoordinates []float64
	geodesic           bool
}

func exportPosition(p geodesy.Cartesian3, geodesic bool) []float64 {
	if geodesic {
		return geodesy.CartesianToArrayAtHeight(p, 0)
	}
	return geodesy.CartesianToArray(p)
}

func exportPositions(coords []geodesy.Cartesian3, geodesic bool) [][]float64 {
	out := make([][]float64, len(coords))
	for i, c := range coords {
		out[i] = exportPosition(c, geodesic)
	}
	return out
}

// toFeature maps drawn coordinates to a GeoJSON feature. Circles become a
// Point at the centre with a radius property.
func toFeature(typ model.GeometryType, coords []geodesy.Cartesian3, m measures) *geojson.Feature {
	if len(coords) == 0 {
		return nil
	}
	var f *geojson.Feature
	switch typ {
	case model.GeometryPoint:
		f = geojson.NewPointFeature(exportPosition(coords[len(coords)-1], m.geodesic))
		if m.terrainCoordinates != nil {
			f.SetProperty(model.PropHeight, m.height)
			f.SetProperty(model.PropHeightUom, "m")
			f.SetProperty(model.PropTerrainCoordinates, m.terrainCoordinates)
		} else {
			f.SetProperty(model.PropGeodesic, m.geodesic)
		}
	case model.GeometryLineString:
		f = geojson.NewLineStringFeature(exportPositions(coords, m.geodesic))
		f.SetProperty(model.PropLength, m.length)
		f.SetProperty(model.PropLengthUom, "m")
		f.SetProperty(model.PropGeodesic, m.geodesic)
	case model.GeometryPolygon:
		f = geojson.NewPolygonFeature([][][]float64{exportPositions(coords, m.geodesic)})
		f.SetProperty(model.PropArea, m.area)
		f.SetProperty(model.PropAreaUom, "sqm")
		f.SetProperty(model.PropLength, m.length)
		f.SetProperty(model.PropLengthUom, "m")
		f.SetProperty(model.PropGeodesic, m.geodesic)
	case model.GeometryCircle:
		if len(coords) < 2 {
			return nil
		}
		f = geojson.NewPointFeature(exportPosition(coords[0], m.geodesic))
		f.SetProperty(model.PropRadius, geodesy.Distance(coords[:2], m.geodesic))
		f.SetProperty(model.PropRadiusUom, "m")
		f.SetProperty(model.PropGeodesic, m.geodesic)
	default:
		return nil
	}
	f.ID = uuid.NewString()
	return f
}

// distinctVertices counts positions that differ from every earlier one.
func distinctVertices(coords []geodesy.Cartesian3) int {
	n := 0
	for i, c := range coords {
		seen := false
		for _, prev := range coords[:i] {
			if c.Equal(prev, distinctEpsilon) {
				seen = true
				break
			}
		}
		if !seen {
			n++
		}
	}
	return n
}

// validate reports whether a finished session yields a feature. Any
// LineString is accepted; a Polygon needs more than two distinct vertices.
func validate(typ model.GeometryType, coords []geodesy.Cartesian3, coordinatesLength int) bool {
	if coordinatesLength > 0 && coordinatesLength != len(coords) {
		return false
	}
	switch typ {
	case model.GeometryPoint:
		return len(coords) > 0
	case model.GeometryLineString:
		return len(coords) > 0
	case model.GeometryPolygon:
		return distinctVertices(coords) > 2
	case model.GeometryCircle:
		return len(coords) == 2
	default:
		return false
	}
}
