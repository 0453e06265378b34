package geodesy

import (
	"errors"
	"fmt"
	"math"
)

// ErrShortPosition is returned when a coordinate array has fewer than two
// elements.
var ErrShortPosition = errors.New("geodesy: position needs at least longitude and latitude")

// CartographicToArray converts c to a GeoJSON position [lon, lat, height]
// in degrees and metres.
func CartographicToArray(c Cartographic) []float64 {
	return []float64{c.LongitudeDegrees(), c.LatitudeDegrees(), c.Height}
}

// CartographicToArrayAtHeight is CartographicToArray with the exported
// height pinned to h, leaving c itself untouched.
func CartographicToArrayAtHeight(c Cartographic, h float64) []float64 {
	return []float64{c.LongitudeDegrees(), c.LatitudeDegrees(), h}
}

// CartesianToArray converts an ECEF position to [lon, lat, height].
func CartesianToArray(p Cartesian3) []float64 {
	return CartographicToArray(CartographicFromCartesian(p))
}

// CartesianToArrayAtHeight converts an ECEF position to [lon, lat, h].
func CartesianToArrayAtHeight(p Cartesian3, h float64) []float64 {
	return CartographicToArrayAtHeight(CartographicFromCartesian(p), h)
}

// ArrayToCartographic parses a GeoJSON position. A missing height is 0.
func ArrayToCartographic(position []float64) (Cartographic, error) {
	if len(position) < 2 {
		return Cartographic{}, fmt.Errorf("%w: got %d values", ErrShortPosition, len(position))
	}
	h := 0.0
	if len(position) > 2 {
		h = position[2]
	}
	return FromDegrees(position[0], position[1], h), nil
}

// ArrayToCartesian parses a GeoJSON position straight to ECEF.
func ArrayToCartesian(position []float64) (Cartesian3, error) {
	c, err := ArrayToCartographic(position)
	if err != nil {
		return Cartesian3{}, err
	}
	return c.ToCartesian(), nil
}

// ArraysToCartesians parses a list of GeoJSON positions.
func ArraysToCartesians(positions [][]float64) ([]Cartesian3, error) {
	out := make([]Cartesian3, 0, len(positions))
	for i, p := range positions {
		c, err := ArrayToCartesian(p)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// EastNorthUp returns the local east, north and up unit vectors at origin.
func EastNorthUp(origin Cartesian3) (east, north, up Cartesian3) {
	up = WGS84.GeodeticSurfaceNormal(origin)
	if math.Abs(origin.X) < 1e-9 && math.Abs(origin.Y) < 1e-9 {
		// Poles: east is arbitrary, follow the +Y convention.
		east = Cartesian3{Y: 1}
	} else {
		east = Cartesian3{X: -origin.Y, Y: origin.X}.Normalize()
	}
	north = up.Cross(east)
	return east, north, up
}

// GeodesicCircle samples segments points on the geodesic circle of the
// given radius around center. The ring is open.
func GeodesicCircle(center Cartographic, radius float64, segments int) []Cartographic {
	if segments < 3 {
		segments = 3
	}
	out := make([]Cartographic, segments)
	step := 2 * math.Pi / float64(segments)
	for i := range out {
		out[i] = WGS84.Destination(center, radius, float64(i)*step)
	}
	return out
}

// TangentCircle samples segments points of a flat circle lying in the
// local tangent plane at center. The ring is open.
func TangentCircle(center Cartesian3, radius float64, segments int) []Cartesian3 {
	if segments < 3 {
		segments = 3
	}
	east, north, _ := EastNorthUp(center)
	out := make([]Cartesian3, segments)
	step := 2 * math.Pi / float64(segments)
	for i := range out {
		theta := float64(i) * step
		offset := east.Scale(radius * math.Cos(theta)).Add(north.Scale(radius * math.Sin(theta)))
		out[i] = center.Add(offset)
	}
	return out
}
