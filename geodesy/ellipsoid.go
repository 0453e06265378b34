package geodesy

import (
	"math"

	"github.com/StefanSchroeder/Golang-Ellipsoid/ellipsoid"
)

// Ellipsoid wraps a reference ellipsoid with the conversions and geodesic
// problems used by the draw, modify and tile engines. Angles crossing the
// package boundary are radians; the underlying solver works in degrees.
type Ellipsoid struct {
	name   string
	a      float64 // semi-major axis, metres
	b      float64 // semi-minor axis, metres
	solver ellipsoid.Ellipsoid
}

// WGS84 is the ellipsoid every exported helper in this package uses.
var WGS84 = NewEllipsoid("WGS84", 6378137.0, 298.257223563)

// NewEllipsoid builds an Ellipsoid from a solver name known to the
// underlying library plus its defining parameters.
func NewEllipsoid(name string, semiMajor, inverseFlattening float64) *Ellipsoid {
	return &Ellipsoid{
		name: name,
		a:    semiMajor,
		b:    semiMajor * (1 - 1/inverseFlattening),
		solver: ellipsoid.Init(
			name,
			ellipsoid.Degrees,
			ellipsoid.Meter,
			ellipsoid.LongitudeIsSymmetric,
			ellipsoid.BearingIsSymmetric,
		),
	}
}

// Name returns the ellipsoid name.
func (e *Ellipsoid) Name() string { return e.name }

// MaximumRadius returns the largest of the ellipsoid radii.
func (e *Ellipsoid) MaximumRadius() float64 { return math.Max(e.a, e.b) }

// CartographicToCartesian converts geodetic coordinates to ECEF.
func (e *Ellipsoid) CartographicToCartesian(c Cartographic) Cartesian3 {
	x, y, z := e.solver.ToECEF(ToDegrees(c.Latitude), ToDegrees(c.Longitude), c.Height)
	return Cartesian3{X: x, Y: y, Z: z}
}

// CartesianToCartographic converts an ECEF position to geodetic coordinates.
func (e *Ellipsoid) CartesianToCartographic(p Cartesian3) Cartographic {
	lat, lon, alt := e.solver.ToLLA(p.X, p.Y, p.Z)
	return Cartographic{
		Longitude: ToRadians(lon),
		Latitude:  ToRadians(lat),
		Height:    alt,
	}
}

// SurfaceDistance returns the geodesic distance between two positions
// measured on the ellipsoid surface, ignoring their heights.
func (e *Ellipsoid) SurfaceDistance(from, to Cartographic) float64 {
	if samePosition(from, to) {
		return 0
	}
	d, _ := e.solver.To(
		ToDegrees(from.Latitude), ToDegrees(from.Longitude),
		ToDegrees(to.Latitude), ToDegrees(to.Longitude),
	)
	if math.IsNaN(d) {
		return 0
	}
	return d
}

// Bearing returns the initial bearing in radians, clockwise from north, of
// the geodesic running from one position to the other.
func (e *Ellipsoid) Bearing(from, to Cartographic) float64 {
	if samePosition(from, to) {
		return 0
	}
	_, bearing := e.solver.To(
		ToDegrees(from.Latitude), ToDegrees(from.Longitude),
		ToDegrees(to.Latitude), ToDegrees(to.Longitude),
	)
	return ToRadians(bearing)
}

// Destination solves the direct geodesic problem: it walks distance metres
// from origin along bearing (radians, clockwise from north). The returned
// position keeps the origin height.
func (e *Ellipsoid) Destination(origin Cartographic, distance, bearing float64) Cartographic {
	if distance == 0 {
		return origin
	}
	lat, lon := e.solver.At(ToDegrees(origin.Latitude), ToDegrees(origin.Longitude), distance, ToDegrees(bearing))
	return Cartographic{
		Longitude: ToRadians(lon),
		Latitude:  ToRadians(lat),
		Height:    origin.Height,
	}
}

// GeodeticSurfaceNormal returns the unit normal of the ellipsoid surface
// that passes through p.
func (e *Ellipsoid) GeodeticSurfaceNormal(p Cartesian3) Cartesian3 {
	a2 := e.a * e.a
	b2 := e.b * e.b
	return Cartesian3{X: p.X / a2, Y: p.Y / a2, Z: p.Z / b2}.Normalize()
}

func samePosition(a, b Cartographic) bool {
	const eps = 1e-12
	return math.Abs(a.Longitude-b.Longitude) < eps && math.Abs(a.Latitude-b.Latitude) < eps
}
