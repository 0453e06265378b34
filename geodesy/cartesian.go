package geodesy

import "math"

// Cartesian3 is an Earth-centred, Earth-fixed position or direction in metres.
type Cartesian3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line (chord) distance between two points.
func (v Cartesian3) DistanceTo(other Cartesian3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Cartesian3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + other.
func (v Cartesian3) Add(other Cartesian3) Cartesian3 {
	return Cartesian3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Cartesian3) Sub(other Cartesian3) Cartesian3 {
	return Cartesian3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v multiplied by s.
func (v Cartesian3) Scale(s float64) Cartesian3 {
	return Cartesian3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of two vectors.
func (v Cartesian3) Dot(other Cartesian3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns the cross product v × other.
func (v Cartesian3) Cross(other Cartesian3) Cartesian3 {
	return Cartesian3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// Normalize returns the unit vector pointing along v. The zero vector is
// returned unchanged.
func (v Cartesian3) Normalize() Cartesian3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Lerp interpolates linearly between v (t=0) and other (t=1).
func (v Cartesian3) Lerp(other Cartesian3, t float64) Cartesian3 {
	return v.Add(other.Sub(v).Scale(t))
}

// Equal reports whether both vectors are within eps of each other on every axis.
func (v Cartesian3) Equal(other Cartesian3, eps float64) bool {
	return math.Abs(v.X-other.X) <= eps &&
		math.Abs(v.Y-other.Y) <= eps &&
		math.Abs(v.Z-other.Z) <= eps
}

// Cartographic is a geodetic position. Longitude and latitude are in
// radians, height is metres above the ellipsoid.
type Cartographic struct {
	Longitude float64
	Latitude  float64
	Height    float64
}

// FromDegrees builds a Cartographic from degrees and metres.
func FromDegrees(lon, lat, height float64) Cartographic {
	return Cartographic{
		Longitude: ToRadians(lon),
		Latitude:  ToRadians(lat),
		Height:    height,
	}
}

// LongitudeDegrees returns the longitude in degrees.
func (c Cartographic) LongitudeDegrees() float64 { return ToDegrees(c.Longitude) }

// LatitudeDegrees returns the latitude in degrees.
func (c Cartographic) LatitudeDegrees() float64 { return ToDegrees(c.Latitude) }

// WithHeight returns a copy of c at the given height.
func (c Cartographic) WithHeight(h float64) Cartographic {
	c.Height = h
	return c
}

// ToCartesian converts c to ECEF on the WGS84 ellipsoid.
func (c Cartographic) ToCartesian() Cartesian3 {
	return WGS84.CartographicToCartesian(c)
}

// CartographicFromCartesian converts an ECEF position to geodetic
// coordinates on the WGS84 ellipsoid.
func CartographicFromCartesian(p Cartesian3) Cartographic {
	return WGS84.CartesianToCartographic(p)
}

// FromDegreesToCartesian is shorthand for FromDegrees(...).ToCartesian().
func FromDegreesToCartesian(lon, lat, height float64) Cartesian3 {
	return FromDegrees(lon, lat, height).ToCartesian()
}

// ToRadians converts degrees to radians.
func ToRadians(deg float64) float64 { return deg * math.Pi / 180.0 }

// ToDegrees converts radians to degrees.
func ToDegrees(rad float64) float64 { return rad * 180.0 / math.Pi }
