package geodesy

import "math"

// Rectangle is a geodetic bounding box in radians. West may exceed East
// when the box crosses the antimeridian.
type Rectangle struct {
	West, South, East, North float64
}

// RectangleFromDegrees builds a Rectangle from degree bounds.
func RectangleFromDegrees(west, south, east, north float64) Rectangle {
	return Rectangle{
		West:  ToRadians(west),
		South: ToRadians(south),
		East:  ToRadians(east),
		North: ToRadians(north),
	}
}

// Width returns the angular width, accounting for antimeridian crossing.
func (r Rectangle) Width() float64 {
	east := r.East
	if east < r.West {
		east += 2 * math.Pi
	}
	return east - r.West
}

// Height returns the angular height.
func (r Rectangle) Height() float64 { return r.North - r.South }

// Center returns the midpoint at zero height.
func (r Rectangle) Center() Cartographic {
	lon := r.West + r.Width()/2
	if lon > math.Pi {
		lon -= 2 * math.Pi
	}
	return Cartographic{Longitude: lon, Latitude: (r.South + r.North) / 2}
}

// Contains reports whether c lies inside r, edges included.
func (r Rectangle) Contains(c Cartographic) bool {
	if c.Latitude < r.South || c.Latitude > r.North {
		return false
	}
	if r.West <= r.East {
		return c.Longitude >= r.West && c.Longitude <= r.East
	}
	return c.Longitude >= r.West || c.Longitude <= r.East
}

// Corners returns the closed outline west-south, west-north, east-north,
// east-south, west-south at zero height.
func (r Rectangle) Corners() []Cartographic {
	return []Cartographic{
		{Longitude: r.West, Latitude: r.South},
		{Longitude: r.West, Latitude: r.North},
		{Longitude: r.East, Latitude: r.North},
		{Longitude: r.East, Latitude: r.South},
		{Longitude: r.West, Latitude: r.South},
	}
}
