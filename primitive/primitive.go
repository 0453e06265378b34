// Package primitive builds renderable scene descriptors from coordinates
// and style. Every factory is a pure mapping: it copies its input into a
// new value and never touches a scene. Callers own the lifecycle.
package primitive

import (
	"math"

	"github.com/signalsfoundry/globedraw/geodesy"
)

// Kind tags what a primitive is so consumers never need type switches
// on scene-graph objects.
type Kind int

const (
	KindPolyline Kind = iota + 1
	KindPolygon
	KindEllipse
	KindEllipseOutline
	KindCylinder
	KindCylinderOutline
)

func (k Kind) String() string {
	switch k {
	case KindPolyline:
		return "polyline"
	case KindPolygon:
		return "polygon"
	case KindEllipse:
		return "ellipse"
	case KindEllipseOutline:
		return "ellipse-outline"
	case KindCylinder:
		return "cylinder"
	case KindCylinderOutline:
		return "cylinder-outline"
	default:
		return "unknown"
	}
}

// IsLine reports whether the primitive renders as a line through Positions.
func (k Kind) IsLine() bool {
	return k == KindPolyline || k == KindEllipseOutline || k == KindCylinderOutline
}

// ArcType selects how consecutive positions are joined.
type ArcType int

const (
	// ArcNone joins positions with straight chords.
	ArcNone ArcType = iota
	// ArcGeodesic follows the ellipsoid surface.
	ArcGeodesic
)

const (
	DefaultLineColor          = "#ff00ff"
	DefaultFillColor          = "#ff00ffAA"
	DefaultWidth              = 4.0
	DefaultEllipseGranularity = 0.02
	DefaultCylinderSlices     = 128
	DefaultCylinderLength     = 0.1
)

// Style carries the options shared by every factory.
type Style struct {
	Color string
	// Opacity overrides the colour alpha when set.
	Opacity       *float64
	Width         float64
	DashLength    float64
	ClampToGround bool
	Geodesic      bool
	AllowPicking  bool
	ID            string
}

// Opacity is a helper for filling Style.Opacity.
func Opacity(v float64) *float64 { return &v }

// Primitive is a renderable polyline, polygon, ellipse or cylinder.
type Primitive struct {
	Kind Kind
	ID   string

	// Positions holds the line vertices, the polygon outer ring, or the
	// sampled rim of an ellipse or cylinder.
	Positions []geodesy.Cartesian3
	Holes     [][]geodesy.Cartesian3

	// Center and Radius describe ellipses and cylinders.
	Center geodesy.Cartesian3
	Radius float64
	// Length is the extruded cylinder length in metres.
	Length      float64
	Granularity float64
	Slices      int

	Color         Color
	Width         float64
	DashLength    float64
	ClampToGround bool
	ArcType       ArcType
	AllowPicking  bool
	Show          bool
}

func arcType(geodesic bool) ArcType {
	if geodesic {
		return ArcGeodesic
	}
	return ArcNone
}

func width(w float64) float64 {
	if w <= 0 {
		return DefaultWidth
	}
	return w
}

func copyPositions(coords []geodesy.Cartesian3) []geodesy.Cartesian3 {
	return append([]geodesy.Cartesian3(nil), coords...)
}

// NewPolyline returns a line through coords, or nil with fewer than two.
func NewPolyline(coords []geodesy.Cartesian3, s Style) *Primitive {
	if len(coords) < 2 {
		return nil
	}
	return &Primitive{
		Kind:          KindPolyline,
		ID:            s.ID,
		Positions:     copyPositions(coords),
		Color:         resolveColor(s.Color, s.Opacity, DefaultLineColor),
		Width:         width(s.Width),
		DashLength:    s.DashLength,
		ClampToGround: s.ClampToGround,
		ArcType:       arcType(s.Geodesic),
		AllowPicking:  s.AllowPicking,
		Show:          true,
	}
}

// NewPolygon returns a filled polygon over ring, or nil with fewer than
// three positions.
func NewPolygon(ring []geodesy.Cartesian3, holes [][]geodesy.Cartesian3, s Style) *Primitive {
	if len(ring) < 3 {
		return nil
	}
	var hs [][]geodesy.Cartesian3
	for _, h := range holes {
		hs = append(hs, copyPositions(h))
	}
	return &Primitive{
		Kind:          KindPolygon,
		ID:            s.ID,
		Positions:     copyPositions(ring),
		Holes:         hs,
		Color:         resolveColor(s.Color, s.Opacity, DefaultFillColor),
		ClampToGround: s.ClampToGround,
		ArcType:       arcType(s.Geodesic),
		AllowPicking:  s.AllowPicking,
		Show:          true,
	}
}

func ellipseRim(center geodesy.Cartesian3, radius, granularity float64) []geodesy.Cartesian3 {
	segments := int(math.Ceil(2 * math.Pi / granularity))
	c := geodesy.CartographicFromCartesian(center)
	rim := geodesy.GeodesicCircle(c, radius, segments)
	out := make([]geodesy.Cartesian3, len(rim))
	for i, p := range rim {
		out[i] = p.ToCartesian()
	}
	return out
}

// NewEllipse returns a filled geodesic circle of radius metres around
// center, or nil for a non-positive radius.
func NewEllipse(center geodesy.Cartesian3, radius float64, s Style) *Primitive {
	if radius <= 0 {
		return nil
	}
	return &Primitive{
		Kind:          KindEllipse,
		ID:            s.ID,
		Positions:     ellipseRim(center, radius, DefaultEllipseGranularity),
		Center:        center,
		Radius:        radius,
		Granularity:   DefaultEllipseGranularity,
		Color:         resolveColor(s.Color, s.Opacity, DefaultFillColor),
		ClampToGround: s.ClampToGround,
		ArcType:       ArcGeodesic,
		AllowPicking:  s.AllowPicking,
		Show:          true,
	}
}

// NewEllipseOutline returns the closed rim of a geodesic circle.
func NewEllipseOutline(center geodesy.Cartesian3, radius float64, s Style) *Primitive {
	if radius <= 0 {
		return nil
	}
	rim := ellipseRim(center, radius, DefaultEllipseGranularity)
	rim = append(rim, rim[0])
	return &Primitive{
		Kind:          KindEllipseOutline,
		ID:            s.ID,
		Positions:     rim,
		Center:        center,
		Radius:        radius,
		Granularity:   DefaultEllipseGranularity,
		Color:         resolveColor(s.Color, s.Opacity, DefaultLineColor),
		Width:         width(s.Width),
		DashLength:    s.DashLength,
		ClampToGround: s.ClampToGround,
		ArcType:       arcType(s.Geodesic),
		AllowPicking:  s.AllowPicking,
		Show:          true,
	}
}

// NewCylinder returns a thin filled cylinder lying in the tangent plane
// at center. It stands in for a circle when geodesic accuracy is not
// required.
func NewCylinder(center geodesy.Cartesian3, radius float64, s Style) *Primitive {
	if radius <= 0 {
		return nil
	}
	return &Primitive{
		Kind:         KindCylinder,
		ID:           s.ID,
		Positions:    geodesy.TangentCircle(center, radius, DefaultCylinderSlices),
		Center:       center,
		Radius:       radius,
		Length:       DefaultCylinderLength,
		Slices:       DefaultCylinderSlices,
		Color:        resolveColor(s.Color, s.Opacity, DefaultFillColor),
		AllowPicking: s.AllowPicking,
		Show:         true,
	}
}

// NewCylinderOutline returns the closed tangent-plane rim of a cylinder.
func NewCylinderOutline(center geodesy.Cartesian3, radius float64, s Style) *Primitive {
	if radius <= 0 {
		return nil
	}
	rim := geodesy.TangentCircle(center, radius, DefaultCylinderSlices)
	rim = append(rim, rim[0])
	return &Primitive{
		Kind:         KindCylinderOutline,
		ID:           s.ID,
		Positions:    rim,
		Center:       center,
		Radius:       radius,
		Slices:       DefaultCylinderSlices,
		Color:        resolveColor(s.Color, s.Opacity, DefaultFillColor),
		Width:        width(s.Width),
		DashLength:   s.DashLength,
		AllowPicking: s.AllowPicking,
		Show:         true,
	}
}
