package scene

import (
	"context"
	"math"

	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/primitive"
)

// PickedObject is one renderable intersected by a pick. Exactly one of
// Primitive or Billboard is set.
type PickedObject struct {
	Primitive  *primitive.Primitive
	Billboard  *primitive.Billboard
	Collection *Collection
}

// PickResult is the outcome of a pick at a screen position. OK is false
// when the pointer is off the globe; Objects may still be populated.
type PickResult struct {
	Cartesian    geodesy.Cartesian3
	Cartographic geodesy.Cartographic
	OK           bool
	// Objects lists intersected renderables, topmost first.
	Objects []PickedObject
}

// Host is the 3D scene the engines attach to.
type Host interface {
	// Subscribe registers fn for every dispatched event and returns a
	// function that detaches it.
	Subscribe(fn func(Event)) (unsubscribe func())
	AddCollection(c *Collection)
	RemoveCollection(c *Collection)
	// Pick resolves the globe position under pos and the pickable objects
	// there, ignoring everything in exclude.
	Pick(pos ScreenPosition, exclude ...*Collection) PickResult
	RequestRender()
}

// TerrainSampler resolves terrain heights for positions. A nil slice with
// a nil error means terrain is unavailable; callers fall back to the
// unsampled position.
type TerrainSampler interface {
	SampleHeights(ctx context.Context, level int, positions []geodesy.Cartographic) ([]geodesy.Cartographic, error)
}

// TerrainSamplerFunc adapts a function to TerrainSampler.
type TerrainSamplerFunc func(ctx context.Context, level int, positions []geodesy.Cartographic) ([]geodesy.Cartographic, error)

func (f TerrainSamplerFunc) SampleHeights(ctx context.Context, level int, positions []geodesy.Cartographic) ([]geodesy.Cartographic, error) {
	return f(ctx, level, positions)
}

// Camera exposes the view state the tiled billboard engine reads on every
// camera move.
type Camera interface {
	// Target is the globe point along the view direction. False when the
	// camera looks past the globe.
	Target() (geodesy.Cartographic, bool)
	ViewRectangle() geodesy.Rectangle
	// RenderedTerrainLevel is the deepest terrain tile level currently
	// rendered. False when no terrain provider is attached.
	RenderedTerrainLevel() (int, bool)
	// LevelMaximumGeometricError is the terrain provider's maximum
	// geometric error, in metres, at level.
	LevelMaximumGeometricError(level int) float64
}

// EllipsoidGeometricError is the maximum geometric error of a 65x65
// heightmap terrain on a two-tile geographic root, the default for a
// terrain provider without elevation data.
func EllipsoidGeometricError(level int) float64 {
	levelZero := geodesy.WGS84.MaximumRadius() * 2 * math.Pi * 0.25 / (65 * 2)
	return levelZero / math.Pow(2, float64(level))
}

// StaticCamera is a Camera with fixed values.
type StaticCamera struct {
	Center    geodesy.Cartographic
	HasTarget bool
	View      geodesy.Rectangle
	Level     int
	HasLevel  bool
	// GeometricError defaults to EllipsoidGeometricError.
	GeometricError func(level int) float64
}

func (c *StaticCamera) Target() (geodesy.Cartographic, bool) { return c.Center, c.HasTarget }

func (c *StaticCamera) ViewRectangle() geodesy.Rectangle { return c.View }

func (c *StaticCamera) RenderedTerrainLevel() (int, bool) { return c.Level, c.HasLevel }

func (c *StaticCamera) LevelMaximumGeometricError(level int) float64 {
	if c.GeometricError != nil {
		return c.GeometricError(level)
	}
	return EllipsoidGeometricError(level)
}

// LookAt points the camera at the centre of view with terrain at level.
func (c *StaticCamera) LookAt(view geodesy.Rectangle, level int) {
	c.View = view
	c.Center = view.Center()
	c.HasTarget = true
	c.Level = level
	c.HasLevel = true
}
