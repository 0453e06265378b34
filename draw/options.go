package draw

import (
	"errors"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/internal/logging"
	"github.com/signalsfoundry/globedraw/model"
	"github.com/signalsfoundry/globedraw/primitive"
	"github.com/signalsfoundry/globedraw/scene"
	"github.com/signalsfoundry/globedraw/timectrl"
)

// ErrUnsupportedType is returned by New for geometry types the engine
// cannot draw.
var ErrUnsupportedType = errors.New("draw: unsupported geometry type")

const (
	// DefaultMouseMoveThrottle bounds how often pointer moves are handled.
	DefaultMouseMoveThrottle = 100 * time.Millisecond
	// DefaultTerrainLevel is the terrain level sampled for points.
	DefaultTerrainLevel = 18
)

// Session outcomes reported to MetricsRecorder.
const (
	OutcomeCompleted = "completed"
	OutcomeInvalid   = "invalid"
)

// PositionInfoFunc resolves a screen position, ignoring the collections in
// exclude. It replaces Host.Pick when set.
type PositionInfoFunc func(pos scene.ScreenPosition, exclude []*scene.Collection) scene.PickResult

// MetricsRecorder receives one observation per finished drawing session.
type MetricsRecorder interface {
	ObserveDrawSession(geometry, outcome string)
}

// Preview is passed to the progress callbacks.
type Preview struct {
	// Cartesian is the position under the pointer.
	Cartesian geodesy.Cartesian3
	// PreviousCartesian is the last committed coordinate, when there is one.
	PreviousCartesian   *geodesy.Cartesian3
	Coordinates         []geodesy.Cartesian3
	GeodesicCoordinates []geodesy.Cartesian3
	Area                float64
	// Distance is the running length, or the signed height above terrain
	// for sampled points.
	Distance float64
}

// Result is passed to OnDrawEnd. Feature is nil when the drawn shape was
// not valid.
type Result struct {
	Feature             *geojson.Feature
	Coordinates         []geodesy.Cartesian3
	GeodesicCoordinates []geodesy.Cartesian3
	Area                float64
	Distance            float64
}

// Options configures an Interaction.
type Options struct {
	Type model.GeometryType
	// CoordinatesLength, when positive, ends the drawing once that many
	// coordinates are placed. Circle always uses 2.
	CoordinatesLength int
	// Geodesic pins exported heights to the ellipsoid surface.
	Geodesic bool
	// SampleTerrain resolves Point positions against Terrain.
	SampleTerrain bool
	Terrain       scene.TerrainSampler
	TerrainLevel  int
	// MouseMoveThrottle defaults to DefaultMouseMoveThrottle; a negative
	// value handles every move.
	MouseMoveThrottle time.Duration
	Style             primitive.EditingStyle
	PositionInfo      PositionInfoFunc
	// ObjectsToExclude are ignored by the default pick on top of the
	// engine's own preview.
	ObjectsToExclude []*scene.Collection

	Clock   timectrl.Clock
	Logger  logging.Logger
	Metrics MetricsRecorder

	OnDrawStart func(Preview)
	OnDrawing   func(Preview)
	OnMouseMove func(Preview)
	OnDrawEnd   func(Result)
}

func (o Options) withDefaults() Options {
	if o.TerrainLevel <= 0 {
		o.TerrainLevel = DefaultTerrainLevel
	}
	if o.MouseMoveThrottle == 0 {
		o.MouseMoveThrottle = DefaultMouseMoveThrottle
	}
	if o.Clock == nil {
		o.Clock = timectrl.Real()
	}
	o.Logger = logging.OrNoop(o.Logger)
	o.Style = o.Style.Merge(primitive.DefaultEditingStyle())
	if o.OnDrawStart == nil {
		o.OnDrawStart = func(Preview) {}
	}
	if o.OnDrawing == nil {
		o.OnDrawing = func(Preview) {}
	}
	if o.OnMouseMove == nil {
		o.OnMouseMove = func(Preview) {}
	}
	if o.OnDrawEnd == nil {
		o.OnDrawEnd = func(Result) {}
	}
	return o
}
