package modify

import (
	"time"

	"github.com/signalsfoundry/globedraw/internal/logging"
	"github.com/signalsfoundry/globedraw/model"
	"github.com/signalsfoundry/globedraw/primitive"
	"github.com/signalsfoundry/globedraw/scene"
	"github.com/signalsfoundry/globedraw/timectrl"
)

// DefaultMouseMoveThrottle bounds how often pointer moves are handled.
const DefaultMouseMoveThrottle = 100 * time.Millisecond

// HandleExtension is the handle label reported to MetricsRecorder for
// vertices appended by line extension.
const HandleExtension = "extension"

// PositionInfoFunc resolves a screen position, ignoring the collections in
// exclude. It replaces Host.Pick when set.
type PositionInfoFunc func(pos scene.ScreenPosition, exclude []*scene.Collection) scene.PickResult

// MetricsRecorder receives one observation per committed edit.
type MetricsRecorder interface {
	ObserveEdit(handle string)
}

// Options configures an Interaction.
type Options struct {
	// GeoJSON is the initial document. It may be replaced later with
	// SetGeoJSON.
	GeoJSON model.Document
	// GeometryType resolves how each feature is edited. Defaults to
	// model.ResolveGeometryType.
	GeometryType model.GeometryTypeResolver
	// ExtendLineString lets clicks on empty space append vertices when the
	// document holds a single LineString.
	ExtendLineString bool
	// MouseMoveThrottle defaults to DefaultMouseMoveThrottle; a negative
	// value handles every move.
	MouseMoveThrottle time.Duration
	Style             primitive.EditingStyle
	PositionInfo      PositionInfoFunc

	Clock   timectrl.Clock
	Logger  logging.Logger
	Metrics MetricsRecorder

	// OnEditEnd receives the whole updated document, in the shape of the
	// last document set.
	OnEditEnd func(model.Document)
}

func (o Options) withDefaults() Options {
	if o.GeometryType == nil {
		o.GeometryType = model.ResolveGeometryType
	}
	if o.MouseMoveThrottle == 0 {
		o.MouseMoveThrottle = DefaultMouseMoveThrottle
	}
	if o.Clock == nil {
		o.Clock = timectrl.Real()
	}
	o.Logger = logging.OrNoop(o.Logger)
	o.Style = o.Style.Merge(primitive.DefaultEditingStyle())
	if o.OnEditEnd == nil {
		o.OnEditEnd = func(model.Document) {}
	}
	return o
}
