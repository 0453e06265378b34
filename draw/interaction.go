// Package draw turns pointer events into new Point, LineString, Polygon and
// Circle features, with a live preview while the shape grows.
package draw

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/internal/logging"
	"github.com/signalsfoundry/globedraw/model"
	"github.com/signalsfoundry/globedraw/primitive"
	"github.com/signalsfoundry/globedraw/scene"
	"github.com/signalsfoundry/globedraw/timectrl"
)

const tracerName = "github.com/signalsfoundry/globedraw/draw"

// state is either idleState or drawingState.
type state interface{ isState() }

// idleState may hold a terrain-sampled [terrain, pointer] pair from the
// last mouse move, reused by the next Point click.
type idleState struct {
	hover []geodesy.Cartesian3
}

type drawingState struct {
	session *session
}

func (idleState) isState()    {}
func (drawingState) isState() {}

type session struct {
	ctx    context.Context
	log    logging.Logger
	coords []geodesy.Cartesian3
}

// Interaction is a drawing engine attached to a scene. Events are handled
// in arrival order; callbacks run outside the engine lock.
type Interaction struct {
	host    scene.Host
	opts    Options
	markers primitive.Markers
	preview *scene.Collection
	moves   *timectrl.Throttle[scene.ScreenPosition]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       state
	removed     bool
	moveGen     uint64
	unsubscribe func()
}

// New attaches a drawing engine to host.
func New(host scene.Host, opts Options) (*Interaction, error) {
	if host == nil {
		return nil, errors.New("draw: host is required")
	}
	if !opts.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, opts.Type)
	}
	opts = opts.withDefaults()
	markers, err := primitive.NewMarkers(opts.Style)
	if err != nil {
		return nil, fmt.Errorf("draw: build markers: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	i := &Interaction{
		host:    host,
		opts:    opts,
		markers: markers,
		preview: scene.NewCollection("draw-preview"),
		ctx:     ctx,
		cancel:  cancel,
		state:   idleState{},
	}
	i.moves = timectrl.NewThrottle(opts.Clock, opts.MouseMoveThrottle, i.handleMouseMove)
	host.AddCollection(i.preview)
	i.unsubscribe = host.Subscribe(i.handleEvent)
	return i, nil
}

// Coordinates returns the coordinates placed so far in the current session.
func (i *Interaction) Coordinates() []geodesy.Cartesian3 {
	i.mu.Lock()
	defer i.mu.Unlock()
	switch st := i.state.(type) {
	case drawingState:
		return append([]geodesy.Cartesian3(nil), st.session.coords...)
	case idleState:
		return append([]geodesy.Cartesian3(nil), st.hover...)
	}
	return nil
}

// Drawing reports whether a session is in progress.
func (i *Interaction) Drawing() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.state.(drawingState)
	return ok
}

// Remove detaches the engine and clears its preview. Pending terrain
// samples resolve into no-ops and no partial feature is emitted.
func (i *Interaction) Remove() {
	i.mu.Lock()
	if i.removed {
		i.mu.Unlock()
		return
	}
	i.removed = true
	i.state = idleState{}
	unsubscribe := i.unsubscribe
	i.unsubscribe = nil
	i.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	i.moves.Cancel()
	i.cancel()
	i.preview.RemoveAll()
	i.host.RemoveCollection(i.preview)
	i.host.RequestRender()
}

// Wait blocks until every in-flight terrain sample has resolved.
func (i *Interaction) Wait() { i.wg.Wait() }

func (i *Interaction) handleEvent(ev scene.Event) {
	switch ev.Type {
	case scene.EventClick:
		i.handleClick(ev.Position)
	case scene.EventDoubleClick:
		i.handleDoubleClick(ev.Position)
	case scene.EventMouseMove:
		i.moves.Call(ev.Position)
	}
}

func (i *Interaction) coordinatesLength() int {
	if i.opts.Type == model.GeometryCircle {
		return 2
	}
	return i.opts.CoordinatesLength
}

func (i *Interaction) sampling() bool {
	return i.opts.Type == model.GeometryPoint && i.opts.SampleTerrain && i.opts.Terrain != nil
}

func (i *Interaction) pick(pos scene.ScreenPosition) scene.PickResult {
	exclude := append(append([]*scene.Collection(nil), i.opts.ObjectsToExclude...), i.preview)
	if i.opts.PositionInfo != nil {
		return i.opts.PositionInfo(pos, exclude)
	}
	return i.host.Pick(pos, exclude...)
}

func (i *Interaction) record(outcome string) {
	if i.opts.Metrics != nil {
		i.opts.Metrics.ObserveDrawSession(string(i.opts.Type), outcome)
	}
}

func (i *Interaction) measure(coords []geodesy.Cartesian3, pointer geodesy.Cartesian3, previous *geodesy.Cartesian3) Preview {
	return Preview{
		Cartesian:         pointer,
		PreviousCartesian: previous,
		Coordinates:       append([]geodesy.Cartesian3(nil), coords...),
		Area:              geodesy.Area(coords, nil),
		Distance:          geodesy.Distance(coords, i.opts.Geodesic),
	}
}

func (i *Interaction) handleClick(pos scene.ScreenPosition) {
	i.mu.Lock()
	if i.removed {
		i.mu.Unlock()
		return
	}
	var emit func()
	switch st := i.state.(type) {
	case drawingState:
		emit = i.addCoordinate(st.session, pos)
	case idleState:
		emit = i.start(st, pos)
	}
	i.mu.Unlock()
	if emit != nil {
		emit()
	}
}

func (i *Interaction) handleDoubleClick(pos scene.ScreenPosition) {
	i.mu.Lock()
	st, ok := i.state.(drawingState)
	if i.removed || !ok {
		i.mu.Unlock()
		return
	}
	emit := i.finish(st.session, pos, true)
	i.mu.Unlock()
	emit()
}

// start handles a click while idle. Called with i.mu held.
func (i *Interaction) start(st idleState, pos scene.ScreenPosition) func() {
	res := i.pick(pos)
	if !res.OK {
		i.state = idleState{}
		return nil
	}
	ctx, log := logging.WithSessionLogger(i.ctx, i.opts.Logger)
	if i.opts.Type == model.GeometryPoint {
		return i.placePoint(ctx, log, st.hover, res.Cartesian)
	}

	s := &session{ctx: ctx, log: log, coords: []geodesy.Cartesian3{res.Cartesian}}
	i.state = drawingState{session: s}
	log.Debug(ctx, "drawing started", logging.String("geometry", string(i.opts.Type)))

	p := Preview{
		Cartesian:           res.Cartesian,
		Coordinates:         append([]geodesy.Cartesian3(nil), s.coords...),
		GeodesicCoordinates: geodesy.GeodesicCoordinates(s.coords, nil),
	}
	i.drawPreview(p.Coordinates)
	return func() { i.opts.OnDrawStart(p) }
}

// addCoordinate handles a click while drawing. Called with i.mu held.
func (i *Interaction) addCoordinate(s *session, pos scene.ScreenPosition) func() {
	if len(s.coords)+1 == i.coordinatesLength() {
		return i.finish(s, pos, false)
	}
	res := i.pick(pos)
	if !res.OK {
		return nil
	}
	previous := s.coords[len(s.coords)-1]
	s.coords = append(s.coords, res.Cartesian)
	p := i.measure(s.coords, res.Cartesian, &previous)
	p.GeodesicCoordinates = geodesy.GeodesicCoordinates(s.coords, nil)
	i.drawPreview(p.Coordinates)
	return func() { i.opts.OnDrawing(p) }
}

// finish ends the session. A double click drops the two coordinates its
// constituent clicks added and places a single one. Called with i.mu held.
func (i *Interaction) finish(s *session, pos scene.ScreenPosition, doubleClick bool) func() {
	res := i.pick(pos)
	if doubleClick {
		drop := min(2, len(s.coords))
		s.coords = s.coords[:len(s.coords)-drop]
	}
	if res.OK {
		s.coords = append(s.coords, res.Cartesian)
	}
	i.state = idleState{}
	i.clearPreview()

	if !validate(i.opts.Type, s.coords, i.coordinatesLength()) {
		i.record(OutcomeInvalid)
		s.log.Debug(s.ctx, "drawing discarded",
			logging.String("geometry", string(i.opts.Type)),
			logging.Int("coordinates", len(s.coords)),
		)
		return func() { i.opts.OnDrawEnd(Result{}) }
	}

	coords := append([]geodesy.Cartesian3(nil), s.coords...)
	if i.opts.Type == model.GeometryPolygon {
		coords = closeRing(coords)
	}
	area := geodesy.Area(coords, nil)
	distance := geodesy.Distance(coords, i.opts.Geodesic)
	result := Result{
		Feature: toFeature(i.opts.Type, coords, measures{
			area:     area,
			length:   distance,
			geodesic: i.opts.Geodesic,
		}),
		Coordinates:         coords,
		GeodesicCoordinates: geodesy.GeodesicCoordinates(coords, nil),
		Area:                area,
		Distance:            distance,
	}
	i.record(OutcomeCompleted)
	s.log.Debug(s.ctx, "drawing finished",
		logging.String("geometry", string(i.opts.Type)),
		logging.Int("coordinates", len(coords)),
		logging.Float64("distance", distance),
	)
	return func() { i.opts.OnDrawEnd(result) }
}

// placePoint completes a Point session in a single click. With terrain
// sampling it either reuses the pair sampled on the last mouse move or
// samples asynchronously. Called with i.mu held.
func (i *Interaction) placePoint(ctx context.Context, log logging.Logger, hover []geodesy.Cartesian3, c geodesy.Cartesian3) func() {
	i.moveGen++
	i.state = idleState{}

	if i.sampling() && len(hover) != 2 {
		i.wg.Add(1)
		go func() {
			defer i.wg.Done()
			coords := i.sample(ctx, log, c)
			i.mu.Lock()
			if i.removed {
				i.mu.Unlock()
				return
			}
			emit := i.finishPoint(ctx, log, coords)
			i.mu.Unlock()
			emit()
		}()
		return nil
	}

	coords := []geodesy.Cartesian3{c}
	if i.sampling() {
		coords = hover
	}
	return i.finishPoint(ctx, log, coords)
}

// finishPoint emits the start and end of a Point session. Called with
// i.mu held.
func (i *Interaction) finishPoint(ctx context.Context, log logging.Logger, coords []geodesy.Cartesian3) func() {
	start := Preview{
		Cartesian:           coords[len(coords)-1],
		Coordinates:         coords,
		GeodesicCoordinates: geodesy.GeodesicCoordinates(coords, nil),
	}
	m := measures{geodesic: i.opts.Geodesic}
	if i.opts.SampleTerrain && len(coords) == 2 {
		m.height = geodesy.HeightSign(coords[0], coords[1]) * geodesy.Distance(coords, false)
		m.terrainCoordinates = geodesy.CartesianToArray(coords[0])
	}
	result := Result{
		Feature:             toFeature(model.GeometryPoint, coords, m),
		Coordinates:         coords,
		GeodesicCoordinates: start.GeodesicCoordinates,
		Distance:            m.height,
	}
	i.clearPreview()
	i.record(OutcomeCompleted)
	log.Debug(ctx, "point placed", logging.Bool("terrain", m.terrainCoordinates != nil))
	return func() {
		i.opts.OnDrawStart(start)
		i.opts.OnDrawEnd(result)
	}
}

func (i *Interaction) handleMouseMove(pos scene.ScreenPosition) {
	i.mu.Lock()
	if i.removed {
		i.mu.Unlock()
		return
	}
	res := i.pick(pos)
	if !res.OK {
		i.mu.Unlock()
		return
	}

	if i.sampling() {
		i.moveGen++
		gen := i.moveGen
		i.wg.Add(1)
		i.mu.Unlock()
		go i.resolveHover(gen, res.Cartesian)
		return
	}

	var committed []geodesy.Cartesian3
	var previous *geodesy.Cartesian3
	if st, ok := i.state.(drawingState); ok {
		committed = st.session.coords
		last := committed[len(committed)-1]
		previous = &last
	}
	current := append(append([]geodesy.Cartesian3(nil), committed...), res.Cartesian)
	p := i.measure(current, res.Cartesian, previous)
	i.drawPreview(current)
	i.mu.Unlock()
	i.opts.OnMouseMove(p)
}

// resolveHover samples terrain under a Point cursor. Only the latest move
// is applied; older generations are discarded.
func (i *Interaction) resolveHover(gen uint64, c geodesy.Cartesian3) {
	defer i.wg.Done()
	coords := i.sample(i.ctx, i.opts.Logger, c)

	i.mu.Lock()
	if i.removed || gen != i.moveGen {
		i.mu.Unlock()
		return
	}
	p := Preview{Cartesian: c, Coordinates: coords}
	if len(coords) == 2 {
		p.Distance = geodesy.HeightSign(coords[0], coords[1]) * geodesy.Distance(coords, false)
		i.state = idleState{hover: coords}
	} else {
		i.state = idleState{}
	}
	i.drawPreview(coords)
	i.mu.Unlock()
	i.opts.OnMouseMove(p)
}

// sample returns [terrain, c], or [c] when terrain is unavailable or the
// sampler fails.
func (i *Interaction) sample(ctx context.Context, log logging.Logger, c geodesy.Cartesian3) []geodesy.Cartesian3 {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "draw.SampleTerrain",
		trace.WithAttributes(attribute.Int("terrain.level", i.opts.TerrainLevel)))
	defer span.End()

	position := geodesy.CartographicFromCartesian(c).WithHeight(0)
	sampled, err := i.opts.Terrain.SampleHeights(ctx, i.opts.TerrainLevel, []geodesy.Cartographic{position})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() == nil {
			log.Warn(ctx, "terrain sampling failed", logging.Err(err))
		}
		return []geodesy.Cartesian3{c}
	}
	if len(sampled) == 0 {
		return []geodesy.Cartesian3{c}
	}
	return []geodesy.Cartesian3{sampled[0].ToCartesian(), c}
}
