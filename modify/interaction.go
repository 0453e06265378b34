// Package modify edits the features of a GeoJSON document in place: vertex
// drags, segment inserts, circle radius and centre moves, and line
// extension by clicking past the last vertex.
package modify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	geojson "github.com/paulmach/go.geojson"

	"github.com/signalsfoundry/globedraw/internal/logging"
	"github.com/signalsfoundry/globedraw/model"
	"github.com/signalsfoundry/globedraw/primitive"
	"github.com/signalsfoundry/globedraw/scene"
	"github.com/signalsfoundry/globedraw/timectrl"
)

// state is one of idleState, editingState or extendingState.
type state interface{ isState() }

type idleState struct{}

// editingState holds the handle picked by the last click.
type editingState struct {
	handle model.Handle
	ctx    context.Context
	log    logging.Logger
}

// extendingState appends every click to the single tracked LineString.
type extendingState struct {
	featureID string
	ctx       context.Context
	log       logging.Logger
}

func (idleState) isState()      {}
func (editingState) isState()   {}
func (extendingState) isState() {}

// Interaction is a modify engine attached to a scene.
type Interaction struct {
	host    scene.Host
	opts    Options
	markers primitive.Markers
	static  *scene.Collection
	preview *scene.Collection
	moves   *timectrl.Throttle[scene.ScreenPosition]

	mu          sync.Mutex
	doc         model.Document
	features    []tracked
	byID        map[string]int
	handles     handles
	state       state
	removed     bool
	unsubscribe func()
}

// New attaches a modify engine to host and draws opts.GeoJSON.
func New(host scene.Host, opts Options) (*Interaction, error) {
	if host == nil {
		return nil, errors.New("modify: host is required")
	}
	opts = opts.withDefaults()
	markers, err := primitive.NewMarkers(opts.Style)
	if err != nil {
		return nil, fmt.Errorf("modify: build markers: %w", err)
	}
	i := &Interaction{
		host:    host,
		opts:    opts,
		markers: markers,
		static:  scene.NewCollection("modify-static"),
		preview: scene.NewCollection("modify-preview"),
		handles: newHandles(),
		state:   idleState{},
	}
	features, byID, err := i.trackAll(opts.GeoJSON)
	if err != nil {
		return nil, err
	}
	i.doc, i.features, i.byID = opts.GeoJSON, features, byID

	i.moves = timectrl.NewThrottle(opts.Clock, opts.MouseMoveThrottle, i.handleMouseMove)
	host.AddCollection(i.static)
	host.AddCollection(i.preview)
	i.drawStatic()
	i.unsubscribe = host.Subscribe(i.handleEvent)
	return i, nil
}

func (i *Interaction) trackAll(doc model.Document) ([]tracked, map[string]int, error) {
	var features []tracked
	byID := make(map[string]int)
	for idx, f := range doc.Features() {
		t, err := track(f, i.opts.GeometryType)
		if err != nil {
			if id, ok := model.FeatureID(f); ok {
				return nil, nil, fmt.Errorf("modify: feature %q: %w", id, err)
			}
			return nil, nil, fmt.Errorf("modify: feature %d: %w", idx, err)
		}
		if t.hasID {
			byID[t.id] = len(features)
		} else {
			i.opts.Logger.Warn(context.Background(), "feature without id is not editable",
				logging.Int("index", idx),
				logging.String("geometry", string(t.typ)),
			)
		}
		features = append(features, t)
	}
	return features, byID, nil
}

// SetGeoJSON replaces the tracked document and redraws every feature. An
// edit in progress survives when its feature is still present.
func (i *Interaction) SetGeoJSON(doc model.Document) error {
	features, byID, err := i.trackAll(doc)
	if err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.removed {
		return nil
	}
	i.doc, i.features, i.byID = doc, features, byID
	switch st := i.state.(type) {
	case editingState:
		if _, ok := i.byID[st.handle.FeatureID]; !ok {
			i.cancelEdit()
		}
	case extendingState:
		if _, ok := i.singleLineString(); !ok || st.featureID != i.features[0].id {
			i.cancelEdit()
		}
	}
	i.drawStatic()
	return nil
}

// Document returns the current document.
func (i *Interaction) Document() model.Document {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.doc
}

// Editing returns the handle being dragged, if any.
func (i *Interaction) Editing() (model.Handle, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	st, ok := i.state.(editingState)
	return st.handle, ok
}

// Extending reports whether clicks are appending to a LineString.
func (i *Interaction) Extending() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.state.(extendingState)
	return ok
}

// Remove detaches the engine and clears everything it drew. Documents
// already passed to OnEditEnd are left untouched.
func (i *Interaction) Remove() {
	i.mu.Lock()
	if i.removed {
		i.mu.Unlock()
		return
	}
	i.removed = true
	i.state = idleState{}
	i.handles = newHandles()
	unsubscribe := i.unsubscribe
	i.unsubscribe = nil
	i.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	i.moves.Cancel()
	for _, c := range []*scene.Collection{i.static, i.preview} {
		c.RemoveAll()
		i.host.RemoveCollection(c)
	}
	i.host.RequestRender()
}

func (i *Interaction) handleEvent(ev scene.Event) {
	switch ev.Type {
	case scene.EventClick:
		i.handleEdit(ev.Position, false)
	case scene.EventDoubleClick:
		i.handleEdit(ev.Position, true)
	case scene.EventMouseMove:
		i.moves.Call(ev.Position)
	case scene.EventKeyDown:
		if ev.Key == scene.KeyEscape {
			i.handleEscape()
		}
	}
}

func (i *Interaction) pick(pos scene.ScreenPosition) scene.PickResult {
	exclude := []*scene.Collection{i.preview}
	if i.opts.PositionInfo != nil {
		return i.opts.PositionInfo(pos, exclude)
	}
	return i.host.Pick(pos, exclude...)
}

// hit returns the first picked object that is a handle of a tracked
// feature. Called with i.mu held.
func (i *Interaction) hit(res scene.PickResult) (model.Handle, scene.PickedObject, bool) {
	for _, obj := range res.Objects {
		if obj.Collection != i.static {
			continue
		}
		var h model.Handle
		var ok bool
		switch {
		case obj.Billboard != nil:
			h, ok = i.handles.billboards[obj.Billboard]
		case obj.Primitive != nil:
			h, ok = i.handles.primitives[obj.Primitive]
		}
		if !ok {
			continue
		}
		if _, known := i.byID[h.FeatureID]; known {
			return h, obj, true
		}
	}
	return model.Handle{}, scene.PickedObject{}, false
}

// singleLineString returns the only tracked feature when it is an
// identified LineString.
func (i *Interaction) singleLineString() (tracked, bool) {
	if len(i.features) != 1 {
		return tracked{}, false
	}
	t := i.features[0]
	return t, t.typ == model.GeometryLineString && t.hasID
}

func (i *Interaction) handleEdit(pos scene.ScreenPosition, closing bool) {
	i.mu.Lock()
	if i.removed {
		i.mu.Unlock()
		return
	}
	res := i.pick(pos)
	var emit func()
	switch st := i.state.(type) {
	case editingState:
		emit = i.commit(st, res)
	case extendingState:
		emit = i.extend(st, res, closing)
	case idleState:
		emit = i.selectHandle(res)
	}
	i.mu.Unlock()
	if emit != nil {
		emit()
	}
}

// selectHandle handles a click while idle. Called with i.mu held.
func (i *Interaction) selectHandle(res scene.PickResult) func() {
	if h, _, ok := i.hit(res); ok {
		ctx, log := logging.WithSessionLogger(context.Background(), i.opts.Logger)
		i.state = editingState{handle: h, ctx: ctx, log: log}
		log.Debug(ctx, "editing started", logging.String("handle", h.String()))
		return nil
	}
	t, ok := i.singleLineString()
	if !ok || !i.opts.ExtendLineString || !res.OK {
		return nil
	}
	emit, ok := i.apply(extendLine(t, res.Cartographic), HandleExtension)
	if !ok {
		return nil
	}
	ctx, log := logging.WithSessionLogger(context.Background(), i.opts.Logger)
	i.state = extendingState{featureID: t.id, ctx: ctx, log: log}
	log.Debug(ctx, "line extension started", logging.String("feature", t.id))
	return emit
}

// commit drops the dragged handle at the picked position. A miss, or an
// edit the geometry resolver rejects, keeps the edit open. Called with i.mu
// held.
func (i *Interaction) commit(st editingState, res scene.PickResult) func() {
	if !res.OK {
		return nil
	}
	i.preview.RemoveAll()
	idx, ok := i.byID[st.handle.FeatureID]
	if !ok {
		i.state = idleState{}
		i.host.RequestRender()
		return nil
	}
	updated := commitHandle(i.features[idx], st.handle, res.Cartographic)
	emit, ok := i.apply(updated, st.handle.Kind.String())
	if !ok {
		return nil
	}
	i.state = idleState{}
	st.log.Debug(st.ctx, "editing finished", logging.String("handle", st.handle.String()))
	return emit
}

// extend appends a vertex, or on a double click drops the vertex its
// second click appended and stops extending. Called with i.mu held.
func (i *Interaction) extend(st extendingState, res scene.PickResult, closing bool) func() {
	if !res.OK {
		return nil
	}
	i.preview.RemoveAll()
	idx, ok := i.byID[st.featureID]
	if !ok {
		i.state = idleState{}
		i.host.RequestRender()
		return nil
	}
	t := i.features[idx]
	if closing {
		emit, ok := i.apply(trimLine(t), HandleExtension)
		if !ok {
			return nil
		}
		i.state = idleState{}
		st.log.Debug(st.ctx, "line extension finished", logging.Int("coordinates", len(t.coords)-1))
		return emit
	}
	emit, _ := i.apply(extendLine(t, res.Cartographic), HandleExtension)
	return emit
}

// apply stores updated in the document, redraws it and returns the
// OnEditEnd call. It reports false and leaves the document untouched when
// updated no longer resolves to an editable geometry. Called with i.mu held.
func (i *Interaction) apply(updated *geojson.Feature, handle string) (func(), bool) {
	t, err := track(updated, i.opts.GeometryType)
	if err != nil {
		i.opts.Logger.Warn(context.Background(), "edited feature rejected", logging.Err(err))
		i.host.RequestRender()
		return nil, false
	}
	i.doc = i.doc.ReplaceFeature(updated)
	i.features[i.byID[t.id]] = t
	i.drawStatic()
	if i.opts.Metrics != nil {
		i.opts.Metrics.ObserveEdit(handle)
	}
	doc := i.doc
	return func() { i.opts.OnEditEnd(doc) }, true
}

func (i *Interaction) handleEscape() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.removed {
		return
	}
	i.cancelEdit()
	i.host.RequestRender()
}

// cancelEdit returns to idle without committing. Called with i.mu held.
func (i *Interaction) cancelEdit() {
	switch st := i.state.(type) {
	case editingState:
		st.log.Debug(st.ctx, "editing cancelled", logging.String("handle", st.handle.String()))
	case extendingState:
		st.log.Debug(st.ctx, "line extension cancelled", logging.String("feature", st.featureID))
	}
	i.state = idleState{}
	i.preview.RemoveAll()
}

func (i *Interaction) handleMouseMove(pos scene.ScreenPosition) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.removed {
		return
	}
	i.preview.RemoveAll()
	res := i.pick(pos)

	switch st := i.state.(type) {
	case editingState:
		if idx, ok := i.byID[st.handle.FeatureID]; ok && res.OK {
			i.previewHandle(i.features[idx], st.handle, res.Cartesian)
		}
	case extendingState:
		if idx, ok := i.byID[st.featureID]; ok && res.OK {
			i.previewExtension(i.features[idx], res.Cartesian)
		}
	case idleState:
		if _, obj, ok := i.hit(res); ok {
			at := res.Cartesian
			if obj.Billboard != nil {
				at = obj.Billboard.Position
			}
			i.preview.AddBillboard(i.marker(at, true))
		}
	}
	i.host.RequestRender()
}
