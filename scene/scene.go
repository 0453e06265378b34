package scene

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"

	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/primitive"
)

// DefaultPickTolerance is the pixel radius used for hit tests.
const DefaultPickTolerance = 6.0

// Viewport maps canvas pixels onto a longitude/latitude window with a
// plate carrée projection. Bound is in degrees.
type Viewport struct {
	Width  float64
	Height float64
	Bound  orb.Bound
}

// ToGeographic converts a pixel to degrees. The result is outside Bound
// when pos is off the canvas.
func (v Viewport) ToGeographic(pos ScreenPosition) orb.Point {
	lon := v.Bound.Left() + pos.X/v.Width*(v.Bound.Right()-v.Bound.Left())
	lat := v.Bound.Top() - pos.Y/v.Height*(v.Bound.Top()-v.Bound.Bottom())
	return orb.Point{lon, lat}
}

// ToScreen converts degrees to a pixel.
func (v Viewport) ToScreen(lon, lat float64) ScreenPosition {
	return ScreenPosition{
		X: (lon - v.Bound.Left()) / (v.Bound.Right() - v.Bound.Left()) * v.Width,
		Y: (v.Bound.Top() - lat) / (v.Bound.Top() - v.Bound.Bottom()) * v.Height,
	}
}

func (v Viewport) project(p geodesy.Cartesian3) ScreenPosition {
	c := geodesy.CartographicFromCartesian(p)
	return v.ToScreen(c.LongitudeDegrees(), c.LatitudeDegrees())
}

// Rectangle returns the visible window.
func (v Viewport) Rectangle() geodesy.Rectangle {
	return geodesy.RectangleFromDegrees(v.Bound.Left(), v.Bound.Bottom(), v.Bound.Right(), v.Bound.Top())
}

// Scene is an in-memory Host. It keeps collections and subscribers, and
// picks against a flat Viewport. Elevation, when set, gives the globe
// height under a pick.
type Scene struct {
	mu sync.RWMutex

	viewport    Viewport
	collections []*Collection
	subs        map[int]func(Event)
	nextSub     int

	Elevation     func(lon, lat float64) float64
	PickTolerance float64

	renders atomic.Int64
}

// New constructs an empty scene looking at viewport.
func New(viewport Viewport) *Scene {
	return &Scene{
		viewport: viewport,
		subs:     make(map[int]func(Event)),
	}
}

// Viewport returns the current window.
func (s *Scene) Viewport() Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewport
}

// SetViewport moves the window. It does not emit a camera event; call
// CameraMoveEnd for that.
func (s *Scene) SetViewport(v Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = v
}

// Subscribe registers a callback for scene events. It returns an unsubscribe function.
func (s *Scene) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Subscribers returns the number of attached listeners.
func (s *Scene) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Dispatch delivers ev to every subscriber in registration order.
func (s *Scene) Dispatch(ev Event) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	s.mu.RUnlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(ev)
	}
}

// Click dispatches a single click.
func (s *Scene) Click(pos ScreenPosition) {
	s.Dispatch(Event{Type: EventClick, Position: pos})
}

// DoubleClick dispatches the browser sequence for a double click: two
// clicks followed by the double-click itself.
func (s *Scene) DoubleClick(pos ScreenPosition) {
	s.Click(pos)
	s.Click(pos)
	s.Dispatch(Event{Type: EventDoubleClick, Position: pos})
}

// MouseMove dispatches a pointer move.
func (s *Scene) MouseMove(pos ScreenPosition) {
	s.Dispatch(Event{Type: EventMouseMove, Position: pos})
}

// KeyDown dispatches a key press.
func (s *Scene) KeyDown(key string) {
	s.Dispatch(Event{Type: EventKeyDown, Key: key})
}

// CameraMoveEnd dispatches the end of a camera movement.
func (s *Scene) CameraMoveEnd() {
	s.Dispatch(Event{Type: EventCameraMoveEnd})
}

// At converts degrees to a pixel in the current viewport.
func (s *Scene) At(lon, lat float64) ScreenPosition {
	return s.Viewport().ToScreen(lon, lat)
}

func (s *Scene) AddCollection(c *Collection) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.collections {
		if other == c {
			return
		}
	}
	s.collections = append(s.collections, c)
}

func (s *Scene) RemoveCollection(c *Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, other := range s.collections {
		if other == c {
			s.collections = append(s.collections[:i], s.collections[i+1:]...)
			return
		}
	}
}

// Collections returns a snapshot slice of the attached collections.
func (s *Scene) Collections() []*Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Collection(nil), s.collections...)
}

// RequestRender counts render requests; the in-memory scene has nothing
// to draw.
func (s *Scene) RequestRender() { s.renders.Add(1) }

// Renders returns the number of RequestRender calls so far.
func (s *Scene) Renders() int64 { return s.renders.Load() }

// Pick resolves pos against the viewport. Collections added later are on
// top, and inside a collection billboards are above primitives.
func (s *Scene) Pick(pos ScreenPosition, exclude ...*Collection) PickResult {
	s.mu.RLock()
	v := s.viewport
	collections := append([]*Collection(nil), s.collections...)
	elevation := s.Elevation
	tolerance := s.PickTolerance
	s.mu.RUnlock()
	if tolerance <= 0 {
		tolerance = DefaultPickTolerance
	}

	var res PickResult
	if pos.X >= 0 && pos.Y >= 0 && pos.X <= v.Width && pos.Y <= v.Height {
		ll := v.ToGeographic(pos)
		h := 0.0
		if elevation != nil {
			h = elevation(ll.Lon(), ll.Lat())
		}
		res.Cartographic = geodesy.FromDegrees(ll.Lon(), ll.Lat(), h)
		res.Cartesian = res.Cartographic.ToCartesian()
		res.OK = true
	}

	skip := make(map[*Collection]struct{}, len(exclude))
	for _, c := range exclude {
		skip[c] = struct{}{}
	}
	for i := len(collections) - 1; i >= 0; i-- {
		c := collections[i]
		if _, ok := skip[c]; ok || !c.Show() {
			continue
		}
		c.View(func(primitives []*primitive.Primitive, billboards []*primitive.Billboard) {
			for j := len(billboards) - 1; j >= 0; j-- {
				b := billboards[j]
				if !b.Show {
					continue
				}
				if dist(v.project(b.Position), pos) <= tolerance {
					res.Objects = append(res.Objects, PickedObject{Billboard: b, Collection: c})
				}
			}
			for j := len(primitives) - 1; j >= 0; j-- {
				p := primitives[j]
				if !p.Show || !p.AllowPicking {
					continue
				}
				if hitPrimitive(v, p, pos, tolerance) {
					res.Objects = append(res.Objects, PickedObject{Primitive: p, Collection: c})
				}
			}
		})
	}
	return res
}

func hitPrimitive(v Viewport, p *primitive.Primitive, pos ScreenPosition, tolerance float64) bool {
	pts := make([]ScreenPosition, len(p.Positions))
	for i, c := range p.Positions {
		pts[i] = v.project(c)
	}
	if p.Kind.IsLine() {
		for i := 0; i+1 < len(pts); i++ {
			if segmentDistance(pos, pts[i], pts[i+1]) <= tolerance {
				return true
			}
		}
		return false
	}
	return insidePolygon(pos, pts)
}

func dist(a, b ScreenPosition) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func segmentDistance(p, a, b ScreenPosition) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return dist(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return dist(p, ScreenPosition{X: a.X + t*dx, Y: a.Y + t*dy})
}

func insidePolygon(p ScreenPosition, ring []ScreenPosition) bool {
	in := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}
