// Package tiles shows large point datasets as billboards, loading them one
// web-mercator tile at a time at a level that follows the terrain detail
// under the camera.
package tiles

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/internal/logging"
	"github.com/signalsfoundry/globedraw/primitive"
	"github.com/signalsfoundry/globedraw/scene"
	"github.com/signalsfoundry/globedraw/timectrl"
)

const tracerName = "github.com/signalsfoundry/globedraw/tiles"

// ErrNoLoader is returned by New when Options.Loader is nil.
var ErrNoLoader = errors.New("tiles: loader is required")

const (
	DefaultTileWidth        = 512
	DefaultMinimumLevel     = 0
	DefaultMaximumLevel     = 18
	DefaultMaxTiles         = 32
	DefaultMaxResidentTiles = 256
	DefaultDebounce         = 300 * time.Millisecond
)

// Load outcomes reported to MetricsRecorder.
const (
	OutcomeShown     = "shown"
	OutcomeHidden    = "hidden"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
)

// Loader fetches the features of one tile.
type Loader interface {
	LoadTile(ctx context.Context, tile Tile) ([]*geojson.Feature, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, tile Tile) ([]*geojson.Feature, error)

func (f LoaderFunc) LoadTile(ctx context.Context, tile Tile) ([]*geojson.Feature, error) {
	return f(ctx, tile)
}

// MetricsRecorder receives tile cache observations.
type MetricsRecorder interface {
	ObserveTileLoad(outcome string, d time.Duration)
	SetResidentTiles(n int)
	IncTileEvictions()
}

// Options configures a Collection. Zero values take the defaults above.
type Options struct {
	Loader       Loader
	TilingScheme TilingScheme
	TileWidth    int
	MinimumLevel int
	// MaximumLevel caps the marker level; a terrain finer than this keeps
	// showing tiles of this level. Nil means DefaultMaximumLevel, and 0
	// keeps a single-tile world at level 0.
	MaximumLevel *int
	// MaxTiles bounds the tiles requested per camera move.
	MaxTiles int
	// MaxResidentTiles bounds the cache. Only hidden tiles are evicted, so
	// the cache can grow past it while every entry is loading or shown.
	MaxResidentTiles int
	Debounce         time.Duration
	// DebugTiles outlines every requested tile.
	DebugTiles    bool
	Style         Style
	StyleResolver StyleResolver
	Clock         timectrl.Clock
	Logger        logging.Logger
	Metrics       MetricsRecorder
}

func (o Options) withDefaults() Options {
	if o.TilingScheme == nil {
		o.TilingScheme = WebMercatorTilingScheme{}
	}
	if o.TileWidth <= 0 {
		o.TileWidth = DefaultTileWidth
	}
	if o.MinimumLevel < 0 {
		o.MinimumLevel = DefaultMinimumLevel
	}
	if o.MaximumLevel == nil {
		level := DefaultMaximumLevel
		o.MaximumLevel = &level
	}
	if o.MaxTiles <= 0 {
		o.MaxTiles = DefaultMaxTiles
	}
	if o.MaxResidentTiles <= 0 {
		o.MaxResidentTiles = DefaultMaxResidentTiles
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.StyleResolver == nil {
		o.StyleResolver = DefaultStyleResolver
	}
	if o.Clock == nil {
		o.Clock = timectrl.Real()
	}
	o.Logger = logging.OrNoop(o.Logger)
	return o
}

// TileState is the lifecycle of a cache entry.
type TileState int

const (
	TileLoading TileState = iota + 1
	TileShown
	TileHidden
)

func (s TileState) String() string {
	switch s {
	case TileLoading:
		return "loading"
	case TileShown:
		return "shown"
	case TileHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

type entry struct {
	tile       Tile
	state      TileState
	callID     uint64
	billboards []*primitive.Billboard
	elem       *list.Element
}

// Collection is a tiled billboard engine attached to a scene.
type Collection struct {
	host      scene.Host
	camera    scene.Camera
	opts      Options
	markers   *scene.Collection
	debug     *scene.Collection
	refreshes *timectrl.Debounce[struct{}]
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu          sync.Mutex
	style       StyleFunc
	cache       map[string]*entry
	lru         *list.List
	prev        []Tile
	callID      uint64
	removed     bool
	unsubscribe func()
}

// New attaches a tiled collection to host. Tiles are requested on every
// camera move end, or by Load.
func New(host scene.Host, camera scene.Camera, opts Options) (*Collection, error) {
	if host == nil || camera == nil {
		return nil, errors.New("tiles: host and camera are required")
	}
	if opts.Loader == nil {
		return nil, ErrNoLoader
	}
	opts = opts.withDefaults()
	if *opts.MaximumLevel < 0 || opts.MinimumLevel > *opts.MaximumLevel {
		return nil, fmt.Errorf("tiles: level range [%d,%d] is empty", opts.MinimumLevel, *opts.MaximumLevel)
	}
	style, err := opts.StyleResolver(opts.Style)
	if err != nil {
		return nil, fmt.Errorf("tiles: resolve style: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Collection{
		host:    host,
		camera:  camera,
		opts:    opts,
		markers: scene.NewCollection("tiles-markers"),
		debug:   scene.NewCollection("tiles-debug"),
		ctx:     ctx,
		cancel:  cancel,
		style:   style,
		cache:   make(map[string]*entry),
		lru:     list.New(),
	}
	c.refreshes = timectrl.NewDebounce(opts.Clock, opts.Debounce, func(struct{}) { c.refresh() })
	host.AddCollection(c.debug)
	host.AddCollection(c.markers)
	c.unsubscribe = host.Subscribe(func(ev scene.Event) {
		if ev.Type == scene.EventCameraMoveEnd {
			c.Load()
		}
	})
	return c, nil
}

// Load schedules a refresh of the requested tiles after the debounce
// period.
func (c *Collection) Load() {
	c.mu.Lock()
	removed := c.removed
	c.mu.Unlock()
	if removed {
		return
	}
	if _, ok := c.camera.RenderedTerrainLevel(); !ok {
		return
	}
	c.refreshes.Call(struct{}{})
}

// Wait blocks until every in-flight tile load has settled.
func (c *Collection) Wait() { c.wg.Wait() }

// Destroy detaches the collection and drops every tile. Loads still in
// flight are cancelled and their results discarded.
func (c *Collection) Destroy() {
	c.mu.Lock()
	if c.removed {
		c.mu.Unlock()
		return
	}
	c.removed = true
	c.cache = make(map[string]*entry)
	c.lru.Init()
	c.prev = nil
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.refreshes.Cancel()
	c.cancel()
	for _, col := range []*scene.Collection{c.debug, c.markers} {
		col.RemoveAll()
		c.host.RemoveCollection(col)
	}
	if c.opts.Metrics != nil {
		c.opts.Metrics.SetResidentTiles(0)
	}
	c.host.RequestRender()
}

// SetStyleFunction resolves s and restyles every billboard already loaded.
// The previous style stays in place when s does not resolve.
func (c *Collection) SetStyleFunction(s Style) error {
	style, err := c.opts.StyleResolver(s)
	if err != nil {
		return fmt.Errorf("tiles: resolve style: %w", err)
	}
	c.mu.Lock()
	if c.removed {
		c.mu.Unlock()
		return nil
	}
	c.style = style
	c.opts.Style = s
	var billboards []*primitive.Billboard
	for _, e := range c.cache {
		billboards = append(billboards, e.billboards...)
	}
	c.markers.Update(func() {
		for _, b := range billboards {
			f, ok := b.Payload.(*geojson.Feature)
			if !ok {
				continue
			}
			opts, err := style(f)
			if err != nil {
				c.opts.Logger.Warn(c.ctx, "restyle billboard failed", logging.String("billboard", b.ID), logging.Err(err))
				continue
			}
			b.Restyle(primitive.NewBillboard(b.Position, opts))
		}
	})
	c.mu.Unlock()
	c.host.RequestRender()
	return nil
}

// VisibleTiles returns the tiles requested by the last refresh, nearest
// to the camera target first.
func (c *Collection) VisibleTiles() []Tile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.prev)
}

// CachedTiles returns the ids of every cache entry, sorted.
func (c *Collection) CachedTiles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.cache))
	for id := range c.cache {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// State returns the cache state of the tile with id.
func (c *Collection) State(id string) (TileState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[id]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// requestedTiles picks the marker level and the tiles covering the view.
// Nil when the camera has no target or the level is below the minimum.
func (c *Collection) requestedTiles(terrainLevel int) []Tile {
	target, ok := c.camera.Target()
	if !ok {
		return nil
	}
	geometricError := c.camera.LevelMaximumGeometricError(terrainLevel)
	level, visible := ComputeLevel(c.opts.TilingScheme, geometricError, target.Latitude,
		c.opts.TileWidth, c.opts.MinimumLevel, *c.opts.MaximumLevel)
	if !visible {
		return nil
	}
	return CoveringTiles(c.opts.TilingScheme, c.camera.ViewRectangle(), target, level, c.opts.MaxTiles)
}

func (c *Collection) refresh() {
	c.mu.Lock()
	if c.removed {
		c.mu.Unlock()
		return
	}
	terrainLevel, ok := c.camera.RenderedTerrainLevel()
	if !ok {
		c.mu.Unlock()
		return
	}
	c.callID++
	callID := c.callID
	tiles := c.requestedTiles(terrainLevel)

	c.debug.RemoveAll()
	requested := make(map[string]struct{}, len(tiles))
	for _, t := range tiles {
		requested[t.ID] = struct{}{}
	}
	var hide []*entry
	for _, t := range c.prev {
		if _, ok := requested[t.ID]; ok {
			continue
		}
		// Loading entries resolve hidden since their call id is stale.
		if e, ok := c.cache[t.ID]; ok && e.state != TileLoading {
			hide = append(hide, e)
		}
	}
	c.markers.Update(func() {
		for _, e := range hide {
			e.setShow(false)
		}
	})
	c.host.RequestRender()

	var loads []*entry
	for _, t := range tiles {
		if c.opts.DebugTiles {
			c.debug.AddPrimitive(outline(t))
		}
		e, ok := c.cache[t.ID]
		if !ok {
			e = &entry{tile: t, state: TileLoading, callID: callID}
			e.elem = c.lru.PushFront(e)
			c.cache[t.ID] = e
			loads = append(loads, e)
			continue
		}
		c.lru.MoveToFront(e.elem)
		if e.state == TileLoading {
			e.callID = callID
			continue
		}
		c.markers.Update(func() { e.setShow(true) })
	}
	c.prev = tiles
	c.evict()
	c.mu.Unlock()

	c.opts.Logger.Debug(c.ctx, "tiles refreshed",
		logging.Int("requested", len(tiles)),
		logging.Int("loading", len(loads)),
		logging.Any("call_id", callID),
	)
	c.host.RequestRender()
	for _, e := range loads {
		c.wg.Add(1)
		go c.load(e, e.tile, callID)
	}
}

// setShow flips every billboard of e. Called inside markers.Update.
func (e *entry) setShow(show bool) {
	for _, b := range e.billboards {
		b.Show = show
	}
	if show {
		e.state = TileShown
	} else {
		e.state = TileHidden
	}
}

func (c *Collection) load(e *entry, tile Tile, callID uint64) {
	defer c.wg.Done()
	ctx, span := otel.Tracer(tracerName).Start(c.ctx, "tiles.LoadTile",
		trace.WithAttributes(
			attribute.String("tile.id", tile.ID),
			attribute.Int64("tile.call_id", int64(callID)),
		))
	defer span.End()

	start := c.opts.Clock.Now()
	features, err := c.opts.Loader.LoadTile(ctx, tile)
	elapsed := c.opts.Clock.Now().Sub(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	c.mu.Lock()
	if c.removed || c.cache[tile.ID] != e {
		c.mu.Unlock()
		c.observeLoad(OutcomeDiscarded, elapsed)
		return
	}
	if err != nil {
		delete(c.cache, tile.ID)
		c.lru.Remove(e.elem)
		c.mu.Unlock()
		c.opts.Logger.Warn(ctx, "tile load failed", logging.String("tile", tile.ID), logging.Err(err))
		c.observeLoad(OutcomeFailed, elapsed)
		c.observeResident()
		return
	}

	e.billboards = c.billboards(ctx, features)
	for _, b := range e.billboards {
		c.markers.AddBillboard(b)
	}
	outcome := OutcomeHidden
	show := e.callID == c.callID
	if show {
		outcome = OutcomeShown
	}
	c.markers.Update(func() { e.setShow(show) })
	c.evict()
	c.mu.Unlock()

	span.SetAttributes(attribute.Int("tile.features", len(e.billboards)), attribute.String("tile.outcome", outcome))
	c.observeLoad(outcome, elapsed)
	if show {
		c.host.RequestRender()
	}
}

// billboards builds hidden markers for the Point features. Called with
// c.mu held.
func (c *Collection) billboards(ctx context.Context, features []*geojson.Feature) []*primitive.Billboard {
	out := make([]*primitive.Billboard, 0, len(features))
	for _, f := range features {
		if f == nil || f.Geometry == nil || !f.Geometry.IsPoint() || len(f.Geometry.Point) < 2 {
			continue
		}
		p := f.Geometry.Point
		height := 0.0
		if len(p) > 2 {
			height = p[2]
		}
		opts, err := c.style(f)
		if err != nil {
			c.opts.Logger.Warn(ctx, "style feature failed", logging.Err(err))
			continue
		}
		opts.Hidden = true
		opts.Payload = f
		out = append(out, primitive.NewBillboard(geodesy.FromDegreesToCartesian(p[0], p[1], height), opts))
	}
	return out
}

// evict drops hidden entries, least recently requested first, until the
// cache fits MaxResidentTiles. Called with c.mu held.
func (c *Collection) evict() {
	evicted := 0
	for el := c.lru.Back(); el != nil && len(c.cache) > c.opts.MaxResidentTiles; {
		e := el.Value.(*entry)
		prev := el.Prev()
		if e.state == TileHidden {
			c.markers.RemoveBillboards(e.billboards)
			c.lru.Remove(el)
			delete(c.cache, e.tile.ID)
			evicted++
		}
		el = prev
	}
	if c.opts.Metrics != nil {
		for range evicted {
			c.opts.Metrics.IncTileEvictions()
		}
		c.opts.Metrics.SetResidentTiles(len(c.cache))
	}
}

func (c *Collection) observeLoad(outcome string, d time.Duration) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.ObserveTileLoad(outcome, d)
	}
}

func (c *Collection) observeResident() {
	if c.opts.Metrics == nil {
		return
	}
	c.mu.Lock()
	n := len(c.cache)
	c.mu.Unlock()
	c.opts.Metrics.SetResidentTiles(n)
}

func outline(t Tile) *primitive.Primitive {
	corners := t.Rectangle.Corners()
	coords := make([]geodesy.Cartesian3, len(corners))
	for i, cg := range corners {
		coords[i] = cg.ToCartesian()
	}
	return primitive.NewPolyline(coords, primitive.Style{
		ID:            t.ID,
		Color:         "#ff0000",
		Opacity:       primitive.Opacity(0.5),
		ClampToGround: true,
	})
}
