package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineCollector bundles Prometheus metrics for the draw, modify and tiles
// engines. It satisfies draw.MetricsRecorder, modify.MetricsRecorder and
// tiles.MetricsRecorder.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	DrawSessions      *prometheus.CounterVec
	Edits             *prometheus.CounterVec
	TileLoads         *prometheus.CounterVec
	TileLoadDurations prometheus.Histogram
	TilesResident     prometheus.Gauge
	TileEvictions     prometheus.Counter
}

// NewEngineCollector registers the engine metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	sessions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globedraw_draw_sessions_total",
		Help: "Finished drawing sessions, labeled by geometry type and outcome.",
	}, []string{"geometry", "outcome"}), "globedraw_draw_sessions_total")
	if err != nil {
		return nil, err
	}

	edits, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globedraw_edits_total",
		Help: "Committed feature edits, labeled by the dragged handle kind.",
	}, []string{"handle"}), "globedraw_edits_total")
	if err != nil {
		return nil, err
	}

	loads, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globedraw_tile_loads_total",
		Help: "Settled tile loads, labeled by outcome (shown, hidden, failed, discarded).",
	}, []string{"outcome"}), "globedraw_tile_loads_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "globedraw_tile_load_duration_seconds",
		Help:    "Latency of tile loader calls in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}), "globedraw_tile_load_duration_seconds")
	if err != nil {
		return nil, err
	}

	resident, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "globedraw_tile_cache_resident",
		Help: "Current number of tiles held by the billboard cache.",
	}), "globedraw_tile_cache_resident")
	if err != nil {
		return nil, err
	}

	evictions, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globedraw_tile_cache_evictions_total",
		Help: "Hidden tiles dropped from the billboard cache.",
	}), "globedraw_tile_cache_evictions_total")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:          gatherer,
		DrawSessions:      sessions,
		Edits:             edits,
		TileLoads:         loads,
		TileLoadDurations: durations,
		TilesResident:     resident,
		TileEvictions:     evictions,
	}, nil
}

// Gatherer returns the gatherer backing Handler.
func (c *EngineCollector) Gatherer() prometheus.Gatherer {
	if c == nil || c.gatherer == nil {
		return prometheus.DefaultGatherer
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Gatherer(), promhttp.HandlerOpts{})
}

// ObserveDrawSession counts a finished drawing session.
func (c *EngineCollector) ObserveDrawSession(geometry, outcome string) {
	if c == nil || c.DrawSessions == nil {
		return
	}
	c.DrawSessions.WithLabelValues(geometry, outcome).Inc()
}

// ObserveEdit counts a committed edit.
func (c *EngineCollector) ObserveEdit(handle string) {
	if c == nil || c.Edits == nil {
		return
	}
	c.Edits.WithLabelValues(handle).Inc()
}

// ObserveTileLoad records a settled tile load and its latency.
func (c *EngineCollector) ObserveTileLoad(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	if c.TileLoads != nil {
		c.TileLoads.WithLabelValues(outcome).Inc()
	}
	if c.TileLoadDurations != nil {
		c.TileLoadDurations.Observe(d.Seconds())
	}
}

// SetResidentTiles sets the tile cache size.
func (c *EngineCollector) SetResidentTiles(n int) {
	if c == nil || c.TilesResident == nil {
		return
	}
	c.TilesResident.Set(float64(n))
}

// IncTileEvictions counts one evicted tile.
func (c *EngineCollector) IncTileEvictions() {
	if c == nil || c.TileEvictions == nil {
		return
	}
	c.TileEvictions.Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
