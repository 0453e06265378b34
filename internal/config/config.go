// Package config loads the settings shared by the globedraw binaries from
// a YAML file and GLOBEDRAW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/globedraw/draw"
	"github.com/signalsfoundry/globedraw/internal/logging"
	"github.com/signalsfoundry/globedraw/internal/observability"
	"github.com/signalsfoundry/globedraw/model"
	"github.com/signalsfoundry/globedraw/modify"
	"github.com/signalsfoundry/globedraw/primitive"
	"github.com/signalsfoundry/globedraw/tiles"
)

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type DrawConfig struct {
	Geodesic          bool          `yaml:"geodesic"`
	SampleTerrain     bool          `yaml:"sampleTerrain"`
	TerrainLevel      int           `yaml:"terrainLevel"`
	MouseMoveThrottle time.Duration `yaml:"mouseMoveThrottle"`
	CoordinatesLength int           `yaml:"coordinatesLength"`
}

type ModifyConfig struct {
	MouseMoveThrottle time.Duration `yaml:"mouseMoveThrottle"`
	ExtendLineString  bool          `yaml:"extendLineString"`
}

type TilesConfig struct {
	TileWidth        int           `yaml:"tileWidth"`
	MinimumLevel     int           `yaml:"minimumLevel"`
	MaximumLevel     int           `yaml:"maximumLevel"`
	MaxTiles         int           `yaml:"maxTiles"`
	MaxResidentTiles int           `yaml:"maxResidentTiles"`
	Debounce         time.Duration `yaml:"debounce"`
	DebugTiles       bool          `yaml:"debugTiles"`
	Style            tiles.Style   `yaml:"style"`
}

// Config is the full settings tree.
type Config struct {
	Logging logging.Config              `yaml:"logging"`
	Tracing observability.TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig               `yaml:"metrics"`
	Draw    DrawConfig                  `yaml:"draw"`
	Modify  ModifyConfig                `yaml:"modify"`
	Tiles   TilesConfig                 `yaml:"tiles"`
	// Style is the editing style shared by draw and modify. Unset fields
	// keep the defaults.
	Style primitive.EditingStyle `yaml:"style"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Logging: logging.Config{Level: "info", Format: "text"},
		Tracing: observability.DefaultTracingConfig(),
		Draw: DrawConfig{
			TerrainLevel:      draw.DefaultTerrainLevel,
			MouseMoveThrottle: draw.DefaultMouseMoveThrottle,
		},
		Modify: ModifyConfig{
			MouseMoveThrottle: modify.DefaultMouseMoveThrottle,
		},
		Tiles: TilesConfig{
			TileWidth:        tiles.DefaultTileWidth,
			MinimumLevel:     tiles.DefaultMinimumLevel,
			MaximumLevel:     tiles.DefaultMaximumLevel,
			MaxTiles:         tiles.DefaultMaxTiles,
			MaxResidentTiles: tiles.DefaultMaxResidentTiles,
			Debounce:         tiles.DefaultDebounce,
		},
		Style: primitive.DefaultEditingStyle(),
	}
}

// Load starts from Default, overlays the YAML file at path when path is
// not empty, then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.Style = cfg.Style.Merge(primitive.DefaultEditingStyle())
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engines cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Tiles.MinimumLevel < 0 || c.Tiles.MinimumLevel > c.Tiles.MaximumLevel {
		errs = append(errs, fmt.Errorf("tiles: level range [%d,%d] is empty", c.Tiles.MinimumLevel, c.Tiles.MaximumLevel))
	}
	if c.Tiles.TileWidth <= 0 {
		errs = append(errs, fmt.Errorf("tiles: tile width %d must be positive", c.Tiles.TileWidth))
	}
	if c.Draw.CoordinatesLength < 0 {
		errs = append(errs, fmt.Errorf("draw: coordinates length %d is negative", c.Draw.CoordinatesLength))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing: sample ratio %v outside [0,1]", c.Tracing.SampleRatio))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	c.Tracing = c.Tracing.WithEnv()
	if v := os.Getenv("GLOBEDRAW_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}

	var errs []error
	envBool("GLOBEDRAW_DRAW_GEODESIC", &c.Draw.Geodesic, &errs)
	envBool("GLOBEDRAW_DRAW_SAMPLE_TERRAIN", &c.Draw.SampleTerrain, &errs)
	envDuration("GLOBEDRAW_DRAW_MOUSE_MOVE_THROTTLE", &c.Draw.MouseMoveThrottle, &errs)
	envDuration("GLOBEDRAW_MODIFY_MOUSE_MOVE_THROTTLE", &c.Modify.MouseMoveThrottle, &errs)
	envBool("GLOBEDRAW_MODIFY_EXTEND_LINESTRING", &c.Modify.ExtendLineString, &errs)
	envInt("GLOBEDRAW_TILES_MAX_TILES", &c.Tiles.MaxTiles, &errs)
	envInt("GLOBEDRAW_TILES_MAX_RESIDENT_TILES", &c.Tiles.MaxResidentTiles, &errs)
	envInt("GLOBEDRAW_TILES_MINIMUM_LEVEL", &c.Tiles.MinimumLevel, &errs)
	envInt("GLOBEDRAW_TILES_MAXIMUM_LEVEL", &c.Tiles.MaximumLevel, &errs)
	envDuration("GLOBEDRAW_TILES_DEBOUNCE", &c.Tiles.Debounce, &errs)
	envBool("GLOBEDRAW_TILES_DEBUG", &c.Tiles.DebugTiles, &errs)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

func envBool(key string, dst *bool, errs *[]error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

func envInt(key string, dst *int, errs *[]error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func envDuration(key string, dst *time.Duration, errs *[]error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

// DrawOptions returns draw engine options for typ. Callbacks, hosts and
// recorders are left for the caller.
func (c Config) DrawOptions(typ model.GeometryType) draw.Options {
	return draw.Options{
		Type:              typ,
		CoordinatesLength: c.Draw.CoordinatesLength,
		Geodesic:          c.Draw.Geodesic,
		SampleTerrain:     c.Draw.SampleTerrain,
		TerrainLevel:      c.Draw.TerrainLevel,
		MouseMoveThrottle: c.Draw.MouseMoveThrottle,
		Style:             c.Style,
	}
}

// ModifyOptions returns modify engine options for doc.
func (c Config) ModifyOptions(doc model.Document) modify.Options {
	return modify.Options{
		GeoJSON:           doc,
		ExtendLineString:  c.Modify.ExtendLineString,
		MouseMoveThrottle: c.Modify.MouseMoveThrottle,
		Style:             c.Style,
	}
}

// TilesOptions returns tiled collection options reading from loader.
func (c Config) TilesOptions(loader tiles.Loader) tiles.Options {
	maximumLevel := c.Tiles.MaximumLevel
	return tiles.Options{
		Loader:           loader,
		TileWidth:        c.Tiles.TileWidth,
		MinimumLevel:     c.Tiles.MinimumLevel,
		MaximumLevel:     &maximumLevel,
		MaxTiles:         c.Tiles.MaxTiles,
		MaxResidentTiles: c.Tiles.MaxResidentTiles,
		Debounce:         c.Tiles.Debounce,
		DebugTiles:       c.Tiles.DebugTiles,
		Style:            c.Tiles.Style,
	}
}
