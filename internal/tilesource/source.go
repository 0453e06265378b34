// Package tilesource serves the points of a GeoJSON or shapefile dataset
// tile by tile for the tiled billboard engine.
package tilesource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	geojson "github.com/paulmach/go.geojson"

	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/tiles"
)

// DefaultIndexZoom is the web-mercator level points are bucketed at.
const DefaultIndexZoom maptile.Zoom = 12

// ErrUnsupportedFormat is returned by Open for unknown file extensions.
var ErrUnsupportedFormat = errors.New("tilesource: unsupported dataset format")

// Source holds a point dataset bucketed by web-mercator tile. It is
// read-only after construction and safe for concurrent loads.
type Source struct {
	zoom    maptile.Zoom
	buckets map[maptile.Tile][]*geojson.Feature
	count   int
	// Limit caps the features returned per tile. Zero means no cap.
	Limit int
}

// New buckets the Point features of features. Other geometries are
// skipped.
func New(features []*geojson.Feature, zoom maptile.Zoom) *Source {
	s := &Source{zoom: zoom, buckets: make(map[maptile.Tile][]*geojson.Feature)}
	for _, f := range features {
		if f == nil || f.Geometry == nil || !f.Geometry.IsPoint() || len(f.Geometry.Point) < 2 {
			continue
		}
		p := f.Geometry.Point
		t := maptile.At(orb.Point{p[0], clampLat(p[1])}, zoom)
		s.buckets[t] = append(s.buckets[t], f)
		s.count++
	}
	return s
}

// Open reads a dataset by extension: .geojson and .json files hold a
// FeatureCollection, .shp files a point shapefile.
func Open(path string) (*Source, error) {
	var (
		features []*geojson.Feature
		err      error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		features, err = readGeoJSON(path)
	case ".shp":
		features, err = readShapefile(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	return New(features, DefaultIndexZoom), nil
}

func readGeoJSON(path string) ([]*geojson.Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tilesource: read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("tilesource: parse %s: %w", path, err)
	}
	return fc.Features, nil
}

// readShapefile turns every shp.Point into a Point feature carrying the
// record's attributes as string properties.
func readShapefile(path string) ([]*geojson.Feature, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tilesource: open %s: %w", path, err)
	}
	defer shape.Close()

	fields := shape.Fields()
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = strings.TrimRight(string(field.Name[:]), "\x00 ")
	}

	var features []*geojson.Feature
	for shape.Next() {
		n, p := shape.Shape()
		point, ok := p.(*shp.Point)
		if !ok {
			continue
		}
		f := geojson.NewPointFeature([]float64{point.X, point.Y})
		f.ID = fmt.Sprintf("%s-%d", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), n)
		for i, name := range names {
			if attr := strings.TrimSpace(strings.Trim(shape.ReadAttribute(n, i), "\x00")); attr != "" {
				f.SetProperty(name, attr)
			}
		}
		features = append(features, f)
	}
	return features, nil
}

// Len returns the number of indexed points.
func (s *Source) Len() int { return s.count }

// LoadTile returns the points inside tile.Rectangle. It works for any
// tiling scheme; the web-mercator buckets only narrow the search.
func (s *Source) LoadTile(ctx context.Context, tile tiles.Tile) ([]*geojson.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*geojson.Feature
	for _, bucket := range s.candidates(tile.Rectangle) {
		for _, f := range bucket {
			p := f.Geometry.Point
			if !tile.Rectangle.Contains(geodesy.FromDegrees(p[0], p[1], 0)) {
				continue
			}
			out = append(out, f)
			if s.Limit > 0 && len(out) >= s.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// candidates returns the buckets that may hold points of rect.
func (s *Source) candidates(rect geodesy.Rectangle) [][]*geojson.Feature {
	nw := maptile.At(orb.Point{geodesy.ToDegrees(rect.West), clampLat(geodesy.ToDegrees(rect.North))}, s.zoom)
	se := maptile.At(orb.Point{geodesy.ToDegrees(rect.East), clampLat(geodesy.ToDegrees(rect.South))}, s.zoom)
	if nw.X > se.X {
		// Crossing the antimeridian; scan every bucket.
		return s.all()
	}
	span := uint64(se.X-nw.X+1) * uint64(se.Y-nw.Y+1)
	if span > uint64(len(s.buckets)) {
		return s.all()
	}
	var out [][]*geojson.Feature
	for y := nw.Y; y <= se.Y; y++ {
		for x := nw.X; x <= se.X; x++ {
			if b, ok := s.buckets[maptile.New(x, y, s.zoom)]; ok {
				out = append(out, b)
			}
		}
	}
	return out
}

func (s *Source) all() [][]*geojson.Feature {
	out := make([][]*geojson.Feature, 0, len(s.buckets))
	for _, b := range s.buckets {
		out = append(out, b)
	}
	return out
}

func clampLat(lat float64) float64 {
	if lat > tiles.MaxMercatorLatitude {
		return tiles.MaxMercatorLatitude
	}
	if lat < -tiles.MaxMercatorLatitude {
		return -tiles.MaxMercatorLatitude
	}
	return lat
}
