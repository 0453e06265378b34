package tiles

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/signalsfoundry/globedraw/geodesy"
)

// MaxMercatorLatitude is the latitude, in degrees, where the web mercator
// square ends.
const MaxMercatorLatitude = 85.05112877980659

// TilingScheme lays tiles over the ellipsoid.
type TilingScheme interface {
	// Rectangle is the area covered by level 0, in radians.
	Rectangle() geodesy.Rectangle
	NumberOfXTilesAtLevel(level int) int
	NumberOfYTilesAtLevel(level int) int
	// PositionToTileXY returns the tile holding c. Positions outside the
	// scheme are clamped to its edge tiles.
	PositionToTileXY(c geodesy.Cartographic, level int) (x, y int)
	TileXYToRectangle(x, y, level int) geodesy.Rectangle
	// Geographic reports an equirectangular projection, whose texel spacing
	// does not shrink with latitude.
	Geographic() bool
}

// WebMercatorTilingScheme is the XYZ slippy-map layout: one tile at level 0
// and y growing southwards.
type WebMercatorTilingScheme struct{}

func (WebMercatorTilingScheme) Rectangle() geodesy.Rectangle {
	return geodesy.RectangleFromDegrees(-180, -MaxMercatorLatitude, 180, MaxMercatorLatitude)
}

func (WebMercatorTilingScheme) NumberOfXTilesAtLevel(level int) int { return 1 << level }

func (WebMercatorTilingScheme) NumberOfYTilesAtLevel(level int) int { return 1 << level }

func (s WebMercatorTilingScheme) PositionToTileXY(c geodesy.Cartographic, level int) (int, int) {
	lon := wrapLongitude(c.LongitudeDegrees())
	lat := clamp(c.LatitudeDegrees(), -MaxMercatorLatitude, MaxMercatorLatitude)
	t := maptile.At(orb.Point{lon, lat}, maptile.Zoom(level))
	n := s.NumberOfXTilesAtLevel(level)
	return clampIndex(int(t.X), n), clampIndex(int(t.Y), n)
}

func (WebMercatorTilingScheme) TileXYToRectangle(x, y, level int) geodesy.Rectangle {
	b := maptile.New(uint32(x), uint32(y), maptile.Zoom(level)).Bound()
	return geodesy.RectangleFromDegrees(b.Left(), b.Bottom(), b.Right(), b.Top())
}

func (WebMercatorTilingScheme) Geographic() bool { return false }

// GeographicTilingScheme splits the globe into two level-0 tiles of 180
// degrees in plate carrée.
type GeographicTilingScheme struct{}

func (GeographicTilingScheme) Rectangle() geodesy.Rectangle {
	return geodesy.RectangleFromDegrees(-180, -90, 180, 90)
}

func (GeographicTilingScheme) NumberOfXTilesAtLevel(level int) int { return 2 << level }

func (GeographicTilingScheme) NumberOfYTilesAtLevel(level int) int { return 1 << level }

func (s GeographicTilingScheme) PositionToTileXY(c geodesy.Cartographic, level int) (int, int) {
	nx, ny := s.NumberOfXTilesAtLevel(level), s.NumberOfYTilesAtLevel(level)
	lon := wrapLongitude(c.LongitudeDegrees())
	lat := clamp(c.LatitudeDegrees(), -90, 90)
	x := int(math.Floor((lon + 180) / (360 / float64(nx))))
	y := int(math.Floor((90 - lat) / (180 / float64(ny))))
	return clampIndex(x, nx), clampIndex(y, ny)
}

func (s GeographicTilingScheme) TileXYToRectangle(x, y, level int) geodesy.Rectangle {
	w := 360 / float64(s.NumberOfXTilesAtLevel(level))
	h := 180 / float64(s.NumberOfYTilesAtLevel(level))
	west := -180 + float64(x)*w
	north := 90 - float64(y)*h
	return geodesy.RectangleFromDegrees(west, north-h, west+w, north)
}

func (GeographicTilingScheme) Geographic() bool { return true }

// Tile is one cell of a tiling scheme.
type Tile struct {
	X, Y, Z   int
	ID        string
	Rectangle geodesy.Rectangle
}

// TileID formats the cache key of a tile.
func TileID(x, y, z int) string { return fmt.Sprintf("%d:%d:%d", x, y, z) }

func newTile(scheme TilingScheme, x, y, level int) Tile {
	return Tile{X: x, Y: y, Z: level, ID: TileID(x, y, level), Rectangle: scheme.TileXYToRectangle(x, y, level)}
}

// MakeTile returns the tile of scheme holding c at level.
func MakeTile(c geodesy.Cartographic, level int, scheme TilingScheme) Tile {
	x, y := scheme.PositionToTileXY(c, level)
	return newTile(scheme, x, y, level)
}

// CoveringTiles returns the tiles of view at level, nearest to the tile
// under center first, at most limit of them. A view crossing the
// antimeridian wraps around in x.
func CoveringTiles(scheme TilingScheme, view geodesy.Rectangle, center geodesy.Cartographic, level, limit int) []Tile {
	topLeft := MakeTile(geodesy.Cartographic{Longitude: view.West, Latitude: view.North}, level, scheme)
	bottomRight := MakeTile(geodesy.Cartographic{Longitude: view.East, Latitude: view.South}, level, scheme)
	centerTile := MakeTile(center, level, scheme)

	n := scheme.NumberOfXTilesAtLevel(level)
	lastX := bottomRight.X
	if lastX < topLeft.X {
		lastX += n
	}
	centerX := centerTile.X
	if centerX < topLeft.X && lastX >= n {
		centerX += n
	}

	type candidate struct {
		tile     Tile
		distance float64
	}
	var candidates []candidate
	for y := topLeft.Y; y <= bottomRight.Y; y++ {
		for x := topLeft.X; x <= lastX; x++ {
			candidates = append(candidates, candidate{
				tile:     newTile(scheme, x%n, y, level),
				distance: math.Hypot(float64(x-centerX), float64(y-centerTile.Y)),
			})
		}
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int { return cmp.Compare(a.distance, b.distance) })

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]Tile, len(candidates))
	for i, c := range candidates {
		out[i] = c.tile
	}
	return out
}

func wrapLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	return math.Mod(math.Mod(lon+180, 360)+360, 360) - 180
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
