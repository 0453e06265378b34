package tiles

import (
	"math"

	"github.com/signalsfoundry/globedraw/geodesy"
)

// LevelWithMaximumTexelSpacing returns the level of scheme whose texels
// are about texelSpacing metres wide at latitude (radians), for tiles of
// tileWidth pixels.
func LevelWithMaximumTexelSpacing(scheme TilingScheme, texelSpacing, latitude float64, tileWidth int) int {
	latitudeFactor := 1.0
	if !scheme.Geographic() {
		latitudeFactor = math.Cos(latitude)
	}
	levelZeroMaximumTexelSpacing := geodesy.WGS84.MaximumRadius() * scheme.Rectangle().Width() * latitudeFactor /
		(float64(tileWidth) * float64(scheme.NumberOfXTilesAtLevel(0)))
	level := math.Round(math.Log2(levelZeroMaximumTexelSpacing / texelSpacing))
	if math.IsNaN(level) || math.IsInf(level, 0) {
		return 0
	}
	return int(level)
}

// ComputeLevel picks the marker level matching a terrain geometric error.
// The level is capped at maxLevel; visible is false when it falls below
// minLevel, in which case minLevel is returned.
func ComputeLevel(scheme TilingScheme, geometricError, latitude float64, tileWidth, minLevel, maxLevel int) (level int, visible bool) {
	level = LevelWithMaximumTexelSpacing(scheme, geometricError, latitude, tileWidth)
	if level > maxLevel {
		level = maxLevel
	}
	if level < minLevel {
		return minLevel, false
	}
	return level, true
}
