package primitive

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is a straight-alpha RGBA colour with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// Transparent is the fully transparent colour.
var Transparent = Color{}

// ParseColor accepts #rgb, #rrggbb, #rrggbbaa, rgb(...), rgba(...) and
// "transparent".
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case s == "transparent":
		return Transparent, nil
	case strings.HasPrefix(s, "#") && len(s) == 9:
		c, err := colorful.Hex(s[:7])
		if err != nil {
			return Color{}, fmt.Errorf("parse colour %q: %w", s, err)
		}
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("parse colour %q alpha: %w", s, err)
		}
		return Color{R: c.R, G: c.G, B: c.B, A: float64(a) / 255}, nil
	case strings.HasPrefix(s, "#"):
		c, err := colorful.Hex(s)
		if err != nil {
			return Color{}, fmt.Errorf("parse colour %q: %w", s, err)
		}
		return Color{R: c.R, G: c.G, B: c.B, A: 1}, nil
	case strings.HasPrefix(s, "rgba(") || strings.HasPrefix(s, "rgb("):
		return parseFunctional(s)
	default:
		return Color{}, fmt.Errorf("parse colour %q: unsupported format", s)
	}
}

func parseFunctional(s string) (Color, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return Color{}, fmt.Errorf("parse colour %q: malformed", s)
	}
	parts := strings.Split(s[open+1:len(s)-1], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return Color{}, fmt.Errorf("parse colour %q: want 3 or 4 components", s)
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Color{}, fmt.Errorf("parse colour %q: %w", s, err)
		}
		vals[i] = v
	}
	c := Color{R: vals[0] / 255, G: vals[1] / 255, B: vals[2] / 255, A: 1}
	if len(vals) == 4 {
		c.A = vals[3]
	}
	return c.clamp(), nil
}

// MustParseColor is ParseColor for compile-time constants.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// WithAlpha returns c with its alpha replaced.
func (c Color) WithAlpha(a float64) Color {
	c.A = math.Max(0, math.Min(1, a))
	return c
}

// Hex formats c as #rrggbbaa.
func (c Color) Hex() string {
	rgb := colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().Hex()
	return fmt.Sprintf("%s%02x", rgb, uint8(math.Round(c.A*255)))
}

// RGBA converts c to a premultiplied image/color value.
func (c Color) RGBA() color.RGBA {
	c = c.clamp()
	return color.RGBA{
		R: uint8(math.Round(c.R * c.A * 255)),
		G: uint8(math.Round(c.G * c.A * 255)),
		B: uint8(math.Round(c.B * c.A * 255)),
		A: uint8(math.Round(c.A * 255)),
	}
}

func (c Color) clamp() Color {
	clamp := func(v float64) float64 { return math.Max(0, math.Min(1, v)) }
	return Color{R: clamp(c.R), G: clamp(c.G), B: clamp(c.B), A: clamp(c.A)}
}

// resolveColor parses s and applies opacity when it is set. An empty or
// malformed s falls back to def.
func resolveColor(s string, opacity *float64, def string) Color {
	c, err := ParseColor(s)
	if s == "" || err != nil {
		c = MustParseColor(def)
	}
	if opacity != nil {
		c = c.WithAlpha(*opacity)
	}
	return c
}
