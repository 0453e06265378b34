package tiles

import (
	"fmt"
	"image"

	geojson "github.com/paulmach/go.geojson"

	"github.com/signalsfoundry/globedraw/model"
	"github.com/signalsfoundry/globedraw/primitive"
)

// Default marker look.
const (
	DefaultMarkerColor  = "#2a7fff"
	DefaultMarkerRadius = 6.0
	DefaultStrokeColor  = "#ffffff"
	DefaultStrokeWidth  = 1.5
)

// Style configures the markers of a tiled collection.
type Style struct {
	Color       string   `yaml:"color"`
	Opacity     *float64 `yaml:"opacity"`
	Radius      float64  `yaml:"radius"`
	StrokeColor string   `yaml:"strokeColor"`
	StrokeWidth float64  `yaml:"strokeWidth"`
	Scale       float64  `yaml:"scale"`
	// Rules override colour and radius for features whose property equals
	// a value. The first match wins.
	Rules []Rule `yaml:"rules"`
}

// Rule matches a feature property against a value.
type Rule struct {
	Property string  `yaml:"property"`
	Equals   string  `yaml:"equals"`
	Color    string  `yaml:"color"`
	Radius   float64 `yaml:"radius"`
}

func (r Rule) matches(f *geojson.Feature) bool {
	if f.Properties == nil {
		return false
	}
	v, ok := f.Properties[r.Property]
	return ok && fmt.Sprint(v) == r.Equals
}

// StyleFunc maps a point feature to the billboard that draws it.
type StyleFunc func(f *geojson.Feature) (primitive.BillboardOptions, error)

// StyleResolver turns a style configuration into a StyleFunc.
type StyleResolver func(Style) (StyleFunc, error)

type markerKey struct {
	color  string
	radius float64
}

// DefaultStyleResolver draws every feature as a circle marker. Marker
// images are rendered once per colour and radius.
func DefaultStyleResolver(s Style) (StyleFunc, error) {
	if s.Color == "" {
		s.Color = DefaultMarkerColor
	}
	if s.Radius <= 0 {
		s.Radius = DefaultMarkerRadius
	}
	if s.StrokeColor == "" {
		s.StrokeColor = DefaultStrokeColor
	}
	if s.StrokeWidth <= 0 {
		s.StrokeWidth = DefaultStrokeWidth
	}

	images := make(map[markerKey]*image.RGBA)
	render := func(k markerKey) error {
		if _, ok := images[k]; ok {
			return nil
		}
		img, err := primitive.CircleMarkerImage(int(k.radius*2), primitive.MarkerOptions{
			Stroke:      s.StrokeColor,
			StrokeWidth: s.StrokeWidth,
			Fill:        k.color,
		})
		if err != nil {
			return fmt.Errorf("tiles: marker style: %w", err)
		}
		images[k] = img
		return nil
	}

	base := markerKey{color: s.Color, radius: s.Radius}
	if err := render(base); err != nil {
		return nil, err
	}
	keys := make([]markerKey, len(s.Rules))
	for i, r := range s.Rules {
		k := base
		if r.Color != "" {
			k.color = r.Color
		}
		if r.Radius > 0 {
			k.radius = r.Radius
		}
		if err := render(k); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		keys[i] = k
	}

	return func(f *geojson.Feature) (primitive.BillboardOptions, error) {
		if f == nil {
			return primitive.BillboardOptions{}, model.ErrMissingGeometry
		}
		k := base
		for i, r := range s.Rules {
			if r.matches(f) {
				k = keys[i]
				break
			}
		}
		id, _ := model.FeatureID(f)
		return primitive.BillboardOptions{
			ID:      id,
			Image:   images[k],
			Opacity: s.Opacity,
			Scale:   s.Scale,
		}, nil
	}, nil
}
