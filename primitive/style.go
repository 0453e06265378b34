package primitive

import "image"

// MarkerStyle describes a circular vertex or cursor glyph.
type MarkerStyle struct {
	Color  string  `yaml:"color"`
	Radius float64 `yaml:"radius"`
	Width  float64 `yaml:"width"`
}

// LineStyle describes a drawn line.
type LineStyle struct {
	Color      string   `yaml:"color"`
	Opacity    *float64 `yaml:"opacity"`
	Width      float64  `yaml:"width"`
	DashLength float64  `yaml:"dashLength"`
}

// FillStyle describes a drawn area.
type FillStyle struct {
	Color   string   `yaml:"color"`
	Opacity *float64 `yaml:"opacity"`
}

// EditingStyle groups the styles used while drawing and editing.
type EditingStyle struct {
	Cursor          MarkerStyle `yaml:"cursor"`
	CoordinatesNode MarkerStyle `yaml:"coordinatesNode"`
	LineDrawing     LineStyle   `yaml:"lineDrawing"`
	AreaDrawing     FillStyle   `yaml:"areaDrawing"`
	Wireframe       LineStyle   `yaml:"wireframe"`
	// Area is the fill shown for a circle being dragged.
	Area FillStyle `yaml:"area"`
}

// DefaultEditingStyle returns the stock editing style.
func DefaultEditingStyle() EditingStyle {
	return EditingStyle{
		Cursor:          MarkerStyle{Color: "#ffcc33", Radius: 5, Width: 2},
		CoordinatesNode: MarkerStyle{Color: "#ffffff", Radius: 4, Width: 1},
		LineDrawing:     LineStyle{Color: "#ffcc33", Width: 3, DashLength: 10},
		AreaDrawing:     FillStyle{Color: "#ffffff", Opacity: Opacity(0.5)},
		Wireframe:       LineStyle{Color: "#ffcc33", Opacity: Opacity(0.5), Width: 1, DashLength: 10},
		Area:            FillStyle{Color: "#ffffff", Opacity: Opacity(0.5)},
	}
}

// Merge fills every unset field of s from base.
func (s EditingStyle) Merge(base EditingStyle) EditingStyle {
	s.Cursor = mergeMarker(s.Cursor, base.Cursor)
	s.CoordinatesNode = mergeMarker(s.CoordinatesNode, base.CoordinatesNode)
	s.LineDrawing = mergeLine(s.LineDrawing, base.LineDrawing)
	s.Wireframe = mergeLine(s.Wireframe, base.Wireframe)
	s.AreaDrawing = mergeFill(s.AreaDrawing, base.AreaDrawing)
	s.Area = mergeFill(s.Area, base.Area)
	return s
}

func mergeMarker(m, base MarkerStyle) MarkerStyle {
	if m.Color == "" {
		m.Color = base.Color
	}
	if m.Radius <= 0 {
		m.Radius = base.Radius
	}
	if m.Width <= 0 {
		m.Width = base.Width
	}
	return m
}

func mergeLine(l, base LineStyle) LineStyle {
	if l.Color == "" {
		l.Color = base.Color
	}
	if l.Opacity == nil {
		l.Opacity = base.Opacity
	}
	if l.Width <= 0 {
		l.Width = base.Width
	}
	if l.DashLength == 0 {
		l.DashLength = base.DashLength
	}
	return l
}

func mergeFill(f, base FillStyle) FillStyle {
	if f.Color == "" {
		f.Color = base.Color
	}
	if f.Opacity == nil {
		f.Opacity = base.Opacity
	}
	return f
}

// Line converts a LineStyle into factory options.
func (l LineStyle) Line(geodesic bool) Style {
	return Style{Color: l.Color, Opacity: l.Opacity, Width: l.Width, DashLength: l.DashLength, Geodesic: geodesic}
}

// Fill converts a FillStyle into factory options.
func (f FillStyle) Fill(geodesic bool) Style {
	return Style{Color: f.Color, Opacity: f.Opacity, Geodesic: geodesic}
}

// Markers are the glyph images shared by the draw and modify engines.
type Markers struct {
	Cursor *image.RGBA
	Node   *image.RGBA
}

// NewMarkers renders the cursor and coordinate node glyphs for s: a white
// ring for the cursor and a faint disc with a white rim for nodes. The
// billboards tint them with the style colours.
func NewMarkers(s EditingStyle) (Markers, error) {
	cursor, err := CircleMarkerImage(int(s.Cursor.Radius*2), MarkerOptions{
		Stroke:      "#ffffff",
		StrokeWidth: s.Cursor.Width,
		Fill:        "rgba(0, 0, 0, 0)",
	})
	if err != nil {
		return Markers{}, err
	}
	node, err := CircleMarkerImage(int(s.CoordinatesNode.Radius*2), MarkerOptions{
		Stroke:      "#ffffff",
		StrokeWidth: s.CoordinatesNode.Width,
		Fill:        "rgba(0, 0, 0, 0.1)",
	})
	if err != nil {
		return Markers{}, err
	}
	return Markers{Cursor: cursor, Node: node}, nil
}
