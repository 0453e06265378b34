package termhost

import (
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/primitive"
	"github.com/signalsfoundry/globedraw/scene"
)

const (
	lineGlyph      = '·'
	billboardGlyph = '●'
)

var (
	backgroundStyle = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
	statusStyle     = tcell.StyleDefault.Background(tcell.ColorNavy).Foreground(tcell.ColorWhite)
)

func colorStyle(c primitive.Color) tcell.Style {
	rgba := c.RGBA()
	return backgroundStyle.Foreground(tcell.NewRGBColor(int32(rgba.R), int32(rgba.G), int32(rgba.B)))
}

// Renderer draws scene collections onto a tcell.Screen.
type Renderer struct {
	screen tcell.Screen
	input  *Translator
}

// NewRenderer returns a Renderer using input's cell size.
func NewRenderer(screen tcell.Screen, input *Translator) *Renderer {
	return &Renderer{screen: screen, input: input}
}

// Draw clears the screen, then draws every shown collection in order and
// status on the bottom row.
func (r *Renderer) Draw(sc *scene.Scene, status string) {
	r.screen.SetStyle(backgroundStyle)
	r.screen.Clear()
	v := sc.Viewport()
	for _, c := range sc.Collections() {
		if !c.Show() {
			continue
		}
		c.View(func(prims []*primitive.Primitive, bbs []*primitive.Billboard) {
			for _, p := range prims {
				r.primitive(v, p)
			}
			for _, b := range bbs {
				r.billboard(v, b)
			}
		})
	}
	if status != "" {
		r.status(status)
	}
	r.screen.Show()
}

func (r *Renderer) cell(v scene.Viewport, p geodesy.Cartesian3) (int, int, bool) {
	c := geodesy.CartographicFromCartesian(p)
	pos := v.ToScreen(c.LongitudeDegrees(), c.LatitudeDegrees())
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) {
		return 0, 0, false
	}
	x, y := r.input.Cell(pos)
	return x, y, true
}

func (r *Renderer) primitive(v scene.Viewport, p *primitive.Primitive) {
	if !p.Show || p.Color.A == 0 {
		return
	}
	style := colorStyle(p.Color)
	closed := p.Kind != primitive.KindPolyline
	r.path(v, p.Positions, closed, style)
	for _, hole := range p.Holes {
		r.path(v, hole, true, style)
	}
}

func (r *Renderer) path(v scene.Viewport, positions []geodesy.Cartesian3, closed bool, style tcell.Style) {
	if len(positions) == 0 {
		return
	}
	px, py, ok := r.cell(v, positions[0])
	if !ok {
		return
	}
	first := [2]int{px, py}
	r.set(px, py, lineGlyph, style)
	for _, pos := range positions[1:] {
		x, y, ok := r.cell(v, pos)
		if !ok {
			continue
		}
		r.line(px, py, x, y, style)
		px, py = x, y
	}
	if closed && len(positions) > 2 {
		r.line(px, py, first[0], first[1], style)
	}
}

// line plots a Bresenham segment between two cells.
func (r *Renderer) line(x0, y0, x1, y1 int, style tcell.Style) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		r.set(x0, y0, lineGlyph, style)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (r *Renderer) billboard(v scene.Viewport, b *primitive.Billboard) {
	if !b.Show {
		return
	}
	x, y, ok := r.cell(v, b.Position)
	if !ok {
		return
	}
	c := b.Color
	if b.Image != nil {
		// Markers are drawn in their own colours; sample the centre pixel.
		bounds := b.Image.Bounds()
		px := b.Image.RGBAAt(bounds.Min.X+bounds.Dx()/2, bounds.Min.Y+bounds.Dy()/2)
		if px.A > 0 {
			c = primitive.Color{R: float64(px.R) / float64(px.A), G: float64(px.G) / float64(px.A), B: float64(px.B) / float64(px.A), A: 1}
		}
	}
	r.set(x, y, billboardGlyph, colorStyle(c))
}

func (r *Renderer) status(text string) {
	w, h := r.screen.Size()
	if h == 0 {
		return
	}
	col := 0
	for _, ch := range text {
		if col >= w {
			break
		}
		r.screen.SetContent(col, h-1, ch, nil, statusStyle)
		col++
	}
	for ; col < w; col++ {
		r.screen.SetContent(col, h-1, ' ', nil, statusStyle)
	}
}

func (r *Renderer) set(x, y int, ch rune, style tcell.Style) {
	w, h := r.screen.Size()
	if x < 0 || y < 0 || x >= w || y >= h {
		return
	}
	r.screen.SetContent(x, y, ch, nil, style)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
