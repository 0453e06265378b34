package primitive

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// MarkerOptions styles CircleMarkerImage.
type MarkerOptions struct {
	// Stroke is the outline colour; empty draws no outline.
	Stroke      string
	StrokeWidth float64
	// Fill is the disc colour; empty defaults to white.
	Fill string
}

const circleSegments = 64

// CircleMarkerImage rasterises a disc of diameter size with an optional
// outline centred on its rim. With a stroke the image grows by two stroke
// widths so the outline is never clipped.
func CircleMarkerImage(size int, opts MarkerOptions) (*image.RGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("marker size %d must be positive", size)
	}
	fill := opts.Fill
	if fill == "" {
		fill = "#ffffff"
	}
	fillColor, err := ParseColor(fill)
	if err != nil {
		return nil, err
	}
	strokeWidth := opts.StrokeWidth
	if strokeWidth <= 0 {
		strokeWidth = 1
	}

	full := size
	if opts.Stroke != "" {
		full = size + int(math.Ceil(strokeWidth*2))
	}
	img := image.NewRGBA(image.Rect(0, 0, full, full))
	c := float64(full) / 2
	r := float64(size) / 2

	fillRing(img, c, r, 0, fillColor.RGBA())
	if opts.Stroke != "" {
		strokeColor, err := ParseColor(opts.Stroke)
		if err != nil {
			return nil, err
		}
		outer := r + strokeWidth/2
		inner := math.Max(0, r-strokeWidth/2)
		fillRing(img, c, outer, inner, strokeColor.RGBA())
	}
	return img, nil
}

// fillRing paints the annulus between inner and outer around (c, c). An
// inner radius of zero paints a full disc. The inner path runs in the
// opposite direction so its winding cancels the outer one.
func fillRing(dst *image.RGBA, c, outer, inner float64, col color.RGBA) {
	if outer <= 0 || col.A == 0 {
		return
	}
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	circlePath(z, c, outer, false)
	if inner > 0 {
		circlePath(z, c, inner, true)
	}
	z.Draw(dst, b, image.NewUniform(col), image.Point{})
}

func circlePath(z *vector.Rasterizer, c, r float64, reverse bool) {
	for i := 0; i <= circleSegments; i++ {
		theta := 2 * math.Pi * float64(i) / circleSegments
		if reverse {
			theta = -theta
		}
		x := float32(c + r*math.Cos(theta))
		y := float32(c + r*math.Sin(theta))
		if i == 0 {
			z.MoveTo(x, y)
			continue
		}
		z.LineTo(x, y)
	}
	z.ClosePath()
}
