package primitive

import (
	"image"
	"math"

	"github.com/signalsfoundry/globedraw/geodesy"
)

// Billboard is a screen-aligned image anchored at a 3D position.
type Billboard struct {
	ID       string
	Position geodesy.Cartesian3
	Image    *image.RGBA
	// Color tints Image.
	Color Color
	Scale float64
	// DisableDepthTestDistance is +Inf for markers that draw over terrain.
	DisableDepthTestDistance float64
	Show                     bool
	// Payload is an opaque value owned by whoever created the billboard,
	// such as the feature a tile marker stands for.
	Payload any
}

// BillboardOptions configures NewBillboard.
type BillboardOptions struct {
	ID          string
	Image       *image.RGBA
	Color       string
	Opacity     *float64
	Scale       float64
	AlwaysOnTop bool
	Hidden      bool
	Payload     any
}

// NewBillboard returns a billboard at position.
func NewBillboard(position geodesy.Cartesian3, opts BillboardOptions) *Billboard {
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	depth := 0.0
	if opts.AlwaysOnTop {
		depth = math.Inf(1)
	}
	return &Billboard{
		ID:                       opts.ID,
		Position:                 position,
		Image:                    opts.Image,
		Color:                    resolveColor(opts.Color, opts.Opacity, "#ffffff"),
		Scale:                    scale,
		DisableDepthTestDistance: depth,
		Show:                     !opts.Hidden,
		Payload:                  opts.Payload,
	}
}

// Restyle copies the visual fields of other onto b, keeping b's position,
// visibility and payload.
func (b *Billboard) Restyle(other *Billboard) {
	if other == nil {
		return
	}
	b.Image = other.Image
	b.Color = other.Color
	b.Scale = other.Scale
	b.DisableDepthTestDistance = other.DisableDepthTestDistance
}
