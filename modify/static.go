package modify

import (
	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/model"
	"github.com/signalsfoundry/globedraw/primitive"
)

// handles maps the pickable objects of the static collection back to the
// feature part they edit.
type handles struct {
	primitives map[*primitive.Primitive]model.Handle
	billboards map[*primitive.Billboard]model.Handle
}

func newHandles() handles {
	return handles{
		primitives: make(map[*primitive.Primitive]model.Handle),
		billboards: make(map[*primitive.Billboard]model.Handle),
	}
}

// hitLine is the near-transparent pickable twin of a visible line.
func hitLine(s primitive.LineStyle, geodesic bool) primitive.Style {
	st := s.Line(geodesic)
	st.DashLength = 0
	st.Opacity = primitive.Opacity(0.01)
	st.AllowPicking = true
	return st
}

func (i *Interaction) vertexBillboard(pos geodesy.Cartesian3) *primitive.Billboard {
	return primitive.NewBillboard(pos, primitive.BillboardOptions{
		Image:       i.markers.Node,
		Color:       i.opts.Style.CoordinatesNode.Color,
		AlwaysOnTop: true,
	})
}

// drawStatic rebuilds the static collection and the handle tables from
// the tracked features. Called with i.mu held.
func (i *Interaction) drawStatic() {
	i.static.RemoveAll()
	i.handles = newHandles()
	for _, t := range i.features {
		i.drawFeature(t)
	}
	i.host.RequestRender()
}

func (i *Interaction) addBillboard(t tracked, b *primitive.Billboard, kind model.HandleKind, idx int) {
	i.static.AddBillboard(b)
	if t.hasID {
		i.handles.billboards[b] = model.Handle{FeatureID: t.id, Kind: kind, Index: idx}
	}
}

func (i *Interaction) addHitPrimitive(t tracked, p *primitive.Primitive, kind model.HandleKind, idx int) {
	if p == nil {
		return
	}
	i.static.AddPrimitive(p)
	if t.hasID {
		i.handles.primitives[p] = model.Handle{FeatureID: t.id, Kind: kind, Index: idx}
	}
}

func (i *Interaction) drawFeature(t tracked) {
	st := i.opts.Style
	switch t.typ {
	case model.GeometryCircle:
		center := t.coords[len(t.coords)-1]
		i.addBillboard(t, i.vertexBillboard(center), model.HandleCircleCenter, 0)
		if t.geodesic {
			fill := st.AreaDrawing.Fill(true)
			fill.ClampToGround = true
			i.static.AddPrimitive(primitive.NewEllipse(center, t.radius, fill))
			i.addHitPrimitive(t, primitive.NewEllipseOutline(center, t.radius, hitLine(st.LineDrawing, true)), model.HandleCircleBody, 0)
			i.static.AddPrimitive(primitive.NewEllipseOutline(center, t.radius, st.LineDrawing.Line(true)))
		} else {
			i.static.AddPrimitive(primitive.NewCylinder(center, t.radius, st.AreaDrawing.Fill(false)))
			outline := st.LineDrawing.Line(false)
			outline.AllowPicking = true
			i.addHitPrimitive(t, primitive.NewCylinderOutline(center, t.radius, outline), model.HandleCircleBody, 0)
		}
	case model.GeometryPoint:
		i.addBillboard(t, i.vertexBillboard(t.coords[len(t.coords)-1]), model.HandleCircleCenter, 0)
	case model.GeometryLineString, model.GeometryPolygon:
		minCoords := 2
		if t.typ == model.GeometryPolygon {
			minCoords = 3
		}
		if len(t.coords) < minCoords {
			return
		}
		if t.typ == model.GeometryPolygon {
			i.static.AddPrimitive(primitive.NewPolygon(t.coords, nil, st.AreaDrawing.Fill(t.geodesic)))
		}
		for idx, pos := range t.coords {
			if idx+1 < len(t.coords) {
				segment := []geodesy.Cartesian3{pos, t.coords[idx+1]}
				i.addHitPrimitive(t, primitive.NewPolyline(segment, hitLine(st.LineDrawing, t.geodesic)), model.HandleSegment, idx)
				i.static.AddPrimitive(primitive.NewPolyline(segment, st.LineDrawing.Line(t.geodesic)))
			}
			i.addBillboard(t, i.vertexBillboard(pos), model.HandleVertex, idx)
		}
	}
}
