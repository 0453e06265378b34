package modify

import (
	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/model"
	"github.com/signalsfoundry/globedraw/primitive"
)

func (i *Interaction) marker(pos geodesy.Cartesian3, cursorImage bool) *primitive.Billboard {
	img := i.markers.Node
	if cursorImage {
		img = i.markers.Cursor
	}
	return primitive.NewBillboard(pos, primitive.BillboardOptions{
		Image:       img,
		Color:       i.opts.Style.Cursor.Color,
		AlwaysOnTop: true,
	})
}

func (i *Interaction) zeroNode(pos geodesy.Cartesian3) *primitive.Billboard {
	return primitive.NewBillboard(pos, primitive.BillboardOptions{
		Image:       i.markers.Node,
		Color:       i.opts.Style.CoordinatesNode.Color,
		AlwaysOnTop: true,
	})
}

// previewLine draws coords as the dragged line. Geodesic features get a
// raised wireframe, a surface line and drop lines between them.
func (i *Interaction) previewLine(coords []geodesy.Cartesian3, geodesic bool, height geodesy.HeightFunc) {
	st := i.opts.Style
	c := i.preview
	if !geodesic {
		c.AddPrimitive(primitive.NewPolyline(coords, st.LineDrawing.Line(false)))
		return
	}
	raised := geodesy.GeodesicCoordinates(coords, height)
	zero := geodesy.GeodesicCoordinates(coords, nil)
	c.AddPrimitive(primitive.NewPolyline(raised, st.Wireframe.Line(true)))
	c.AddPrimitive(primitive.NewPolyline(zero, st.LineDrawing.Line(true)))
	for idx := range raised {
		c.AddPrimitive(primitive.NewPolyline([]geodesy.Cartesian3{zero[idx], raised[idx]}, st.Wireframe.Line(true)))
	}
}

// previewHandle draws the live shape for dragging h to cursor. Called
// with i.mu held.
func (i *Interaction) previewHandle(t tracked, h model.Handle, cursor geodesy.Cartesian3) {
	st := i.opts.Style
	c := i.preview
	switch h.Kind {
	case model.HandleCircleCenter:
		c.AddBillboard(i.marker(cursor, false))
		if t.typ == model.GeometryCircle {
			if t.geodesic {
				area := st.Area.Fill(true)
				area.ClampToGround = true
				c.AddPrimitive(primitive.NewEllipse(cursor, t.radius, area))
			} else {
				c.AddPrimitive(primitive.NewCylinder(cursor, t.radius, st.AreaDrawing.Fill(false)))
			}
		}
		if t.geodesic {
			zero := geodesy.GeodesicCoordinates([]geodesy.Cartesian3{cursor}, nil)
			c.AddPrimitive(primitive.NewPolyline([]geodesy.Cartesian3{zero[0], cursor}, st.Wireframe.Line(false)))
			c.AddBillboard(i.zeroNode(zero[0]))
		}
	case model.HandleCircleBody:
		center := t.coords[0]
		radius := geodesy.Distance([]geodesy.Cartesian3{center, cursor}, t.geodesic)
		if t.geodesic {
			pair := []geodesy.Cartesian3{center, cursor}
			raised := geodesy.GeodesicCoordinates(pair, geodesy.LastHeight)
			zero := geodesy.GeodesicCoordinates(pair, nil)
			area := st.Area.Fill(true)
			area.ClampToGround = true
			c.AddPrimitive(primitive.NewEllipse(center, radius, area))
			c.AddPrimitive(primitive.NewEllipseOutline(raised[0], radius, st.Wireframe.Line(true)))
			c.AddPrimitive(primitive.NewEllipseOutline(zero[0], radius, st.LineDrawing.Line(true)))
			c.AddBillboard(i.marker(center, true))
			c.AddBillboard(i.marker(raised[0], true))
			c.AddBillboard(i.marker(zero[0], true))
			c.AddPrimitive(primitive.NewPolyline([]geodesy.Cartesian3{
				center, zero[0], zero[1], raised[1], raised[0],
			}, st.Wireframe.Line(true)))
		} else {
			c.AddPrimitive(primitive.NewCylinderOutline(center, radius, st.LineDrawing.Line(false)))
			c.AddPrimitive(primitive.NewPolyline([]geodesy.Cartesian3{center, cursor}, st.Wireframe.Line(false)))
		}
	case model.HandleVertex:
		c.AddBillboard(i.marker(cursor, false))
		i.previewLine(vertexNeighbours(t, h.Index, cursor), t.geodesic, cursorHeight(cursor))
	case model.HandleSegment:
		c.AddBillboard(i.marker(cursor, false))
		var coords []geodesy.Cartesian3
		if h.Index >= 0 && h.Index < len(t.coords) {
			coords = append(coords, t.coords[h.Index])
		}
		coords = append(coords, cursor)
		if h.Index+1 < len(t.coords) {
			coords = append(coords, t.coords[h.Index+1])
		}
		i.previewLine(coords, t.geodesic, cursorHeight(cursor))
	}
}

// previewExtension draws the pending segment from the last vertex of a line
// to cursor. Called with i.mu held.
func (i *Interaction) previewExtension(t tracked, cursor geodesy.Cartesian3) {
	if len(t.coords) == 0 {
		return
	}
	i.previewLine([]geodesy.Cartesian3{t.coords[len(t.coords)-1], cursor}, t.geodesic, geodesy.LastHeight)
	i.preview.AddBillboard(i.marker(cursor, false))
}

// vertexNeighbours returns [previous, cursor, next] around idx. Polygon
// rings wrap past their duplicated closing vertex.
func vertexNeighbours(t tracked, idx int, cursor geodesy.Cartesian3) []geodesy.Cartesian3 {
	n := len(t.coords)
	polygon := t.typ == model.GeometryPolygon
	var out []geodesy.Cartesian3
	switch {
	case idx-1 >= 0 && idx-1 < n:
		out = append(out, t.coords[idx-1])
	case polygon && n >= 2:
		out = append(out, t.coords[n-2])
	}
	out = append(out, cursor)
	switch {
	case idx+1 >= 0 && idx+1 < n:
		out = append(out, t.coords[idx+1])
	case polygon && n >= 2:
		out = append(out, t.coords[1])
	}
	return out
}

func cursorHeight(cursor geodesy.Cartesian3) geodesy.HeightFunc {
	return geodesy.ConstantHeight(geodesy.CartographicFromCartesian(cursor).Height)
}
