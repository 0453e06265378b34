package draw

import (
	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/model"
	"github.com/signalsfoundry/globedraw/primitive"
	"github.com/signalsfoundry/globedraw/scene"
)

func closeRing(coords []geodesy.Cartesian3) []geodesy.Cartesian3 {
	if len(coords) == 0 {
		return nil
	}
	out := append([]geodesy.Cartesian3(nil), coords...)
	return append(out, coords[0])
}

func (i *Interaction) node(pos geodesy.Cartesian3) *primitive.Billboard {
	return primitive.NewBillboard(pos, primitive.BillboardOptions{
		Image:       i.markers.Node,
		Color:       i.opts.Style.CoordinatesNode.Color,
		AlwaysOnTop: true,
	})
}

func (i *Interaction) cursor(pos geodesy.Cartesian3) *primitive.Billboard {
	return primitive.NewBillboard(pos, primitive.BillboardOptions{
		Image:       i.markers.Cursor,
		Color:       i.opts.Style.Cursor.Color,
		AlwaysOnTop: true,
	})
}

// addDropLines adds a wireframe line from every zero-height coordinate up
// to its elevated twin.
func addDropLines(c *scene.Collection, zero, raised []geodesy.Cartesian3, s primitive.Style) {
	for idx := range raised {
		c.AddPrimitive(primitive.NewPolyline([]geodesy.Cartesian3{zero[idx], raised[idx]}, s))
	}
}

// drawPreview replaces the preview collection with the shapes for coords.
// Called with i.mu held.
func (i *Interaction) drawPreview(coords []geodesy.Cartesian3) {
	c := i.preview
	c.RemoveAll()

	st := i.opts.Style
	geodesic := i.opts.Geodesic
	wireframe := st.Wireframe.Line(geodesic)
	line := st.LineDrawing.Line(geodesic)

	switch i.opts.Type {
	case model.GeometryPoint:
		if geodesic && len(coords) > 0 {
			zero := geodesy.GeodesicCoordinates(coords, nil)
			c.AddPrimitive(primitive.NewPolyline([]geodesy.Cartesian3{zero[0], coords[0]}, st.Wireframe.Line(false)))
			c.AddBillboard(i.node(zero[0]))
		}
	case model.GeometryCircle:
		if len(coords) > 1 {
			radius := geodesy.Distance(coords[:2], geodesic)
			if geodesic {
				raised := geodesy.GeodesicCoordinates(coords, geodesy.LastHeight)
				zero := geodesy.GeodesicCoordinates(coords, nil)
				c.AddPrimitive(primitive.NewEllipseOutline(raised[0], radius, st.Wireframe.Line(true)))
				c.AddPrimitive(primitive.NewEllipseOutline(zero[0], radius, st.LineDrawing.Line(true)))
				c.AddBillboard(i.node(coords[0]))
				c.AddBillboard(i.node(raised[0]))
				c.AddBillboard(i.node(zero[0]))
				c.AddPrimitive(primitive.NewPolyline([]geodesy.Cartesian3{
					coords[0], zero[0], zero[1], raised[1], raised[0],
				}, st.Wireframe.Line(true)))
			} else {
				c.AddPrimitive(primitive.NewCylinderOutline(coords[0], radius, line))
				c.AddPrimitive(primitive.NewPolyline(coords, wireframe))
			}
		}
	case model.GeometryLineString:
		if len(coords) > 1 {
			if geodesic {
				raised := geodesy.GeodesicCoordinates(coords, geodesy.LastHeight)
				zero := geodesy.GeodesicCoordinates(coords, nil)
				c.AddPrimitive(primitive.NewPolyline(raised, wireframe))
				c.AddPrimitive(primitive.NewPolyline(zero, line))
				addDropLines(c, zero, raised, wireframe)
			} else {
				c.AddPrimitive(primitive.NewPolyline(coords, line))
			}
		}
	case model.GeometryPolygon:
		if len(coords) > 1 {
			if geodesic {
				raised := geodesy.GeodesicCoordinates(coords, geodesy.LastHeight)
				zero := geodesy.GeodesicCoordinates(coords, nil)
				c.AddPrimitive(primitive.NewPolygon(closeRing(zero), nil, st.AreaDrawing.Fill(true)))
				c.AddPrimitive(primitive.NewPolyline(closeRing(raised), wireframe))
				c.AddPrimitive(primitive.NewPolyline(closeRing(zero), line))
				addDropLines(c, zero, raised, wireframe)
			} else {
				c.AddPrimitive(primitive.NewPolygon(coords, nil, st.AreaDrawing.Fill(false)))
				c.AddPrimitive(primitive.NewPolyline(coords, line))
			}
		}
	}
	if len(coords) > 0 {
		c.AddBillboard(i.cursor(coords[len(coords)-1]))
	}
	i.host.RequestRender()
}

func (i *Interaction) clearPreview() {
	i.preview.RemoveAll()
	i.host.RequestRender()
}
