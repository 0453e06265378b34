package geodesy

import "math"

// Distance sums the pairwise distances along coords. When geodesic is true
// each leg is measured on the ellipsoid surface at zero height, otherwise
// as a straight chord. Fewer than two points measure 0.
func Distance(coords []Cartesian3, geodesic bool) float64 {
	if len(coords) < 2 {
		return 0
	}
	total := 0.0
	if !geodesic {
		for i := 1; i < len(coords); i++ {
			total += coords[i-1].DistanceTo(coords[i])
		}
		return total
	}
	prev := CartographicFromCartesian(coords[0])
	for i := 1; i < len(coords); i++ {
		next := CartographicFromCartesian(coords[i])
		total += WGS84.SurfaceDistance(prev, next)
		prev = next
	}
	return total
}

// Area returns the surface area enclosed by ring, minus the area of each
// hole. Rings are triangulated by ear clipping on their tangent-plane
// projection and the triangles are measured in 3D. A closing vertex equal
// to the first one is ignored. Fewer than three distinct points measure 0.
func Area(ring []Cartesian3, holes [][]Cartesian3) float64 {
	area := ringArea(ring)
	if area == 0 {
		return 0
	}
	for _, hole := range holes {
		area -= ringArea(hole)
	}
	return math.Max(area, 0)
}

func ringArea(ring []Cartesian3) float64 {
	ring = openRing(ring)
	if len(ring) < 3 {
		return 0
	}
	projected := projectToTangentPlane(ring)
	area := 0.0
	for _, tri := range triangulate(projected) {
		a, b, c := ring[tri[0]], ring[tri[1]], ring[tri[2]]
		area += a.Sub(b).Cross(c.Sub(b)).Norm() / 2
	}
	return area
}

// HeightSign returns +1 when to sits higher above the ellipsoid than from,
// and -1 otherwise.
func HeightSign(from, to Cartesian3) float64 {
	if CartographicFromCartesian(to).Height > CartographicFromCartesian(from).Height {
		return 1
	}
	return -1
}

// HeightFunc picks one height for a whole coordinate list.
type HeightFunc func(cartographics []Cartographic) float64

// LastHeight is a HeightFunc that reuses the height of the final coordinate.
func LastHeight(cartographics []Cartographic) float64 {
	if len(cartographics) == 0 {
		return 0
	}
	return cartographics[len(cartographics)-1].Height
}

// ConstantHeight returns a HeightFunc that always yields h.
func ConstantHeight(h float64) HeightFunc {
	return func([]Cartographic) float64 { return h }
}

// GeodesicCoordinates re-projects every coordinate vertically onto the
// ellipsoid at the height chosen by height, or at 0 when height is nil.
func GeodesicCoordinates(coords []Cartesian3, height HeightFunc) []Cartesian3 {
	if len(coords) == 0 {
		return nil
	}
	cartographics := make([]Cartographic, len(coords))
	for i, c := range coords {
		cartographics[i] = CartographicFromCartesian(c)
	}
	h := 0.0
	if height != nil {
		h = height(cartographics)
	}
	out := make([]Cartesian3, len(coords))
	for i, c := range cartographics {
		out[i] = c.WithHeight(h).ToCartesian()
	}
	return out
}

func openRing(ring []Cartesian3) []Cartesian3 {
	if len(ring) > 1 && ring[0].Equal(ring[len(ring)-1], 1e-9) {
		return ring[:len(ring)-1]
	}
	return ring
}

type point2 struct{ x, y float64 }

func projectToTangentPlane(ring []Cartesian3) []point2 {
	var centroid Cartesian3
	for _, p := range ring {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Scale(1 / float64(len(ring)))
	east, north, _ := EastNorthUp(centroid)
	out := make([]point2, len(ring))
	for i, p := range ring {
		d := p.Sub(centroid)
		out[i] = point2{x: d.Dot(east), y: d.Dot(north)}
	}
	return out
}

func signedArea2(pts []point2) float64 {
	sum := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].x*pts[j].y - pts[j].x*pts[i].y
	}
	return sum / 2
}

func cross2(o, a, b point2) float64 {
	return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
}

func insideTriangle(p, a, b, c point2) bool {
	if p == a || p == b || p == c {
		return false
	}
	return cross2(a, b, p) >= 0 && cross2(b, c, p) >= 0 && cross2(c, a, p) >= 0
}

// triangulate ear-clips a simple polygon and returns triangles as index
// triples into pts. Self-intersecting input falls back to a fan over the
// vertices that could not be clipped.
func triangulate(pts []point2) [][3]int {
	n := len(pts)
	if n < 3 {
		return nil
	}
	idx := make([]int, n)
	ccw := signedArea2(pts) >= 0
	for i := range idx {
		if ccw {
			idx[i] = i
		} else {
			idx[i] = n - 1 - i
		}
	}

	tris := make([][3]int, 0, n-2)
	for len(idx) > 3 {
		clipped := false
		for i := range idx {
			prev := idx[(i+len(idx)-1)%len(idx)]
			cur := idx[i]
			next := idx[(i+1)%len(idx)]
			if cross2(pts[prev], pts[cur], pts[next]) <= 0 {
				continue
			}
			ear := true
			for _, j := range idx {
				if j == prev || j == cur || j == next {
					continue
				}
				if insideTriangle(pts[j], pts[prev], pts[cur], pts[next]) {
					ear = false
					break
				}
			}
			if !ear {
				continue
			}
			tris = append(tris, [3]int{prev, cur, next})
			idx = append(idx[:i:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			for i := 1; i+1 < len(idx); i++ {
				tris = append(tris, [3]int{idx[0], idx[i], idx[i+1]})
			}
			return tris
		}
	}
	return append(tris, [3]int{idx[0], idx[1], idx[2]})
}
