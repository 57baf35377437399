package masks

import "math"

// meanBorderWidth averages the per-vertex offset between outline and border
// (the parallel polylines PointsBorderPath returns) into a single scalar
// feather radius for FeatherBlur, since a Gaussian blur has one sigma rather
// than PointsBorderPath's per-node border widths.
func meanBorderWidth(outline, border []float64) float64 {
	n := len(outline) / 2
	if n == 0 || len(border) != len(outline) {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Hypot(border[2*i]-outline[2*i], border[2*i+1]-outline[2*i+1])
	}
	return sum / float64(n)
}

// cubicBez is a cubic Bezier curve, the same value-type shape as the
// teacher's CubicBez (gg's curve.go): four control points, De Casteljau
// evaluation, and a tangent/normal pair used for the border feather.
type cubicBez struct {
	p0, p1, p2, p3 Point
}

func lerp(a, b Point, t float64) Point {
	return Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

func (c cubicBez) eval(t float64) Point {
	mt := 1 - t
	mt2, t2 := mt*mt, t*t
	mt3, t3 := mt2*mt, t2*t
	return Point{
		X: mt3*c.p0.X + 3*mt2*t*c.p1.X + 3*mt*t2*c.p2.X + t3*c.p3.X,
		Y: mt3*c.p0.Y + 3*mt2*t*c.p1.Y + 3*mt*t2*c.p2.Y + t3*c.p3.Y,
	}
}

// tangent returns the (unnormalised) derivative at t.
func (c cubicBez) tangent(t float64) Point {
	mt := 1 - t
	d0 := Point{X: 3 * (c.p1.X - c.p0.X), Y: 3 * (c.p1.Y - c.p0.Y)}
	d1 := Point{X: 3 * (c.p2.X - c.p1.X), Y: 3 * (c.p2.Y - c.p1.Y)}
	d2 := Point{X: 3 * (c.p3.X - c.p2.X), Y: 3 * (c.p3.Y - c.p2.Y)}
	return Point{
		X: mt*mt*d0.X + 2*mt*t*d1.X + t*t*d2.X,
		Y: mt*mt*d0.Y + 2*mt*t*d1.Y + t*t*d2.Y,
	}
}

// normal returns the unit outward normal at t (perpendicular to tangent,
// rotated -90deg so it points away from the curve's interior side for a
// counter-clockwise path).
func (c cubicBez) normal(t float64) Point {
	tan := c.tangent(t)
	length := math.Hypot(tan.X, tan.Y)
	if length == 0 {
		return Point{}
	}
	return Point{X: tan.Y / length, Y: -tan.X / length}
}

// catmullRomToBezier converts one Catmull-Rom segment (p0..p3, evaluated
// between p1 and p2) to an equivalent cubic Bezier using the standard
// 1/6-tangent-scaling formula (spec §4.2: "Catmull-Rom-style interpolation
// of control points"). When a node is a corner (per-node State), its
// tangent handle is replaced with a zero-length handle so the curve meets
// it with a sharp discontinuity instead of a smooth tangent.
func catmullRomToBezier(p0, p1, p2, p3 Point, smoothAtP1, smoothAtP2 bool) cubicBez {
	c1 := p1
	if smoothAtP1 {
		c1 = Point{X: p1.X + (p2.X-p0.X)/6, Y: p1.Y + (p2.Y-p0.Y)/6}
	}
	c2 := p2
	if smoothAtP2 {
		c2 = Point{X: p2.X - (p3.X-p1.X)/6, Y: p2.Y - (p3.Y-p1.Y)/6}
	}
	return cubicBez{p0: p1, p1: c1, p2: c2, p3: p2}
}

// toImagePx converts a shape-relative Point to pixel coordinates at the
// given pipe geometry (spec §4.2 "Coordinate convention").
func toImagePx(p Point, iwidth, iheight, iscale, localScale float64) Point {
	return Point{X: p.X * iwidth * iscale * localScale, Y: p.Y * iheight * iscale * localScale}
}

// pathSegments builds one cubicBez per consecutive pair of control points,
// treating the path as open (no wraparound segment from the last point
// back to the first) — matching the per-node smooth/corner flags given in
// the shape (spec §3 PathPoint.State).
func pathSegments(pts []PathPoint, iwidth, iheight, iscale, localScale float64) []cubicBez {
	n := len(pts)
	if n < 2 {
		return nil
	}
	px := make([]Point, n)
	for i, p := range pts {
		px[i] = toImagePx(p.Corner, iwidth, iheight, iscale, localScale)
	}
	segs := make([]cubicBez, 0, n-1)
	for i := 0; i < n-1; i++ {
		p0 := px[max0(i-1)]
		p1 := px[i]
		p2 := px[i+1]
		p3 := px[min(i+2, n-1)]
		segs = append(segs, catmullRomToBezier(p0, p1, p2, p3, pts[i].Smooth, pts[i+1].Smooth))
	}
	return segs
}

func max0(i int) int {
	if i < 0 {
		return 0
	}
	return i
}

// tessellate flattens a cubic Bezier to a polyline with a point count
// proportional to the pipe scale (spec §4.2: "tessellate to a polyline at
// a density proportional to pipe scale").
func tessellate(c cubicBez, scale float64) []Point {
	steps := int(math.Max(4, math.Ceil(12*scale)))
	out := make([]Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		out = append(out, c.eval(t))
	}
	return out
}

// PointsBorderPath tessellates every segment of a path shape into a single
// polyline, and a parallel border polyline offset outward by each node's
// per-segment border width along the local normal (spec §4.2
// `points_border`, "per-node border width applied along the outward
// normal"). The flattened result is memoized in tessellationCache keyed by
// the shape's (id, version) and pipe geometry, since re-rasterizing an
// unchanged path at an unchanged scale is otherwise a full reflatten.
func PointsBorderPath(shape *Shape, iwidth, iheight, iscale, localScale float64) (points, border []float64) {
	key := tessellationKey("path", shape.ID, shape.Version, iwidth, iheight, iscale, localScale)
	geo := tessellationCache.GetOrCreate(key, func() tessellationGeometry {
		p, b := computePointsBorderPath(shape, iwidth, iheight, iscale, localScale)
		return tessellationGeometry{points: p, border: b}
	})
	return geo.points, geo.border
}

// computePointsBorderPath is the uncached tessellation PointsBorderPath
// memoizes.
func computePointsBorderPath(shape *Shape, iwidth, iheight, iscale, localScale float64) (points, border []float64) {
	segs := pathSegments(shape.Path, iwidth, iheight, iscale, localScale)
	for i, seg := range segs {
		borderStart := shape.Path[i].Border
		borderEnd := shape.Path[(i+1)%len(shape.Path)].Border
		steps := int(math.Max(4, math.Ceil(12*localScale)))
		for s := 0; s <= steps; s++ {
			t := float64(s) / float64(steps)
			p := seg.eval(t)
			points = append(points, p.X, p.Y)

			n := seg.normal(t)
			bw := borderStart + (borderEnd-borderStart)*t
			border = append(border, p.X+n.X*bw, p.Y+n.Y*bw)
		}
	}
	return points, border
}

// AreaPath returns the axis-aligned bounding box (w, h, x, y) of a path
// shape's border polyline, in the module's input coordinates (spec §4.2
// `area`).
func AreaPath(shape *Shape, iwidth, iheight, iscale, localScale float64) (w, h, x, y int) {
	_, border := PointsBorderPath(shape, iwidth, iheight, iscale, localScale)
	if len(border) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY := border[0], border[1]
	maxX, maxY := border[0], border[1]
	for i := 0; i < len(border); i += 2 {
		if border[i] < minX {
			minX = border[i]
		}
		if border[i] > maxX {
			maxX = border[i]
		}
		if border[i+1] < minY {
			minY = border[i+1]
		}
		if border[i+1] > maxY {
			maxY = border[i+1]
		}
	}
	x0, y0 := int(math.Floor(minX)), int(math.Floor(minY))
	x1, y1 := int(math.Ceil(maxX)), int(math.Ceil(maxY))
	return x1 - x0, y1 - y0, x0, y0
}

// MaskPath fills the polygon enclosed by a path's tessellated outline
// using the non-zero winding rule, then feathers the fill edge with a
// Gaussian blur sized to the path's average per-node border width
// (spec §4.2 `mask`, "a smooth falloff"). Grounded on
// github.com/disintegration/imaging's Blur, the same primitive FeatherBlur
// wraps for the rest of the package.
func MaskPath(shape *Shape, iwidth, iheight, iscale, localScale float64) *Mask {
	outline, border := PointsBorderPath(shape, iwidth, iheight, iscale, localScale)
	w, h, x0, y0 := AreaPath(shape, iwidth, iheight, iscale, localScale)
	m := NewMask(x0, y0, w, h)
	if w == 0 || h == 0 {
		return m
	}

	for j := 0; j < h; j++ {
		py := float64(y0+j) + 0.5
		for i := 0; i < w; i++ {
			px := float64(x0+i) + 0.5
			if windingNumber(outline, px, py) != 0 {
				m.Set(i, j, 1)
			}
		}
	}

	if bw := meanBorderWidth(outline, border); bw > 0 {
		m = FeatherBlur(m, bw/2)
	}
	return m
}

// windingNumber computes the non-zero winding number of a closed polyline
// (interleaved x,y pairs) around point (px, py).
func windingNumber(poly []float64, px, py float64) int {
	n := len(poly) / 2
	if n < 3 {
		return 0
	}
	winding := 0
	for i := 0; i < n; i++ {
		x0, y0 := poly[2*i], poly[2*i+1]
		j := (i + 1) % n
		x1, y1 := poly[2*j], poly[2*j+1]
		if y0 <= py {
			if y1 > py && cross(x1-x0, y1-y0, px-x0, py-y0) > 0 {
				winding++
			}
		} else {
			if y1 <= py && cross(x1-x0, y1-y0, px-x0, py-y0) < 0 {
				winding--
			}
		}
	}
	return winding
}

func cross(ax, ay, bx, by float64) float64 { return ax*by - ay*bx }
