package masks

import (
	"fmt"
	"math"
)

// smoothstep is the fixed monotone falloff function used between a
// circle's radius and radius+border (spec §4.2: "a smooth falloff (a fixed
// monotone function, e.g. smoothstep on distance)").
func smoothstep(edge0, edge1, x float64) float64 {
	if edge0 == edge1 {
		if x < edge0 {
			return 1
		}
		return 0
	}
	t := (x - edge0) / (edge1 - edge0)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	// 1 - smoothstep(0,1,t), since alpha falls off as distance grows.
	st := t * t * (3 - 2*t)
	return 1 - st
}

// circleGeometryPx returns the circle's centre, radius and border in pixel
// units at the given pipe geometry (spec §4.2 "Coordinate convention":
// shape state in [0,1]² is multiplied by (iwidth*iscale, iheight*iscale)
// and then by the piece's local scale).
func circleGeometryPx(c Circle, iwidth, iheight, iscale, localScale float64) (cx, cy, radius, border float64) {
	sx := iwidth * iscale * localScale
	sy := iheight * iscale * localScale
	// Radius/border are normalised against the image's shorter axis so a
	// circle stays circular under non-square image aspect ratios.
	s := sx
	if sy < s {
		s = sy
	}
	cx = c.Centre.X * sx
	cy = c.Centre.Y * sy
	radius = c.Radius * s
	border = c.Border * s
	return
}

// PointsBorder returns the circle's outline and border polylines as
// interleaved (x,y) pairs in backbuf coordinates, tessellated as a regular
// polygon dense enough for the given radius (spec §4.2 `points_border`).
// If source is non-nil and the shape is a clone, the geometry is offset to
// the shape's source point. Memoized in tessellationCache alongside path
// tessellation, keyed additionally by the clone source when present.
func PointsBorder(shape *Shape, iwidth, iheight, iscale, localScale float64, source *Point) (points, border []float64) {
	key := tessellationKey("circle", shape.ID, shape.Version, iwidth, iheight, iscale, localScale)
	if shape.IsClone() && source != nil {
		key += fmt.Sprintf(":%.6f:%.6f", source.X, source.Y)
	}
	geo := tessellationCache.GetOrCreate(key, func() tessellationGeometry {
		p, b := computePointsBorder(shape, iwidth, iheight, iscale, localScale, source)
		return tessellationGeometry{points: p, border: b}
	})
	return geo.points, geo.border
}

// computePointsBorder is the uncached tessellation PointsBorder memoizes.
func computePointsBorder(shape *Shape, iwidth, iheight, iscale, localScale float64, source *Point) (points, border []float64) {
	cx, cy, radius, borderWidth := circleGeometryPx(shape.Circle, iwidth, iheight, iscale, localScale)
	if shape.IsClone() && source != nil {
		ox := (source.X - shape.Circle.Centre.X) * iwidth * iscale * localScale
		oy := (source.Y - shape.Circle.Centre.Y) * iheight * iscale * localScale
		cx += ox
		cy += oy
	}

	// Segment count grows with radius so curvature error stays bounded
	// regardless of pipe scale.
	segments := int(math.Max(16, math.Ceil(radius*0.5)))
	points = make([]float64, 0, segments*2+2)
	for i := 0; i <= segments; i++ {
		t := 2 * math.Pi * float64(i) / float64(segments)
		points = append(points, cx+radius*math.Cos(t), cy+radius*math.Sin(t))
	}
	if borderWidth > 0 {
		border = make([]float64, 0, segments*2+2)
		br := radius + borderWidth
		for i := 0; i <= segments; i++ {
			t := 2 * math.Pi * float64(i) / float64(segments)
			border = append(border, cx+br*math.Cos(t), cy+br*math.Sin(t))
		}
	}
	return points, border
}

// AreaCircle returns the circle's axis-aligned bounding box (w, h, x, y) in
// the module's input coordinates at the given pipe geometry (spec §4.2
// `area`).
func AreaCircle(shape *Shape, iwidth, iheight, iscale, localScale float64) (w, h, x, y int) {
	cx, cy, radius, border := circleGeometryPx(shape.Circle, iwidth, iheight, iscale, localScale)
	r := radius + border
	x0, y0 := int(math.Floor(cx-r)), int(math.Floor(cy-r))
	x1, y1 := int(math.Ceil(cx+r)), int(math.Ceil(cy+r))
	return x1 - x0, y1 - y0, x0, y0
}

// MaskCircle rasterizes a dense alpha buffer for a circle shape: alpha is 1
// inside radius, 0 outside radius+border, and smoothstep in between
// (spec §4.2 `mask`).
func MaskCircle(shape *Shape, iwidth, iheight, iscale, localScale float64) *Mask {
	cx, cy, radius, border := circleGeometryPx(shape.Circle, iwidth, iheight, iscale, localScale)
	w, h, x0, y0 := AreaCircle(shape, iwidth, iheight, iscale, localScale)
	m := NewMask(x0, y0, w, h)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			px, py := float64(x0+i)+0.5, float64(y0+j)+0.5
			d := math.Hypot(px-cx, py-cy)
			var a float64
			switch {
			case d <= radius:
				a = 1
			case d >= radius+border:
				a = 0
			default:
				a = smoothstep(radius, radius+border, d)
			}
			m.Set(i, j, a)
		}
	}
	return m
}
