package masks

import "testing"

func squarePath(border float64) []PathPoint {
	return []PathPoint{
		{Corner: Point{X: 0.2, Y: 0.2}, Border: border, Smooth: false},
		{Corner: Point{X: 0.8, Y: 0.2}, Border: border, Smooth: false},
		{Corner: Point{X: 0.8, Y: 0.8}, Border: border, Smooth: false},
		{Corner: Point{X: 0.2, Y: 0.8}, Border: border, Smooth: false},
	}
}

func TestPathSegmentsRequiresAtLeastTwoPoints(t *testing.T) {
	segs := pathSegments([]PathPoint{{Corner: Point{X: 0, Y: 0}}}, 100, 100, 1, 1)
	if segs != nil {
		t.Fatalf("pathSegments with one point = %v, want nil", segs)
	}
}

func TestPathSegmentsCornerHasZeroLengthTangentHandle(t *testing.T) {
	pts := squarePath(0.02)
	segs := pathSegments(pts, 100, 100, 1, 1)
	if len(segs) != len(pts)-1 {
		t.Fatalf("got %d segments, want %d", len(segs), len(pts)-1)
	}
	// Every node is a corner (Smooth: false), so each segment's control
	// points should collapse onto its endpoints.
	for i, seg := range segs {
		if seg.p1 != seg.p0 {
			t.Errorf("segment %d: corner start should have a zero-length handle, p1=%v p0=%v", i, seg.p1, seg.p0)
		}
		if seg.p2 != seg.p3 {
			t.Errorf("segment %d: corner end should have a zero-length handle, p2=%v p3=%v", i, seg.p2, seg.p3)
		}
	}
}

func TestTessellateEndpointsMatchCurve(t *testing.T) {
	c := cubicBez{
		p0: Point{X: 0, Y: 0}, p1: Point{X: 1, Y: 0}, p2: Point{X: 1, Y: 1}, p3: Point{X: 0, Y: 1},
	}
	pts := tessellate(c, 1)
	if len(pts) < 4 {
		t.Fatalf("tessellate produced %d points, want at least 4", len(pts))
	}
	if pts[0] != c.p0 {
		t.Errorf("first tessellated point = %v, want curve start %v", pts[0], c.p0)
	}
	last := pts[len(pts)-1]
	if last != c.p3 {
		t.Errorf("last tessellated point = %v, want curve end %v", last, c.p3)
	}
}

func TestWindingNumberInsideAndOutsideSquare(t *testing.T) {
	square := []float64{0, 0, 10, 0, 10, 10, 0, 10}
	if windingNumber(square, 5, 5) == 0 {
		t.Fatal("centre of square should have non-zero winding number")
	}
	if windingNumber(square, 20, 20) != 0 {
		t.Fatal("point well outside the square should have zero winding number")
	}
}

func TestMaskPathContainment(t *testing.T) {
	shape := &Shape{Variant: VariantPath, Path: squarePath(0.03)}
	m := MaskPath(shape, 100, 100, 1, 1)
	if !m.checkBounds() {
		t.Fatal("path mask contains a value outside [0,1]")
	}
}

func TestMaskPathInteriorIsFilled(t *testing.T) {
	shape := &Shape{Variant: VariantPath, Path: squarePath(0.02)}
	m := MaskPath(shape, 100, 100, 1, 1)

	cx, cy := 50-m.X, 50-m.Y
	if got := m.At(cx, cy); got < 0.5 {
		t.Fatalf("centre of filled square alpha = %v, want filled", got)
	}
}
