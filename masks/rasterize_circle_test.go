package masks

import "testing"

func circleShape(cx, cy, radius, border float64) *Shape {
	return &Shape{
		Variant: VariantCircle,
		Circle:  Circle{Centre: Point{X: cx, Y: cy}, Radius: radius, Border: border},
	}
}

func TestMaskCircleInteriorIsOpaque(t *testing.T) {
	shape := circleShape(0.5, 0.5, 0.2, 0.05)
	m := MaskCircle(shape, 100, 100, 1, 1)

	cx, cy := int(0.5*100)-m.X, int(0.5*100)-m.Y
	if got := m.At(cx, cy); got < 0.99 {
		t.Fatalf("centre alpha = %v, want ~1", got)
	}
}

func TestMaskCircleExteriorIsTransparent(t *testing.T) {
	shape := circleShape(0.5, 0.5, 0.2, 0.05)
	m := MaskCircle(shape, 100, 100, 1, 1)

	// Far outside radius+border.
	localX, localY := 99-m.X, 1-m.Y
	if got := m.At(localX, localY); got > 0.01 {
		t.Fatalf("corner alpha = %v, want ~0", got)
	}
}

func TestMaskCircleContainment(t *testing.T) {
	shape := circleShape(0.3, 0.7, 0.15, 0.03)
	m := MaskCircle(shape, 80, 60, 1, 1)
	if !m.checkBounds() {
		t.Fatal("mask contains a value outside [0,1]")
	}
}

func TestAreaCircleBoundsShrinkWithSmallerRadius(t *testing.T) {
	big := circleShape(0.5, 0.5, 0.3, 0.01)
	small := circleShape(0.5, 0.5, 0.1, 0.01)

	bw, bh, _, _ := AreaCircle(big, 100, 100, 1, 1)
	sw, sh, _, _ := AreaCircle(small, 100, 100, 1, 1)

	if bw <= sw || bh <= sh {
		t.Fatalf("bigger radius should yield a bigger bbox: big=%dx%d small=%dx%d", bw, bh, sw, sh)
	}
}

func TestPointsBorderClonedShapeOffsetsToSource(t *testing.T) {
	shape := circleShape(0.5, 0.5, 0.1, 0.02)
	shape.Flag = FlagClone

	source := &Point{X: 0.2, Y: 0.2}
	points, _ := PointsBorder(shape, 100, 100, 1, 1, source)
	unoffset, _ := PointsBorder(shape, 100, 100, 1, 1, nil)

	if len(points) != len(unoffset) {
		t.Fatalf("offset outline has %d points, want %d", len(points), len(unoffset))
	}
	if points[0] == unoffset[0] && points[1] == unoffset[1] {
		t.Fatal("cloned shape with a source point should rasterize at an offset position")
	}
}
