package masks

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

// TestComposeTwoCirclesUnion is the spec's seeded scenario 3: two circles,
// the second unioned into the first at half opacity.
func TestComposeTwoCirclesUnion(t *testing.T) {
	store := NewStore()
	first := store.Create(VariantCircle)
	first.Circle = Circle{Centre: Point{X: 0.3, Y: 0.3}, Radius: 0.1, Border: 0.02}
	second := store.Create(VariantCircle)
	second.Circle = Circle{Centre: Point{X: 0.7, Y: 0.7}, Radius: 0.1, Border: 0.02}

	group := store.Create(VariantGroup)
	group.Group = []GroupRef{
		{FormID: first.ID, State: StateUse, Opacity: 1.0},
		{FormID: second.ID, State: StateUse | StateUnion, Opacity: 0.5},
	}

	const size = 200
	rasterize := func(id uint64) *Mask {
		shape, ok := store.Get(id)
		if !ok {
			return nil
		}
		return MaskCircle(shape, size, size, 1, 1)
	}

	composite := Compose(group, store, rasterize)

	at := func(fx, fy float64) float64 {
		gx, gy := int(fx*size)-composite.X, int(fy*size)-composite.Y
		return composite.At(gx, gy)
	}

	if got := at(0.3, 0.3); !approxEqual(got, 1.0, 0.05) {
		t.Errorf("alpha at first centre = %v, want ~1.0", got)
	}
	if got := at(0.7, 0.7); !approxEqual(got, 0.5, 0.05) {
		t.Errorf("alpha at second centre = %v, want ~0.5", got)
	}
	if got := at(0.5, 0.5); !approxEqual(got, 0.0, 0.02) {
		t.Errorf("alpha between the circles = %v, want ~0", got)
	}
}

func TestComposeNonGroupReturnsEmptyMask(t *testing.T) {
	store := NewStore()
	leaf := store.Create(VariantCircle)
	m := Compose(leaf, store, func(uint64) *Mask { return nil })
	if m.Width != 0 || m.Height != 0 {
		t.Fatalf("Compose on a non-group shape = %+v, want an empty mask", m)
	}
}

func TestComposeSkipsReferencesWithoutStateUse(t *testing.T) {
	store := NewStore()
	leaf := store.Create(VariantCircle)
	leaf.Circle = Circle{Centre: Point{X: 0.5, Y: 0.5}, Radius: 0.2, Border: 0.02}
	group := store.Create(VariantGroup)
	// StateShow without StateUse: visible in UI, but must not contribute.
	group.Group = []GroupRef{{FormID: leaf.ID, State: StateShow, Opacity: 1.0}}

	rasterize := func(id uint64) *Mask {
		shape, _ := store.Get(id)
		return MaskCircle(shape, 100, 100, 1, 1)
	}
	composite := Compose(group, store, rasterize)
	if composite.Width != 0 || composite.Height != 0 {
		t.Fatal("a reference without StateUse should not contribute to the composite")
	}
}

func TestFuzzyCombinators(t *testing.T) {
	if got := fuzzyUnion(0.3, 0.7); got != 0.7 {
		t.Errorf("fuzzyUnion(0.3,0.7) = %v, want 0.7", got)
	}
	if got := fuzzyIntersect(0.3, 0.7); got != 0.3 {
		t.Errorf("fuzzyIntersect(0.3,0.7) = %v, want 0.3", got)
	}
	if got := fuzzyDifference(0.3, 0.7); got != 0 {
		t.Errorf("fuzzyDifference(0.3,0.7) = %v, want 0 (clamped, not negative)", got)
	}
	if got := fuzzyExclusion(0.3, 0.7); !approxEqual(got, 0.4, 1e-9) {
		t.Errorf("fuzzyExclusion(0.3,0.7) = %v, want 0.4", got)
	}
}

func TestUngroupFlattensNestedGroupsPreservingOrder(t *testing.T) {
	store := NewStore()
	a := store.Create(VariantCircle)
	b := store.Create(VariantCircle)
	c := store.Create(VariantCircle)

	inner := store.Create(VariantGroup)
	inner.Group = []GroupRef{
		{FormID: a.ID, State: StateUse, Opacity: 1},
		{FormID: b.ID, State: StateUse, Opacity: 0.5},
	}
	outer := store.Create(VariantGroup)
	outer.Group = []GroupRef{
		{FormID: inner.ID, State: StateUse, Opacity: 1},
		{FormID: c.ID, State: StateUse, Opacity: 1},
	}

	flat := Ungroup(outer, store)
	if len(flat) != 3 {
		t.Fatalf("Ungroup produced %d refs, want 3", len(flat))
	}
	if flat[0].FormID != a.ID || flat[1].FormID != b.ID || flat[2].FormID != c.ID {
		t.Fatalf("Ungroup order = %+v, want [a b c]", flat)
	}
}

func TestFeatherBlurPreservesDimensionsAndBounds(t *testing.T) {
	m := NewMask(0, 0, 20, 20)
	for i := 5; i < 15; i++ {
		for j := 5; j < 15; j++ {
			m.Set(i, j, 1)
		}
	}
	blurred := FeatherBlur(m, 2)
	if blurred.Width != m.Width || blurred.Height != m.Height {
		t.Fatalf("FeatherBlur changed dimensions: got %dx%d, want %dx%d", blurred.Width, blurred.Height, m.Width, m.Height)
	}
	if !blurred.checkBounds() {
		t.Fatal("blurred mask contains a value outside [0,1]")
	}
}
