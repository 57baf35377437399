package masks

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// fuzzyUnion, fuzzyIntersect, fuzzyDifference and fuzzyExclusion implement
// the combinators of spec §4.3 ("Combinators are evaluated using fuzzy
// operators").
func fuzzyUnion(a, b float64) float64      { return math.Max(a, b) }
func fuzzyIntersect(a, b float64) float64  { return math.Min(a, b) }
func fuzzyDifference(a, b float64) float64 { return math.Max(a-b, 0) }
func fuzzyExclusion(a, b float64) float64  { return math.Abs(a - b) }

// RasterizeFunc produces the alpha mask for a single shape reference,
// supplied by the caller (spec §4.2's three rasterizers, selected by
// Shape.Variant) so Compose stays independent of the rasterization
// algorithms.
type RasterizeFunc func(shapeID uint64) *Mask

// Compose evaluates a group's references in order into a single
// accumulator mask (spec §4.3): for reference i with mask M_i and opacity
// o_i,
//
//	A ← o_i·M_i                  unconditionally, when i==0
//	A ← A ∪ (o_i·M_i)             if Union is set
//	A ← A ∩ (o_i·M_i)             if Intersection is set
//	A ← A − (o_i·M_i)             if Difference is set
//	A ← A ⊕ (o_i·M_i)             if Exclusion is set
//
// Only references with StateUse contribute; StateShow does not gate
// composition, only on-screen display (handled by the caller). Nested
// groups are resolved by rasterize, which the caller's RasterizeFunc is
// expected to recurse into for VariantGroup shapes.
func Compose(group *Shape, store *Store, rasterize RasterizeFunc) *Mask {
	if group == nil || group.Variant != VariantGroup {
		return NewMask(0, 0, 0, 0)
	}

	var acc *Mask
	for _, ref := range group.Group {
		if ref.State&StateUse == 0 {
			continue
		}
		m := rasterize(ref.FormID)
		if m == nil {
			continue
		}
		weighted := m.Clone()
		for j := range weighted.Data {
			weighted.Data[j] *= clampOpacity(ref.Opacity)
		}

		if acc == nil {
			acc = weighted
			continue
		}

		// Default to union: spec invariant (iii) guarantees a non-first
		// reference that sets none of Intersection/Difference/Exclusion
		// behaves as Union even if it omits the bit explicitly.
		combinator := fuzzyUnion
		switch {
		case ref.State&StateIntersection != 0:
			combinator = fuzzyIntersect
		case ref.State&StateDifference != 0:
			combinator = fuzzyDifference
		case ref.State&StateExclusion != 0:
			combinator = fuzzyExclusion
		}
		acc = combineMasks(acc, weighted, combinator)
	}
	if acc == nil {
		return NewMask(0, 0, 0, 0)
	}
	return acc
}

// combineMasks unions the two masks' bounding boxes and applies f
// pixel-wise, treating out-of-bounds reads as 0 via Mask.At.
func combineMasks(a, b *Mask, f func(a, b float64) float64) *Mask {
	x0 := min(a.X, b.X)
	y0 := min(a.Y, b.Y)
	x1 := max(a.X+a.Width, b.X+b.Width)
	y1 := max(a.Y+a.Height, b.Y+b.Height)
	out := NewMask(x0, y0, x1-x0, y1-y0)
	for j := 0; j < out.Height; j++ {
		for i := 0; i < out.Width; i++ {
			gx, gy := x0+i, y0+j
			av := a.At(gx-a.X, gy-a.Y)
			bv := b.At(gx-b.X, gy-b.Y)
			out.Set(i, j, f(av, bv))
		}
	}
	return out
}

// Ungroup flattens a group tree into a single non-nested group by walking
// in order and copying leaf references with their states and opacities
// preserved (spec §4.3 `ungroup`). Nested VariantGroup references are
// recursively flattened in place; references to non-group shapes are
// copied as-is.
func Ungroup(group *Shape, store *Store) []GroupRef {
	if group == nil || group.Variant != VariantGroup {
		return nil
	}
	var out []GroupRef
	for _, ref := range group.Group {
		child, ok := store.Get(ref.FormID)
		if ok && child.Variant == VariantGroup {
			out = append(out, Ungroup(child, store)...)
			continue
		}
		out = append(out, ref)
	}
	return out
}

// FeatherBlur applies a small Gaussian blur to a mask's alpha channel to
// smooth polyline tessellation stair-stepping along a path shape's fill
// boundary (spec §4.2's path rasterizer produces a polygon fill before any
// anti-aliasing). Grounded on esimov-caire's use of
// github.com/disintegration/imaging for raster resampling; here it
// supplies the Gaussian blur primitive instead of Lanczos resize.
func FeatherBlur(m *Mask, sigma float64) *Mask {
	if m.Width == 0 || m.Height == 0 || sigma <= 0 {
		return m
	}
	gray := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for j := 0; j < m.Height; j++ {
		for i := 0; i < m.Width; i++ {
			gray.SetGray(i, j, color.Gray{Y: uint8(m.At(i, j) * 255)})
		}
	}
	blurred := imaging.Blur(gray, sigma)
	out := NewMask(m.X, m.Y, m.Width, m.Height)
	bounds := blurred.Bounds()
	for j := 0; j < m.Height; j++ {
		for i := 0; i < m.Width; i++ {
			r, _, _, _ := blurred.At(bounds.Min.X+i, bounds.Min.Y+j).RGBA()
			out.Set(i, j, float64(r)/65535)
		}
	}
	return out
}
