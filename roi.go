package pixelpipe

// ROI is a region of interest in the coordinate system of some pipeline
// stage (spec GLOSSARY, §3).
type ROI struct {
	X, Y          int
	Width, Height int
	Scale         float64
}

// Empty reports whether the ROI covers no pixels.
func (r ROI) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Equal reports whether two ROIs describe the same rectangle and scale.
// Used by the base case of process_rec (spec §4.7 step 4) to detect the
// zero-copy alias opportunity.
func (r ROI) Equal(o ROI) bool {
	return r.X == o.X && r.Y == o.Y && r.Width == o.Width && r.Height == o.Height && r.Scale == o.Scale
}

// FullImage returns the ROI covering the entire nominal image at scale 1.0,
// the seed ROI for both outward dimension propagation (spec §4.6) and the
// zero-copy alias check in the base case (spec §4.7 step 4).
func FullImage(width, height int) ROI {
	return ROI{X: 0, Y: 0, Width: width, Height: height, Scale: 1.0}
}

// Intersect returns the overlapping rectangle of two same-scale ROIs. The
// result's Scale is taken from r; callers must not intersect ROIs at
// different scales.
func (r ROI) Intersect(o ROI) ROI {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.Width, o.X+o.Width), min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return ROI{Scale: r.Scale}
	}
	return ROI{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0, Scale: r.Scale}
}
