package masks

// Mask is a dense alpha buffer in [0,1], positioned at (X, Y) in the
// coordinate system of whatever pipeline stage produced it (spec §4.2
// `mask()`, §4.3 composition). Unlike the teacher's 8-bit-per-pixel
// compositing mask, values are float64 because the pipeline core composes
// masks through floating-point module buffers, not 8-bit display pixels.
type Mask struct {
	X, Y          int
	Width, Height int
	Data          []float64
}

// NewMask allocates a zero-filled mask of the given size at the given
// origin.
func NewMask(x, y, width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Mask{X: x, Y: y, Width: width, Height: height, Data: make([]float64, width*height)}
}

// At returns the mask value at local coordinates (x, y). Out-of-bounds
// reads return 0 (fully transparent), matching the teacher's Mask.At.
func (m *Mask) At(x, y int) float64 {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return 0
	}
	return m.Data[y*m.Width+x]
}

// Set writes the mask value at local coordinates (x, y), clamped to
// [0,1]. Out-of-bounds writes are ignored.
func (m *Mask) Set(x, y int, v float64) {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return
	}
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	m.Data[y*m.Width+x] = v
}

// Clone returns an independent copy of m.
func (m *Mask) Clone() *Mask {
	c := &Mask{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height, Data: make([]float64, len(m.Data))}
	copy(c.Data, m.Data)
	return c
}

// Invert replaces every value v with 1-v.
func (m *Mask) Invert() {
	for i, v := range m.Data {
		m.Data[i] = 1 - v
	}
}

// checkBounds verifies every value of m lies in [0,1] (spec §8 "Mask
// containment" invariant) — used by tests, not by production code paths,
// since Set already clamps.
func (m *Mask) checkBounds() bool {
	for _, v := range m.Data {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}
