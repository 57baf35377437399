package pixelpipe

// ColorSpace selects a module's sampling rate for histogram collection
// (spec §4.7 step 8: "RAW samples 1/9 of pixels, RGB/Lab sample 1/16").
type ColorSpace int

const (
	ColorSpaceRAW ColorSpace = iota
	ColorSpaceRGB
	ColorSpaceLab
)

func (c ColorSpace) sampleStride() int {
	if c == ColorSpaceRAW {
		return 3 // every 3rd pixel in both axes => 1/9 of pixels
	}
	return 4 // every 4th pixel in both axes => 1/16 of pixels
}

// Histogram is a 64-bin, 4-channel tap collector (spec §2 "Taps", §4.7
// step 8).
type Histogram struct {
	Bins [4][64]uint32
}

// collectHistogram samples buf according to space's stride and accumulates
// into h. Values are assumed normalised to [0,1]; out-of-range samples
// clamp into the edge bins rather than being dropped, so a module producing
// a transient out-of-gamut value still contributes to the correct tail bin.
func collectHistogram(h *Histogram, buf *Buffer, space ColorSpace) {
	stride := space.sampleStride()
	roi := buf.ROI
	for y := 0; y < roi.Height; y += stride {
		for x := 0; x < roi.Width; x += stride {
			off := (y*roi.Width + x) * 4
			if off+4 > len(buf.Data) {
				continue
			}
			for c := 0; c < 4; c++ {
				bin := histBin(buf.Data[off+c])
				h.Bins[c][bin]++
			}
		}
	}
}

func histBin(v float32) int {
	bin := int(v * 64)
	if bin < 0 {
		return 0
	}
	if bin > 63 {
		return 63
	}
	return bin
}

// ColorPick is the result of sampling a point or box both before and after a
// module's Process call (spec §4.7 step 8: "picked_color{, _min, _max} and
// picked_output_color{, _min, _max}, both pre- and post-module").
type ColorPick struct {
	Mean [4]float64
	Min  [4]float64
	Max  [4]float64
}

// PickBox is the input-coordinate box a module samples for color picking. A
// zero-sized box (Width==0 || Height==0) samples the single pixel at (X,Y).
type PickBox struct {
	X, Y, Width, Height int
}

// samplePick computes mean/min/max over box within buf (spec §4.7 step 8).
func samplePick(buf *Buffer, box PickBox) ColorPick {
	w, h := box.Width, box.Height
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	var pick ColorPick
	for c := 0; c < 4; c++ {
		pick.Min[c] = 1
		pick.Max[c] = 0
	}
	roi := buf.ROI
	n := 0
	for y := box.Y; y < box.Y+h; y++ {
		for x := box.X; x < box.X+w; x++ {
			lx, ly := x-roi.X, y-roi.Y
			if lx < 0 || ly < 0 || lx >= roi.Width || ly >= roi.Height {
				continue
			}
			off := (ly*roi.Width + lx) * 4
			if off+4 > len(buf.Data) {
				continue
			}
			n++
			for c := 0; c < 4; c++ {
				v := float64(buf.Data[off+c])
				pick.Mean[c] += v
				if v < pick.Min[c] {
					pick.Min[c] = v
				}
				if v > pick.Max[c] {
					pick.Max[c] = v
				}
			}
		}
	}
	if n > 0 {
		for c := 0; c < 4; c++ {
			pick.Mean[c] /= float64(n)
		}
	}
	return pick
}
