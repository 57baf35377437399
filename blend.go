package pixelpipe

import "github.com/rawpipe/pixelpipe/masks"

// defaultBlend replaces output with input outside the mask and output
// inside it, weighted per-pixel by the mask's alpha (a Porter-Duff "over"
// of output atop input, modulated by mask instead of output's own alpha
// channel). Used for a module with FlagSupportsBlending that does not
// implement BlendOp (spec §6 "blend_process").
//
// Grounded on internal/blend/blend.go + advanced.go's per-channel
// over/screen-style compositing loops — the min/max/abs-difference
// combinators used by the mask composer (package masks) are the same fuzzy
// operators applied here at the buffer level instead of the mask level.
func defaultBlend(input, output *Buffer, mask *masks.Mask) {
	if mask == nil {
		return
	}
	roi := output.ROI
	for y := 0; y < roi.Height; y++ {
		for x := 0; x < roi.Width; x++ {
			a := mask.At(roi.X+x-mask.X, roi.Y+y-mask.Y)
			if a <= 0 {
				copyPixel(input, output, x, y, roi)
				continue
			}
			if a >= 1 {
				continue
			}
			blendPixel(input, output, x, y, roi, a)
		}
	}
}

func pixelOffset(roi ROI, x, y int) int {
	return (y*roi.Width + x) * 4
}

func copyPixel(input, output *Buffer, x, y int, roi ROI) {
	srcOff := pixelOffset(input.ROI, x, y)
	dstOff := pixelOffset(roi, x, y)
	if srcOff+4 > len(input.Data) || dstOff+4 > len(output.Data) {
		return
	}
	copy(output.Data[dstOff:dstOff+4], input.Data[srcOff:srcOff+4])
}

func blendPixel(input, output *Buffer, x, y int, roi ROI, alpha float64) {
	srcOff := pixelOffset(input.ROI, x, y)
	dstOff := pixelOffset(roi, x, y)
	if srcOff+4 > len(input.Data) || dstOff+4 > len(output.Data) {
		return
	}
	for c := 0; c < 4; c++ {
		in := float64(input.Data[srcOff+c])
		out := float64(output.Data[dstOff+c])
		output.Data[dstOff+c] = float32(in*(1-alpha) + out*alpha)
	}
}
