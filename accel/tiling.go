package accel

import "github.com/rawpipe/pixelpipe"

// bytesPerPixel matches pixelpipe.Buffer's row-major float32x4 layout.
const bytesPerPixel = 4 * 4

// fits reports whether an output ROI, inflated by tiling's memory
// multiplier and fixed overhead, stays within budget bytes, and whether
// either of the ROI's dimensions exceeds tiling's hard cap.
//
// Grounded on gpucore/pipeline.go's tile-column/row/count computation
// (NewHybridPipeline), generalized from "how many screen tiles cover this
// viewport" to "does this one region fit the device's memory budget".
func fits(budget int64, roi pixelpipe.ROI, tiling pixelpipe.Tiling) bool {
	if budget <= 0 {
		return false
	}
	if tiling.MaxBuf > 0 && (roi.Width > tiling.MaxBuf || roi.Height > tiling.MaxBuf) {
		return false
	}
	factor := tiling.Factor
	if factor < 1 {
		factor = 1
	}
	need := float64(roi.Width) * float64(roi.Height) * bytesPerPixel * factor
	need += float64(tiling.Overhead)
	return need <= float64(budget)
}
