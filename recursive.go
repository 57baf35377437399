package pixelpipe

import (
	"math"

	"github.com/rawpipe/pixelpipe/cache"
	"github.com/rawpipe/pixelpipe/masks"
)

// processRec is the recursive demand-driven core (spec §4.7): for the node
// at position in pipe.Nodes, either return cached output or compute it
// (direct, tiled, CPU, or accelerator), then run blending. position == -1
// denotes "no node" — the base case that materialises pipe.Input.
//
// Grounded on backend/native/hal_pipeline_cache.go's GetOrCreate-with-
// fallback shape, and accelerator.go's try-GPU-then-ErrFallbackToCPU
// control flow (spec §9 "control-flow pattern, not exception").
func processRec(e *Engine, pipe *Pipe, position int, outputROI ROI) (*Buffer, error) {
	nodes := pipe.Nodes.Nodes()

	// Step 1: disabled or operation-tag-filtered nodes are transparent
	// pass-throughs; tail-recurse on the predecessor with the same ROI.
	if position >= 0 {
		node := nodes[position]
		if !node.Piece.Enabled || isFilteredByFocus(pipe, nodes, position) {
			return processRec(e, pipe, position-1, outputROI)
		}
	}

	hash := nodeHash(pipe, nodes, position, outputROI)

	// Step 2: cache check.
	if position >= 0 {
		node := nodes[position]
		if buf, ok := lookupCache(pipe, hash, outputROI); ok {
			pipe.processedMaximum = node.Piece.ProcessedMaximum
			runTapStage(e, pipe, node, buf, buf)
			scanForNonFinite(e, node, buf)
			runTerminalStage(e, pipe, nodes, position, buf)
			node.Piece.ProcessedMaximum = pipe.processedMaximum
			return buf, nil
		}
	}

	// Step 3: abort conditions.
	if pipe.isShuttingDown() {
		return nil, ErrAborted
	}

	// Step 4: base case.
	if position < 0 {
		return baseCase(e, pipe, outputROI)
	}

	// Step 5: recursive case.
	node := nodes[position]
	roiIn := node.Module.ModifyROIIn(node.Piece, outputROI)
	input, err := processRec(e, pipe, position-1, roiIn)
	if err != nil {
		return nil, err
	}

	output := reserveOutput(pipe, node, hash, outputROI)
	node.Piece.BufIn, node.Piece.BufOut = roiIn, outputROI

	// Step 6: tiling requirements.
	tiling := node.Module.TilingCallback(node.Piece, roiIn, outputROI)
	if blendOp, ok := node.Module.(BlendOp); ok {
		if tileableBlend, ok := blendOp.(interface {
			TilingCallback(*Piece, ROI, ROI) Tiling
		}); ok {
			tiling = tiling.combine(tileableBlend.TilingCallback(node.Piece, roiIn, outputROI))
		}
	}

	// Step 7: execution selection (accelerator, with CPU fallback).
	outcome, err := execute(e, pipe, node, input, output, roiIn, outputROI, tiling)
	if err != nil {
		return nil, err
	}

	// A direct device run already blended on device buffers via BlendOpCL
	// (inside runDeviceProcess); anything else still owes a CPU blend pass.
	if outcome != accelBlended {
		maskGroup := resolveMask(e, node)
		applyBlend(node, input, output, maskGroup)
	}

	// Step 8: tap stage.
	runTapStage(e, pipe, node, input, output)

	// Step 9: NaN/Inf detection.
	scanForNonFinite(e, node, output)

	// Step 10: terminal-only processing.
	runTerminalStage(e, pipe, nodes, position, output)

	// Step 11: record processed_maximum for future cache hits.
	node.Piece.ProcessedMaximum = pipe.processedMaximum

	return output, nil
}

func isFilteredByFocus(pipe *Pipe, nodes []*Node, position int) bool {
	if pipe.FocusedOp == "" {
		return false
	}
	focused := (*Node)(nil)
	for _, n := range nodes {
		if n.Module.Op() == pipe.FocusedOp {
			focused = n
			break
		}
	}
	if focused == nil {
		return false
	}
	node := nodes[position]
	return focused.Module.OperationTagsFilter()&node.Module.OperationTags() != 0
}

// nodeHash computes the cache key for position's output at outputROI,
// cumulatively folding the committed piece hash of every node from 0 up to
// and including position as the upstream contribution (spec §4.1 "must
// incorporate every committed parameter of every earlier module"), so a
// change anywhere in the chain invalidates position and everything
// downstream of it, not just its immediate predecessor.
func nodeHash(pipe *Pipe, nodes []*Node, position int, roi ROI) uint64 {
	var upstream uint64
	if position >= 0 {
		pieceHashes := make([]uint64, position+1)
		for i := 0; i <= position; i++ {
			pieceHashes[i] = nodes[i].Piece.Hash
		}
		upstream = foldUpstream(pieceHashes)
	}
	return cacheKey(pipe.imageID, roi, pipe.pipeIdentity, position, upstream)
}

func lookupCache(pipe *Pipe, hash uint64, roi ROI) (*Buffer, bool) {
	var slab cache.Slab
	if !pipe.cache.Get(hash, roi.Width, roi.Height, &slab) {
		return nil, false
	}
	return &Buffer{Data: slab.Data[:roi.Width*roi.Height*4], ROI: roi}, true
}

func reserveOutput(pipe *Pipe, node *Node, hash uint64, roi ROI) *Buffer {
	var slab cache.Slab
	if node.Module.Op() == "gamma" {
		pipe.cache.GetImportant(hash, roi.Width, roi.Height, &slab)
	} else {
		pipe.cache.Get(hash, roi.Width, roi.Height, &slab)
	}
	n := roi.Width * roi.Height * 4
	if n > len(slab.Data) {
		n = len(slab.Data)
	}
	return &Buffer{Data: slab.Data[:n], ROI: roi}
}

// baseCase materialises pipe.Input for outputROI (spec §4.7 step 4).
func baseCase(e *Engine, pipe *Pipe, roi ROI) (*Buffer, error) {
	full := ROI{X: 0, Y: 0, Width: pipe.IWidth, Height: pipe.IHeight, Scale: 1.0}
	if roi.Equal(full) && !pipe.DownsampledIn {
		return pipe.Input, nil
	}
	if roi.Scale == 1.0 {
		return clipCopy(pipe.Input, roi), nil
	}
	return e.resampler.Resample(pipe.Input, roi)
}

// clipCopy copies roi out of input row by row, clamping any portion that
// falls outside input's bounds to the nearest edge pixel, rather than
// reading out of range (spec §4.7 step 4 "memcpy row by row with
// clamping").
func clipCopy(input *Buffer, roi ROI) *Buffer {
	out := &Buffer{Data: make([]float32, roi.Width*roi.Height*4), ROI: roi}
	src := input.ROI
	for y := 0; y < roi.Height; y++ {
		sy := clampInt(roi.Y+y-src.Y, 0, src.Height-1)
		for x := 0; x < roi.Width; x++ {
			sx := clampInt(roi.X+x-src.X, 0, src.Width-1)
			srcOff := (sy*src.Width + sx) * 4
			dstOff := (y*roi.Width + x) * 4
			if srcOff+4 > len(input.Data) {
				continue
			}
			copy(out.Data[dstOff:dstOff+4], input.Data[srcOff:srcOff+4])
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// resolveMask rasterizes and composes node's mask group, returning nil if
// the module declares FlagNoMasks or carries no group.
func resolveMask(e *Engine, node *Node) *masks.Mask {
	if node.Module.Flags()&FlagNoMasks != 0 || node.Piece.MaskGroup == nil {
		return nil
	}
	group := node.Piece.MaskGroup
	rasterize := func(shapeID uint64) *masks.Mask {
		shape, ok := e.Shapes.Get(shapeID)
		if !ok {
			return nil
		}
		return rasterizeShape(e, shape, node)
	}
	return masks.Compose(group, e.Shapes, rasterize)
}

func rasterizeShape(e *Engine, shape *masks.Shape, node *Node) *masks.Mask {
	roi := node.Piece.BufOut
	iw, ih := float64(roi.Width), float64(roi.Height)
	switch shape.Variant {
	case masks.VariantCircle:
		return masks.MaskCircle(shape, iw, ih, roi.Scale, 1.0)
	case masks.VariantPath:
		return masks.MaskPath(shape, iw, ih, roi.Scale, 1.0)
	case masks.VariantGroup:
		rasterize := func(shapeID uint64) *masks.Mask {
			child, ok := e.Shapes.Get(shapeID)
			if !ok {
				return nil
			}
			return rasterizeShape(e, child, node)
		}
		return masks.Compose(shape, e.Shapes, rasterize)
	default:
		return nil
	}
}

// applyBlend runs the CPU blend stage: a module-specific BlendOp when one is
// implemented, else the mask-weighted defaultBlend. A direct accelerated run
// whose module implements BlendOpCL never reaches this — its blend already
// ran on device buffers inside runDeviceProcess, before they were released.
func applyBlend(node *Node, input, output *Buffer, mask *masks.Mask) {
	if node.Module.Flags()&FlagSupportsBlending == 0 {
		return
	}
	if blendOp, ok := node.Module.(BlendOp); ok {
		_ = blendOp.BlendProcess(node.Piece, input, output, input.ROI, output.ROI)
		return
	}
	defaultBlend(input, output, mask)
}

func runTapStage(e *Engine, pipe *Pipe, node *Node, input, output *Buffer) {
	if pipe.Type != Preview || !pipe.GUIAttached {
		return
	}
	if node.Module.Op() == pipe.FocusedOp && node.Piece.RequestColorPick {
		node.Piece.PickedColor = samplePick(input, node.Piece.PickBox)
		node.Piece.PickedOutputColor = samplePick(output, node.Piece.PickBox)
	}
	if node.Piece.RequestHistogram {
		var h Histogram
		collectHistogram(&h, output, node.Piece.HistogramSpace)
	}
}

// scanForNonFinite is spec §9's debug-gated NaN/Inf scan (supplemented from
// the original source, darktable's pixelpipe NaN checker): walks the output
// buffer and logs per-channel min/max only when Engine.Debug is set, since
// the full scan is too costly to run unconditionally.
func scanForNonFinite(e *Engine, node *Node, buf *Buffer) {
	if !e.Debug {
		return
	}
	var min, max [4]float64
	for c := range min {
		min[c], max[c] = math.Inf(1), math.Inf(-1)
	}
	nonFinite := 0
	for i, v := range buf.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			nonFinite++
			continue
		}
		c := i % 4
		if f < min[c] {
			min[c] = f
		}
		if f > max[c] {
			max[c] = f
		}
	}
	if nonFinite > 0 {
		logWarn(CategoryNan, "non-finite pixels in module output", "op", node.Module.Op(), "count", nonFinite)
	}
	logDebug(CategoryNan, "output range", "op", node.Module.Op(), "min", min, "max", max)
}

func runTerminalStage(e *Engine, pipe *Pipe, nodes []*Node, position int, output *Buffer) {
	isTerminal := position == len(nodes)-1
	if !isTerminal {
		return
	}
	if pipe.Type == Preview {
		var h Histogram
		collectHistogram(&h, output, ColorSpaceRGB)
		e.signals.emit(PreviewPipeFinished, pipe)
		return
	}
	e.signals.emit(UiPipeFinished, pipe)
}
