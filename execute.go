package pixelpipe

// accelOutcome reports what, if anything, the accelerator path did for a
// node, so the caller (processRec's blend stage) knows what's left to do.
type accelOutcome int

const (
	// accelNone means the accelerator was not used; the CPU path ran (or
	// runs next) and owes the node its normal CPU blend.
	accelNone accelOutcome = iota
	// accelBlended means the device kernel ran and, if the module blends,
	// BlendOpCL already ran on the same device buffers — no CPU blend owed.
	accelBlended
	// accelUnblended means the accelerator path ran (direct or tiled) without
	// a device-side blend — a tiled run, or a direct run whose module lacks
	// FlagSupportsBlending or BlendOpCL — so the CPU blend stage still runs.
	accelUnblended
)

// execute performs spec §4.7 step 7's execution selection: try the
// accelerator path when one is wired in, enabled, and the pipe holds a
// device lock; otherwise (or on any condition that forbids it) fall
// through to the CPU path. It reports what's left to do for the blend
// stage that follows (blending itself is not performed here).
func execute(e *Engine, pipe *Pipe, node *Node, input, output *Buffer, roiIn, roiOut ROI, tiling Tiling) (outcome accelOutcome, err error) {
	outcome, attempted, err := tryAccelerator(e, pipe, node, input, output, roiIn, roiOut, tiling)
	if attempted {
		return outcome, err
	}
	return accelNone, executeCPU(node, input, output, roiIn, roiOut, tiling)
}

// tryAccelerator reports (outcome, attempted, err). attempted is false when
// none of the preconditions for accelerator execution hold, signalling the
// caller to silently fall through to CPU — not an error (spec §4.7 step 7
// "Else: no accelerator; fall through").
func tryAccelerator(e *Engine, pipe *Pipe, node *Node, input, output *Buffer, roiIn, roiOut ROI, tiling Tiling) (outcome accelOutcome, attempted bool, err error) {
	if e.accelerator == nil || !pipe.acceleratorOK.Load() || pipe.DevID < 0 {
		return accelNone, false, nil
	}

	previewForbidden := node.Module.Flags()&FlagPreviewNonAccel != 0 && pipe.Type == Preview
	clModule, isCL := node.Module.(CLCapable)
	if !isCL || previewForbidden {
		return accelNone, false, nil
	}

	if e.accelerator.Fits(pipe.DevID, roiOut, tiling) {
		blended, err := runDeviceProcess(e, pipe, node, clModule, node.Piece, input, output, roiIn, roiOut)
		if err != nil {
			return accelNone, true, err
		}
		if blended {
			return accelBlended, true, nil
		}
		return accelUnblended, true, nil
	}

	if tilingCL, ok := node.Module.(TilingCLCapable); ok && node.Module.Flags()&FlagAllowTiling != 0 {
		// The tiled run takes the host-resident input and output buffers as
		// they are; nothing has been copied to the device at this point, so
		// there is no device input to evict. This path never touches device
		// memory, so any blend it owes runs on CPU, same as the plain CPU path.
		if err := tilingCL.ProcessTilingCL(node.Piece, input, output, roiIn, roiOut); err != nil {
			return accelNone, true, acceleratorFailure(pipe, "process-tiling-cl", err)
		}
		return accelUnblended, true, nil
	}

	return accelNone, false, nil
}

// runDeviceProcess copies input to the device, runs the module's kernel,
// and — when the module blends — runs BlendOpCL on the same device buffers
// before they're copied back and released, mirroring process_cl followed by
// blend_process_cl in the original, both operating on device memory. It
// reports whether it performed the blend.
func runDeviceProcess(e *Engine, pipe *Pipe, node *Node, clModule CLCapable, piece *Piece, input, output *Buffer, roiIn, roiOut ROI) (blended bool, err error) {
	devIn, err := e.accelerator.CopyToDevice(pipe.DevID, input)
	if err != nil {
		return false, acceleratorFailure(pipe, "copy-to-device", err)
	}
	devOut, err := e.accelerator.AllocDevice(pipe.DevID, roiOut)
	if err != nil {
		e.accelerator.ReleaseDevice(pipe.DevID, devIn)
		return false, acceleratorFailure(pipe, "alloc", err)
	}

	if err := clModule.ProcessCL(piece, devIn, devOut, roiIn, roiOut); err != nil {
		e.accelerator.ReleaseDevice(pipe.DevID, devIn)
		e.accelerator.ReleaseDevice(pipe.DevID, devOut)
		return false, acceleratorFailure(pipe, "kernel", err)
	}

	if node.Module.Flags()&FlagSupportsBlending != 0 {
		if blendCL, ok := node.Module.(BlendOpCL); ok {
			if err := blendCL.BlendProcessCL(piece, devIn, devOut, roiIn, roiOut); err != nil {
				e.accelerator.ReleaseDevice(pipe.DevID, devIn)
				e.accelerator.ReleaseDevice(pipe.DevID, devOut)
				return false, acceleratorFailure(pipe, "blend-cl", err)
			}
			blended = true
		}
	}

	hostOut, err := e.accelerator.CopyToHost(pipe.DevID, devOut, roiOut)
	e.accelerator.ReleaseDevice(pipe.DevID, devIn)
	e.accelerator.ReleaseDevice(pipe.DevID, devOut)
	if err != nil {
		return false, acceleratorFailure(pipe, "copy-to-host", err)
	}
	copy(output.Data, hostOut.Data)
	return blended, nil
}

// acceleratorFailure marks the pipe's opencl_error state and wraps err so
// the outer driver (spec §4.8 step 4) knows to restart CPU-only.
func acceleratorFailure(pipe *Pipe, stage string, err error) error {
	pipe.acceleratorOK.Store(false)
	logWarn(CategoryOpenCL, "accelerator stage failed, pipe will restart CPU-only", "stage", stage, "error", err)
	return newAcceleratorError(stage, err)
}

func executeCPU(node *Node, input, output *Buffer, roiIn, roiOut ROI, tiling Tiling) error {
	if tiling.Factor > 1 && node.Module.Flags()&FlagAllowTiling != 0 {
		if tileable, ok := node.Module.(Tileable); ok {
			return tileable.ProcessTiling(node.Piece, input, output, roiIn, roiOut)
		}
	}
	return node.Module.Process(node.Piece, input, output, roiIn, roiOut)
}
