package pixelpipe

import "errors"

// Process is the outer driver (spec §4.8): it resolves (x,y,w,h,scale) into
// the root ROI, walks the node list tail-first via processRec, publishes the
// result to backbuf, and restarts once, CPU-only, if the accelerator path
// failed transiently.
func (p *Pipe) Process(e *Engine, x, y, w, h int, scale float64) error {
	p.busyMu.Lock()
	defer p.busyMu.Unlock()

	if p.isShuttingDown() {
		return ErrAborted
	}

	p.processing.Store(true)
	defer p.processing.Store(false)

	roi := ROI{X: x, Y: y, Width: w, Height: h, Scale: scale}
	p.processedMaximum = [3]float64{1, 1, 1}

	if p.cacheObsolete.CompareAndSwap(true, false) {
		p.cache.Flush()
	}

	var devID int
	haveLock := false
	if e.accelerator != nil && p.acceleratorEnabled.Load() {
		if id, ok := e.accelerator.AcquireDeviceLock(p.Type); ok {
			devID, haveLock = id, true
			p.DevID = id
		}
	}
	if haveLock {
		defer func() {
			e.accelerator.ReleaseDeviceLock(devID)
			p.DevID = -1
		}()
	}

	// Seeded once per call: a Transient failure below clears it for the
	// remainder of this call's restart loop, it is never re-armed mid-call
	// (spec §7 AcceleratorTransient: "restarts the pipe once with
	// accelerator disabled").
	p.acceleratorOK.Store(haveLock && p.acceleratorEnabled.Load())

	for {
		buf, err := processRec(e, p, len(p.Nodes.Nodes())-1, roi)
		if err == nil && haveLock {
			if flushErr := e.accelerator.FlushEvents(devID); flushErr != nil {
				// Late error (spec §7 AcceleratorFatal): persists across
				// future Process calls until the caller re-enables.
				p.acceleratorEnabled.Store(false)
				p.acceleratorOK.Store(false)
				p.cache.Flush()
				p.Nodes.Synchronize(Remove, p, len(p.Nodes.history), modulesOf(p.Nodes))
				continue
			}
		}

		if err != nil {
			if errors.Is(err, ErrAcceleratorTransient) {
				// Restart once with the accelerator disabled for the
				// remainder of this call (spec §4.8 step 4).
				p.acceleratorOK.Store(false)
				p.cache.Flush()
				p.Nodes.Synchronize(Remove, p, len(p.Nodes.history), modulesOf(p.Nodes))
				continue
			}
			return err
		}

		hash := cacheKey(p.imageID, roi, p.pipeIdentity, 0, 0)
		p.publishBackbuf(buf, hash)
		return nil
	}
}

func modulesOf(nl *NodeList) []Module {
	nodes := nl.Nodes()
	out := make([]Module, len(nodes))
	for i, n := range nodes {
		out[i] = n.Module
	}
	return out
}
