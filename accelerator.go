package pixelpipe

// Accelerator is the contract the recursive processor consumes from an
// off-CPU executor (spec §6 "Accelerator contract"). The core never
// constructs a concrete backend; callers wire one in via EngineOption, and
// package accel supplies wgpu- and Vulkan-backed implementations.
//
// Grounded on accelerator.go's GPUAccelerator interface +
// RegisterAccelerator/accelMu sync.RWMutex singleton-registration pattern,
// generalized from "2-D path rendering ops" to "process/tiled process/blend".
type Accelerator interface {
	// AcquireDeviceLock attempts to bind devID for pipeType, returning false
	// if another pipe already holds the device (spec §5 "the device lock is
	// held for the duration of one process call").
	AcquireDeviceLock(pipeType PipeType) (devID int, ok bool)
	ReleaseDeviceLock(devID int)

	// Fits reports whether roiOut, given tiling, fits the device's memory
	// budget without tiling.
	Fits(devID int, roiOut ROI, tiling Tiling) bool

	// CopyToDevice uploads host into a device buffer, allocating one if
	// needed, returning an opaque device buffer handle.
	CopyToDevice(devID int, host *Buffer) (handle any, err error)
	// AllocDevice allocates an uninitialised device output buffer sized for
	// roi.
	AllocDevice(devID int, roi ROI) (handle any, err error)
	// CopyToHost downloads a device buffer back into a host Buffer.
	CopyToHost(devID int, handle any, roi ROI) (*Buffer, error)
	// ReleaseDevice frees a device buffer handle.
	ReleaseDevice(devID int, handle any)

	// FlushEvents drains the accelerator's event queue, returning a non-nil
	// error if any queued submission reported a late failure (spec §6
	// "event tracking with a flush call returning non-zero on error",
	// §4.8 step 3 "drain the accelerator event queue to detect late errors").
	FlushEvents(devID int) error
}
