package pixelpipe

import (
	"errors"
	"fmt"
)

// Sentinel errors returned from process_rec and the outer driver (spec §7).
var (
	// ErrAborted means a suspension point observed shutdown, a reload flag,
	// or a breakpoint. It is surfaced immediately and never retried.
	ErrAborted = errors.New("pixelpipe: processing aborted")

	// ErrAcceleratorTransient means buffer allocation, host/device copy, or
	// kernel invocation failed. The outer driver restarts the pipe once
	// with the accelerator disabled.
	ErrAcceleratorTransient = errors.New("pixelpipe: accelerator operation failed")

	// ErrAcceleratorFatal names a late error detected draining the
	// accelerator's event queue. Process does not return it: the driver
	// handles a late error in place by restarting CPU-only and keeping this
	// pipe CPU-only until the caller calls EnableAccelerator.
	ErrAcceleratorFatal = errors.New("pixelpipe: accelerator reported a late error")

	// ErrInvalidState means a hash mismatch between expected and produced
	// buffer sizes, or a corrupted persistent shape record. Fatal to the
	// current call; the caller may recover by reloading shapes.
	ErrInvalidState = errors.New("pixelpipe: invalid pipeline state")
)

// AcceleratorError wraps ErrAcceleratorTransient (see newAcceleratorError)
// with the stage that failed, so logging and tests can report where in the
// accelerator path (§4.7 step 7) the failure occurred.
type AcceleratorError struct {
	Stage string // e.g. "alloc", "copy-to-device", "kernel", "copy-to-host"
	Err   error
}

func (e *AcceleratorError) Error() string {
	return fmt.Sprintf("pixelpipe: accelerator %s failed: %v", e.Stage, e.Err)
}

func (e *AcceleratorError) Unwrap() error { return e.Err }

// newAcceleratorError wraps err as a transient accelerator failure at the
// named stage.
func newAcceleratorError(stage string, err error) error {
	return &AcceleratorError{Stage: stage, Err: errors.Join(ErrAcceleratorTransient, err)}
}
