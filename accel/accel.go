// Package accel provides accelerator backends implementing
// github.com/rawpipe/pixelpipe's Accelerator contract: buffer allocation,
// host/device copies, and event-queue draining. It never runs a module's
// pixel algorithm itself — that is ProcessCL's job, on the device handles
// this package hands back.
package accel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rawpipe/pixelpipe"
)

// Backend is the narrow, allocator-only contract a concrete device API
// (wgpu, Vulkan, ...) implements. Manager adds device-lock bookkeeping and
// memory-budget checks on top, so backends stay free of pipe-type
// awareness.
//
// Grounded on accelerator.go's GPUAccelerator interface, narrowed from
// "2-D path rendering ops" to the process/copy/flush primitives this spec
// needs.
type Backend interface {
	Name() string
	DeviceCount() int
	MemoryBudget(devID int) int64

	CopyToDevice(devID int, host *pixelpipe.Buffer) (handle any, err error)
	AllocDevice(devID int, roi pixelpipe.ROI) (handle any, err error)
	CopyToHost(devID int, handle any, roi pixelpipe.ROI) (*pixelpipe.Buffer, error)
	ReleaseDevice(devID int, handle any)
	FlushEvents(devID int) error

	Close() error
}

// Manager implements pixelpipe.Accelerator over one Backend, adding a
// per-device busy lock so only one pipe holds a device at a time
// (spec §5 "the device lock is held for the duration of one process
// call").
//
// Grounded on accelerator.go's RegisterAccelerator/accelMu
// sync.RWMutex singleton-registration pattern, generalized from a single
// global accelerator to an explicit Manager instance the caller wires in
// via EngineOption.
type Manager struct {
	mu      sync.Mutex
	backend Backend
	busyBy  map[int]pixelpipe.PipeType

	logger atomic.Pointer[slog.Logger]
}

// NewManager wraps backend in a Manager ready to hand to
// pixelpipe.WithAccelerator.
func NewManager(backend Backend) *Manager {
	m := &Manager{backend: backend, busyBy: make(map[int]pixelpipe.PipeType)}
	m.logger.Store(slog.New(discardHandler{}))
	return m
}

// backendLogger is implemented by backends that want the caller's
// configured logger forwarded to them (WGPUBackend, VulkanBackend).
type backendLogger interface {
	SetLogger(*slog.Logger)
}

// SetLogger gives Manager and its backend the caller's configured logger.
// pixelpipe.SetLogger does not reach a Manager on its own; the caller passes
// the logger here directly.
func (m *Manager) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	m.logger.Store(l)
	if bl, ok := m.backend.(backendLogger); ok {
		bl.SetLogger(l)
	}
}

func (m *Manager) log() *slog.Logger { return m.logger.Load() }

// AcquireDeviceLock binds the first free device to pipeType.
func (m *Manager) AcquireDeviceLock(pipeType pixelpipe.PipeType) (devID int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.backend.DeviceCount()
	for d := 0; d < n; d++ {
		if _, busy := m.busyBy[d]; !busy {
			m.busyBy[d] = pipeType
			return d, true
		}
	}
	return 0, false
}

// ReleaseDeviceLock frees devID for the next caller.
func (m *Manager) ReleaseDeviceLock(devID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.busyBy, devID)
}

// Fits reports whether roiOut, scaled by tiling's memory multiplier, fits
// devID's reported memory budget (spec §4.7 step 6/7).
func (m *Manager) Fits(devID int, roiOut pixelpipe.ROI, tiling pixelpipe.Tiling) bool {
	return fits(m.backend.MemoryBudget(devID), roiOut, tiling)
}

func (m *Manager) CopyToDevice(devID int, host *pixelpipe.Buffer) (any, error) {
	h, err := m.backend.CopyToDevice(devID, host)
	if err != nil {
		m.log().Warn("accel: copy to device failed", "backend", m.backend.Name(), "error", err)
	}
	return h, err
}

func (m *Manager) AllocDevice(devID int, roi pixelpipe.ROI) (any, error) {
	h, err := m.backend.AllocDevice(devID, roi)
	if err != nil {
		m.log().Warn("accel: device alloc failed", "backend", m.backend.Name(), "error", err)
	}
	return h, err
}

func (m *Manager) CopyToHost(devID int, handle any, roi pixelpipe.ROI) (*pixelpipe.Buffer, error) {
	buf, err := m.backend.CopyToHost(devID, handle, roi)
	if err != nil {
		m.log().Warn("accel: copy to host failed", "backend", m.backend.Name(), "error", err)
	}
	return buf, err
}

func (m *Manager) ReleaseDevice(devID int, handle any) {
	m.backend.ReleaseDevice(devID, handle)
}

// FlushEvents drains the backend's submission queue. A non-nil return is
// the late error the outer driver treats as AcceleratorFatal (spec §4.8
// step 3).
func (m *Manager) FlushEvents(devID int) error {
	if err := m.backend.FlushEvents(devID); err != nil {
		m.log().Warn("accel: event queue reported a late error", "backend", m.backend.Name(), "error", err)
		return fmt.Errorf("accel: %s: %w", m.backend.Name(), err)
	}
	return nil
}

// Close releases the backend's device and instance handles. Call once,
// after every pipe holding this Manager has shut down.
func (m *Manager) Close() error { return m.backend.Close() }

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
