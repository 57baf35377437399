package accel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"
	"github.com/gogpu/wgpu/types"

	"github.com/rawpipe/pixelpipe"
)

// WGPUBackend is the primary accelerator backend: a single wgpu device
// exposing compute-only buffer alloc/copy/flush to Manager. Modules
// implementing pixelpipe.CLCapable hold their own compiled pipelines; this
// backend only owns the device, queue, and the raw storage buffers moved
// across the host/device boundary.
//
// Grounded on internal/gpu/backend.go's instance/adapter bring-up
// (core.NewInstance, instance.RequestAdapter with
// gputypes.RequestAdapterOptions), backend/wgpu/device.go's
// createDevice/getDeviceQueue helpers (core.RequestDevice,
// core.GetDeviceQueue, types.DeviceDescriptor), and
// backend/native/hal_pipeline_cache.go's pipeline-cache-by-hash pattern,
// reused here as a small shader-module cache keyed by a naga-compiled
// kernel's source hash.
type WGPUBackend struct {
	mu sync.Mutex

	instance *core.Instance
	adapter  core.AdapterID
	device   core.DeviceID
	queue    core.QueueID

	budget int64

	kernels map[uint64]core.ShaderModuleID

	logger atomic.Pointer[slog.Logger]
}

// wgpuBuffer is the opaque device-buffer handle Manager passes back to
// execute.go's CopyToDevice/AllocDevice/CopyToHost/ReleaseDevice calls.
type wgpuBuffer struct {
	id   core.BufferID
	size int
}

// NewWGPUBackend requests a high-performance adapter, creates a compute
// device against it, and reports the device's maximum buffer size as the
// memory budget Manager.Fits checks against.
func NewWGPUBackend() (*WGPUBackend, error) {
	instance := core.NewInstance(&gputypes.InstanceDescriptor{
		Backends: gputypes.BackendsPrimary,
	})

	adapterID, err := instance.RequestAdapter(&gputypes.RequestAdapterOptions{
		PowerPreference: gputypes.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("accel: wgpu: request adapter: %w", err)
	}

	deviceID, err := core.RequestDevice(adapterID, &types.DeviceDescriptor{
		Label:            "pixelpipe-accel",
		RequiredFeatures: nil,
		RequiredLimits:   types.DefaultLimits(),
	})
	if err != nil {
		core.AdapterDrop(adapterID)
		return nil, fmt.Errorf("accel: wgpu: request device: %w", err)
	}

	queueID, err := core.GetDeviceQueue(deviceID)
	if err != nil {
		core.DeviceDrop(deviceID)
		core.AdapterDrop(adapterID)
		return nil, fmt.Errorf("accel: wgpu: get queue: %w", err)
	}

	limits, err := core.GetDeviceLimits(deviceID)
	budget := int64(256 << 20) // 256MiB fallback if the adapter won't report limits
	if err == nil && limits.MaxBufferSize > 0 {
		budget = int64(limits.MaxBufferSize)
	}

	b := &WGPUBackend{
		instance: instance,
		adapter:  adapterID,
		device:   deviceID,
		queue:    queueID,
		budget:   budget,
		kernels:  make(map[uint64]core.ShaderModuleID),
	}
	b.logger.Store(slog.New(discardHandler{}))
	return b, nil
}

func (b *WGPUBackend) SetLogger(l *slog.Logger) {
	if l != nil {
		b.logger.Store(l)
	}
}

func (b *WGPUBackend) Name() string          { return "wgpu" }
func (b *WGPUBackend) DeviceCount() int      { return 1 }
func (b *WGPUBackend) MemoryBudget(int) int64 { return b.budget }

// CopyToDevice uploads host's pixel data into a freshly-created storage
// buffer sized exactly to host.Data, usable as both a compute shader
// binding and a copy source/destination.
func (b *WGPUBackend) CopyToDevice(devID int, host *pixelpipe.Buffer) (any, error) {
	size := len(host.Data) * 4
	bufID, err := core.CreateBuffer(b.device, &types.BufferDescriptor{
		Label: "pixelpipe-input",
		Size:  uint64(size),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("accel: wgpu: create buffer: %w", err)
	}
	if err := core.QueueWriteBuffer(b.queue, bufID, 0, float32sToBytes(host.Data)); err != nil {
		core.BufferDrop(bufID)
		return nil, fmt.Errorf("accel: wgpu: write buffer: %w", err)
	}
	return &wgpuBuffer{id: bufID, size: size}, nil
}

// AllocDevice creates an uninitialised storage buffer sized for roi.
func (b *WGPUBackend) AllocDevice(devID int, roi pixelpipe.ROI) (any, error) {
	size := roi.Width * roi.Height * 4 * 4
	bufID, err := core.CreateBuffer(b.device, &types.BufferDescriptor{
		Label: "pixelpipe-output",
		Size:  uint64(size),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("accel: wgpu: alloc buffer: %w", err)
	}
	return &wgpuBuffer{id: bufID, size: size}, nil
}

// CopyToHost reads handle back into a host Buffer shaped by roi.
func (b *WGPUBackend) CopyToHost(devID int, handle any, roi pixelpipe.ROI) (*pixelpipe.Buffer, error) {
	buf, ok := handle.(*wgpuBuffer)
	if !ok {
		return nil, fmt.Errorf("accel: wgpu: handle is not a device buffer")
	}
	raw, err := core.QueueReadBuffer(b.queue, buf.id, 0, uint64(buf.size))
	if err != nil {
		return nil, fmt.Errorf("accel: wgpu: read buffer: %w", err)
	}
	return &pixelpipe.Buffer{Data: bytesToFloat32s(raw), ROI: roi}, nil
}

func (b *WGPUBackend) ReleaseDevice(devID int, handle any) {
	buf, ok := handle.(*wgpuBuffer)
	if !ok {
		return
	}
	core.BufferDrop(buf.id)
}

// FlushEvents polls the device until every submission has completed,
// surfacing a non-nil error for any that reported a device-lost or
// validation failure (spec §6 "event tracking with a flush call returning
// non-zero on error").
func (b *WGPUBackend) FlushEvents(devID int) error {
	if err := core.DevicePoll(b.device, true); err != nil {
		return fmt.Errorf("accel: wgpu: device poll: %w", err)
	}
	return nil
}

// Close releases the device, adapter, and instance, along with every
// cached shader module.
func (b *WGPUBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, mod := range b.kernels {
		core.ShaderModuleDrop(mod)
	}
	b.kernels = nil
	if err := core.DeviceDrop(b.device); err != nil {
		return fmt.Errorf("accel: wgpu: drop device: %w", err)
	}
	core.AdapterDrop(b.adapter)
	// The instance needs no explicit teardown call in this API.
	b.instance = nil
	return nil
}

// compiledKernel looks up (or compiles and caches) the naga-translated
// shader module for a WGSL source string, keyed by its content hash so
// repeated calls for the same kernel across pipes reuse one compiled
// module (spec §6, grounded on backend/native/hal_pipeline_cache.go's
// hash-keyed pipeline cache).
func (b *WGPUBackend) compiledKernel(ctx context.Context, hash uint64, wgsl string) (core.ShaderModuleID, error) {
	b.mu.Lock()
	if mod, ok := b.kernels[hash]; ok {
		b.mu.Unlock()
		return mod, nil
	}
	b.mu.Unlock()

	mod, err := core.CreateShaderModule(b.device, &types.ShaderModuleDescriptor{
		Label: "pixelpipe-kernel",
		Code:  wgsl,
	})
	if err != nil {
		return core.ShaderModuleID{}, fmt.Errorf("accel: wgpu: compile kernel: %w", err)
	}

	b.mu.Lock()
	b.kernels[hash] = mod
	b.mu.Unlock()
	return mod, nil
}

func float32sToBytes(data []float32) []byte {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
}

func bytesToFloat32s(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	out := make([]float32, len(data)/4)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), len(out)*4), data)
	return out
}
