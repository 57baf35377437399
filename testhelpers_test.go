package pixelpipe

import "errors"

// fakeModule is a minimal, configurable Module used across the root
// package's tests in place of a real raw-pipeline operator.
type fakeModule struct {
	op     string
	flags  Flags
	tags   OperationTags
	filter OperationTags
	tiling Tiling

	processFn func(p *Piece, input, output *Buffer, roiIn, roiOut ROI) error
	commitFn  func(p *Piece, params, blendParams []byte)
	modifyIn  func(p *Piece, roiOut ROI) ROI
	modifyOut func(p *Piece, roiIn ROI) ROI
}

var _ Module = (*fakeModule)(nil)

func (m *fakeModule) Op() string                         { return m.op }
func (m *fakeModule) Name() string                       { return m.op }
func (m *fakeModule) Flags() Flags                       { return m.flags }
func (m *fakeModule) OperationTags() OperationTags       { return m.tags }
func (m *fakeModule) OperationTagsFilter() OperationTags { return m.filter }

func (m *fakeModule) ModifyROIIn(p *Piece, roiOut ROI) ROI {
	if m.modifyIn != nil {
		return m.modifyIn(p, roiOut)
	}
	return roiOut
}

func (m *fakeModule) ModifyROIOut(p *Piece, roiIn ROI) ROI {
	if m.modifyOut != nil {
		return m.modifyOut(p, roiIn)
	}
	return roiIn
}

func (m *fakeModule) OutputBPP(pipe *Pipe, p *Piece) int { return 16 }

func (m *fakeModule) TilingCallback(p *Piece, roiIn, roiOut ROI) Tiling { return m.tiling }

func (m *fakeModule) Process(p *Piece, input, output *Buffer, roiIn, roiOut ROI) error {
	if m.processFn != nil {
		return m.processFn(p, input, output, roiIn, roiOut)
	}
	copy(output.Data, input.Data)
	return nil
}

func (m *fakeModule) CommitParams(p *Piece, params, blendParams []byte) {
	if m.commitFn != nil {
		m.commitFn(p, params, blendParams)
	}
}

func (m *fakeModule) CleanupPipe(pipe *Pipe, p *Piece) {}

// addOneModule is a fakeModule whose Process adds 1 to every channel,
// distinguishing its output from a bare passthrough in tests.
func addOneModule(op string) *fakeModule {
	return &fakeModule{
		op: op,
		processFn: func(p *Piece, input, output *Buffer, roiIn, roiOut ROI) error {
			for i := range output.Data {
				output.Data[i] = input.Data[i] + 1
			}
			return nil
		},
	}
}

// fakeDevBuf is the opaque device-memory handle fakeAccelerator hands back;
// it carries its own backing slice so CLCapable implementations under test
// can assert they operated on device (not host) memory.
type fakeDevBuf struct {
	data []float32
	roi  ROI
}

// fakeAccelerator is a minimal in-memory stand-in for Accelerator, letting
// tests drive the accelerated path without a real device.
type fakeAccelerator struct {
	devID    int
	lockHeld bool
	fitsVal  bool

	copyToDeviceErr error
	allocErr        error
	copyToHostErr   error
	flushErr        error

	copyToDeviceCalls int
	allocCalls        int
	releaseCalls      int
	flushCalls        int
}

var _ Accelerator = (*fakeAccelerator)(nil)

func (a *fakeAccelerator) AcquireDeviceLock(pipeType PipeType) (int, bool) {
	if a.lockHeld {
		return 0, false
	}
	a.lockHeld = true
	return a.devID, true
}

func (a *fakeAccelerator) ReleaseDeviceLock(devID int) { a.lockHeld = false }

func (a *fakeAccelerator) Fits(devID int, roiOut ROI, tiling Tiling) bool { return a.fitsVal }

func (a *fakeAccelerator) CopyToDevice(devID int, host *Buffer) (any, error) {
	a.copyToDeviceCalls++
	if a.copyToDeviceErr != nil {
		return nil, a.copyToDeviceErr
	}
	data := make([]float32, len(host.Data))
	copy(data, host.Data)
	return &fakeDevBuf{data: data, roi: host.ROI}, nil
}

func (a *fakeAccelerator) AllocDevice(devID int, roi ROI) (any, error) {
	a.allocCalls++
	if a.allocErr != nil {
		return nil, a.allocErr
	}
	return &fakeDevBuf{data: make([]float32, roi.Width*roi.Height*4), roi: roi}, nil
}

func (a *fakeAccelerator) CopyToHost(devID int, handle any, roi ROI) (*Buffer, error) {
	if a.copyToHostErr != nil {
		return nil, a.copyToHostErr
	}
	buf := handle.(*fakeDevBuf)
	out := make([]float32, len(buf.data))
	copy(out, buf.data)
	return &Buffer{Data: out, ROI: roi}, nil
}

func (a *fakeAccelerator) ReleaseDevice(devID int, handle any) { a.releaseCalls++ }

// FlushEvents reports flushErr only on its first invocation — like a real
// device queue, once the late failure has been drained and observed there is
// nothing left queued to fail again.
func (a *fakeAccelerator) FlushEvents(devID int) error {
	a.flushCalls++
	if a.flushCalls == 1 {
		return a.flushErr
	}
	return nil
}

// accelModule is a fakeModule that also implements CLCapable, operating on
// the device handles fakeAccelerator hands it. failFirstN lets a test make
// the kernel fail on its first N invocations before succeeding.
type accelModule struct {
	fakeModule
	failFirstN     int
	processCLCalls int
	addend         float32
	blendCLCalls   int
}

var _ CLCapable = (*accelModule)(nil)

func (m *accelModule) ProcessCL(p *Piece, devIn, devOut any, roiIn, roiOut ROI) error {
	m.processCLCalls++
	if m.processCLCalls <= m.failFirstN {
		return errors.New("accelerator kernel failure")
	}
	in := devIn.(*fakeDevBuf)
	out := devOut.(*fakeDevBuf)
	for i := range out.data {
		out.data[i] = in.data[i] + m.addend
	}
	return nil
}

// accelBlendModule additionally implements BlendOpCL, doubling output on
// the device buffer — tests that want BlendOpCL use this instead of
// accelModule, since Go can't conditionally satisfy an interface at runtime.
type accelBlendModule struct {
	accelModule
}

var _ BlendOpCL = (*accelBlendModule)(nil)

func (m *accelBlendModule) BlendProcessCL(p *Piece, devIn, devOut any, roiIn, roiOut ROI) error {
	m.blendCLCalls++
	out := devOut.(*fakeDevBuf)
	for i := range out.data {
		out.data[i] *= 2
	}
	return nil
}

// singleNodePipe builds a Pipe and NodeList containing exactly one module,
// wired to an Engine, with input pre-filled to the given constant value.
func singleNodePipe(e *Engine, m Module, width, height int, fill float32) *Pipe {
	p := e.NewPipe(Full, 1, 1, width, height, 1.0, width*height*4, []Module{m})
	data := make([]float32, width*height*4)
	for i := range data {
		data[i] = fill
	}
	p.Input = &Buffer{Data: data, ROI: FullImage(width, height)}
	node := p.Nodes.Nodes()[0]
	p.Nodes.CommitParams(node, nil, nil, true)
	return p
}
