package pixelpipe

import "github.com/rawpipe/pixelpipe/masks"

// Flags is the module capability bitset (spec §6).
type Flags uint32

const (
	// FlagSupportsBlending means the module participates in the blend
	// stage (spec §4.7 step 7) via a BlendOp.
	FlagSupportsBlending Flags = 1 << iota

	// FlagNoMasks means the module never consults the mask composer,
	// regardless of whether its blend params carry a mask group.
	FlagNoMasks

	// FlagAllowTiling means the module may be split into sub-regions that
	// individually fit in available memory (spec §4.7 step 6).
	FlagAllowTiling

	// FlagPreviewNonAccel means the module must never run on the
	// accelerator when the pipe is the Preview pipe (spec §4.7 step 7).
	FlagPreviewNonAccel
)

// OperationTags is a bitset modules declare for filtering (spec §4.7 step 1:
// "the currently-focused module's operation_tags_filter masks this module's
// operation_tags").
type OperationTags uint32

const (
	TagDistort OperationTags = 1 << iota
	TagColor
	TagTone
	TagEffect
	TagGeometric
)

// Tiling describes the extra memory a module's process call needs beyond
// a single input/output buffer pair, expressed as a multiplicative factor
// plus fixed overhead (spec §4.7 step 6).
type Tiling struct {
	Factor   float64 // multiple of a single input-sized buffer required
	MaxBuf   int     // hard cap on a single buffer dimension, 0 = unbounded
	Overhead int     // fixed bytes independent of image size
}

// combine takes the elementwise max of two tiling requirements, as done
// when folding a module's own tiling_callback with its blend op's
// (spec §4.7 step 6).
func (t Tiling) combine(o Tiling) Tiling {
	out := Tiling{Factor: t.Factor, MaxBuf: t.MaxBuf, Overhead: t.Overhead}
	if o.Factor > out.Factor {
		out.Factor = o.Factor
	}
	if o.MaxBuf == 0 || (out.MaxBuf != 0 && o.MaxBuf > out.MaxBuf) {
		out.MaxBuf = o.MaxBuf
	}
	if o.Overhead > out.Overhead {
		out.Overhead = o.Overhead
	}
	return out
}

// Buffer is a pixel buffer passed through the module contract: a flat
// row-major 4-channel float32 slice plus its ROI.
type Buffer struct {
	Data []float32
	ROI  ROI
}

// Module is a reusable image-processing operator (spec GLOSSARY, §6). The
// core never inspects a module's pixel algorithm — only the contract below.
//
// Optional capabilities (tiled/accelerated execution) are modeled as
// separate interfaces rather than methods with sentinel returns. Their
// presence is not cached: the execution and blend stages type-assert the
// Module on every process_rec call.
type Module interface {
	// Op is the short, stable operation name (e.g. "exposure").
	Op() string
	// Name is the human-displayable name.
	Name() string
	Flags() Flags
	OperationTags() OperationTags
	OperationTagsFilter() OperationTags

	ModifyROIIn(p *Piece, roiOut ROI) ROI
	ModifyROIOut(p *Piece, roiIn ROI) ROI
	OutputBPP(pipe *Pipe, p *Piece) int
	TilingCallback(p *Piece, roiIn, roiOut ROI) Tiling

	Process(p *Piece, input, output *Buffer, roiIn, roiOut ROI) error

	CommitParams(p *Piece, params, blendParams []byte)
	CleanupPipe(pipe *Pipe, p *Piece)
}

// Tileable is implemented by modules that support process_tiling
// (spec §6, optional method).
type Tileable interface {
	ProcessTiling(p *Piece, input, output *Buffer, roiIn, roiOut ROI) error
}

// CLCapable is implemented by modules with an accelerator implementation
// (spec §6 `process_cl`, optional method). devIn/devOut are the opaque
// device-memory handles the accelerator path already copied input into and
// allocated for output — mirroring the original's cl_mem-typed process_cl,
// not host Buffers, since by this point pixel data already lives on the
// device.
type CLCapable interface {
	ProcessCL(p *Piece, devIn, devOut any, roiIn, roiOut ROI) error
}

// TilingCLCapable is implemented by modules whose accelerator
// implementation also supports tiling (spec §6 `process_tiling_cl`).
type TilingCLCapable interface {
	ProcessTilingCL(p *Piece, input, output *Buffer, roiIn, roiOut ROI) error
}

// BlendOp is the blending operator contract (spec §6): an enabled module
// with FlagSupportsBlending that implements BlendOp has its output run
// through BlendProcess after Process; one that does not implement it gets
// the mask-weighted default blend over its mask group (piece.MaskGroup).
type BlendOp interface {
	BlendProcess(p *Piece, input, output *Buffer, roiIn, roiOut ROI) error
}

// BlendOpCL is the accelerator twin of BlendOp (spec §6), invoked on the
// same device-resident devIn/devOut handles as ProcessCL, immediately after
// it succeeds and before the device buffers are released — the accelerated
// path never round-trips through the host to blend.
type BlendOpCL interface {
	BlendProcessCL(p *Piece, devIn, devOut any, roiIn, roiOut ROI) error
}

// Piece is a module's per-pipe instantiation: committed parameters plus
// transient state used during dimension computation and caching
// (spec §3 "Pipeline node").
type Piece struct {
	Module Module

	Params      []byte
	BlendParams []byte
	MaskGroup   *masks.Shape // the module's mask group, or nil (FlagNoMasks / no mask)

	Enabled bool
	Hash    uint64 // folds Params+BlendParams, feeds the cache key (spec §4.1, §4.5)

	ProcessCLReady bool // does Module implement CLCapable? Not set or read by the core.
	TilingReady    bool // does Module implement Tileable? Not set or read by the core.

	BufIn, BufOut ROI // recorded by get_dimensions for overlay rendering (spec §4.6)

	ProcessedMaximum [3]float64 // restored on cache hit (spec §4.7 step 2, step 11)

	// Tap requests, consulted only when the owning pipe is the preview pipe
	// and a GUI is attached (spec §4.7 step 8).
	RequestColorPick bool
	RequestHistogram bool
	PickBox          PickBox
	HistogramSpace   ColorSpace

	// Results of the most recent tap stage.
	PickedColor       ColorPick // sampled from the module's input
	PickedOutputColor ColorPick // sampled from the module's output
}
