package pixelpipe

import (
	"sync"
	"sync/atomic"

	"github.com/rawpipe/pixelpipe/cache"
)

// PipeType selects a pipe's role and, through it, its cache capacity and
// accelerator eligibility (spec §3).
type PipeType int

const (
	Full PipeType = iota
	Preview
	Thumbnail
	Export
)

// cacheCapacity returns the fixed pixel-cache entry count for a pipe type
// (spec §3: "5 entries for preview/full, 2 for thumbnail/export").
func (t PipeType) cacheCapacity() int {
	switch t {
	case Full, Preview:
		return 5
	default:
		return 2
	}
}

// Changed is the topology/geometry mutation bitset a Pipe carries between
// Process calls (spec §3).
type Changed uint8

const (
	Unchanged      Changed = 0
	PipeTopChanged Changed = 1 << iota
	PipeSynch
	PipeRemove
	PipeZoomed
)

// Pipe is a stateful rendering context producing one output surface: it
// owns the input buffer (not the pixels themselves — the caller supplies
// those), the module chain's NodeList, the pixel cache, and the published
// backbuf (spec §3 "Pipe").
//
// Grounded on gpucore/pipeline.go's HybridPipeline (sync.Mutex-guarded
// topology + Resize/Destroy lifecycle) and context.go's layered state
// struct shape.
type Pipe struct {
	Type PipeType

	Input         *Buffer
	IWidth        int
	IHeight       int
	IScale        float64
	DownsampledIn bool // true if Input is already a downsampled variant of the source

	Nodes *NodeList

	Changed Changed
	DevID   int // accelerator device id this pipe holds, or -1

	// GUIAttached gates the tap stage (spec §4.7 step 8): histogram and
	// colorpicker sampling only run when a GUI consumer is attached to a
	// preview pipe.
	GUIAttached bool
	// FocusedOp is the currently-focused module's Op, used both for the
	// colorpicker's "is this module focused" test and for
	// OperationTagsFilter masking (spec §4.7 step 1, step 8).
	FocusedOp string

	cache *cache.PixelCache

	backbufMu   sync.Mutex
	backbuf     *Buffer
	backbufHash uint64

	busyMu sync.Mutex

	shutdown atomic.Bool

	// acceleratorEnabled is the user/Fatal-controlled preference, persisted
	// across Process calls (spec §7 AcceleratorFatal: "subsequent process
	// calls on this pipe run CPU-only until the caller re-enables").
	acceleratorEnabled atomic.Bool
	// acceleratorOK is this call's live attempt flag: Process seeds it from
	// acceleratorEnabled once at the start of the call, and a Transient
	// accelerator failure clears it for the remainder of the call (the
	// restart loop never re-arms it) without touching acceleratorEnabled
	// (spec §7 AcceleratorTransient: "the outer driver restarts the pipe
	// once with accelerator disabled").
	acceleratorOK atomic.Bool

	cacheObsolete    atomic.Bool
	processing       atomic.Bool
	processedMaximum [3]float64

	imageID      uint64
	pipeIdentity uint64
}

// NewPipe allocates a Pipe of the given type bound to an (iwidth, iheight)
// source image, with its fixed-capacity pixel cache sized per spec §3.
//
// slabElems is the per-slab element capacity (4 channels * max(w*h) the
// pipe will ever request); callers size it from the largest ROI they plan
// to request at scale 1.0.
func NewPipe(t PipeType, imageID, pipeIdentity uint64, iwidth, iheight int, iscale float64, slabElems int) *Pipe {
	p := &Pipe{
		Type:         t,
		IWidth:       iwidth,
		IHeight:      iheight,
		IScale:       iscale,
		DevID:        -1,
		cache:        cache.New(t.cacheCapacity(), slabElems),
		imageID:      imageID,
		pipeIdentity: pipeIdentity,
	}
	p.acceleratorEnabled.Store(true)
	p.acceleratorOK.Store(true)
	return p
}

// EnableAccelerator re-arms accelerator use after an AcceleratorFatal error
// previously forced this pipe CPU-only (spec §7).
func (p *Pipe) EnableAccelerator()  { p.acceleratorEnabled.Store(true) }
func (p *Pipe) DisableAccelerator() { p.acceleratorEnabled.Store(false) }

// Shutdown sets the pipe's shutdown bit, then acquires busyMu so the call
// only returns once any in-flight Process has observed the bit at its next
// suspension point and released the lock (spec §5 "Shutdown", §8 "Shutdown
// drain").
func (p *Pipe) Shutdown() {
	p.shutdown.Store(true)
	p.busyMu.Lock()
	defer p.busyMu.Unlock()
}

func (p *Pipe) isShuttingDown() bool { return p.shutdown.Load() }

// Backbuf returns the most recently published output buffer, its
// dimensions, and its hash, all observed atomically under backbufMu
// (spec §3 "Backbuf", §4.8 step 6).
func (p *Pipe) Backbuf() (buf *Buffer, hash uint64) {
	p.backbufMu.Lock()
	defer p.backbufMu.Unlock()
	return p.backbuf, p.backbufHash
}

func (p *Pipe) publishBackbuf(buf *Buffer, hash uint64) {
	p.backbufMu.Lock()
	defer p.backbufMu.Unlock()
	p.backbuf = buf
	p.backbufHash = hash
}

// MarkCacheObsolete flags the pipe's cache for a full flush on the next
// Process call (e.g. after an image reload).
func (p *Pipe) MarkCacheObsolete() { p.cacheObsolete.Store(true) }

// DisableAfter transiently disables every node whose operation lies at or
// past op in execution order (spec §4.8 "Disable-after(op)"), returning a
// restore function that re-enables exactly the nodes it disabled.
func (p *Pipe) DisableAfter(op string) (restore func()) {
	return p.disableRange(op, true)
}

// DisableBefore transiently disables every node whose operation lies at or
// before op in execution order (spec §4.8 "Disable-before(op)").
func (p *Pipe) DisableBefore(op string) (restore func()) {
	return p.disableRange(op, false)
}

func (p *Pipe) disableRange(op string, after bool) func() {
	nodes := p.Nodes.Nodes()
	pivot := -1
	for i, n := range nodes {
		if n.Module.Op() == op {
			pivot = i
			break
		}
	}
	if pivot < 0 {
		return func() {}
	}
	type saved struct {
		node    *Node
		enabled bool
	}
	var touched []saved
	for i, n := range nodes {
		inRange := (after && i >= pivot) || (!after && i <= pivot)
		if inRange && n.Piece.Enabled {
			touched = append(touched, saved{n, true})
			n.Piece.Enabled = false
		}
	}
	return func() {
		for _, s := range touched {
			s.node.Piece.Enabled = s.enabled
		}
	}
}
