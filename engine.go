package pixelpipe

import (
	"github.com/rawpipe/pixelpipe/masks"
)

// Engine is the explicit, caller-owned process state (spec §9 "Global
// process state ... model as an explicit Engine value passed through APIs;
// no hidden singleton"): it owns the shape store, the optional accelerator,
// and the signal bus every pipe created from it shares.
//
// Grounded on context.go's NewContext(w, h, ...ContextOption)/
// defaultOptions() functional-options pattern.
type Engine struct {
	Shapes *masks.Store

	accelerator Accelerator
	signals     signalBus

	resampler Resampler

	// Debug gates the post-process NaN/Inf scan (spec §9 supplement,
	// darktable's dt_dev_pixelpipe_process_rec NaN-checker: the scan walks
	// every output pixel, which is too costly to run unconditionally).
	Debug bool
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithAccelerator wires an Accelerator backend into the engine. Pipes
// created from an engine with no accelerator run CPU-only, unconditionally
// falling through at spec §4.7 step 7's "no accelerator" branch.
func WithAccelerator(a Accelerator) EngineOption {
	return func(e *Engine) { e.accelerator = a }
}

// WithResampler overrides the clip-and-zoom resampler used by the base
// case of process_rec (spec §4.7 step 4). The default uses
// golang.org/x/image/draw.
func WithResampler(r Resampler) EngineOption {
	return func(e *Engine) { e.resampler = r }
}

// WithDebug enables the NaN/Inf output scan (spec §4.7 step 9).
func WithDebug(enabled bool) EngineOption {
	return func(e *Engine) { e.Debug = enabled }
}

// NewEngine constructs an Engine with a fresh, empty shape store.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		Shapes:    masks.NewStore(),
		resampler: drawResampler{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnSignal registers h to receive every Signal raised by pipes rendered
// through this engine (spec §6 "Signals raised").
func (e *Engine) OnSignal(h SignalHandler) {
	e.signals.subscribe(h)
}

// NewPipe is a convenience constructor binding the returned Pipe's
// NodeList to modules in order (spec §4.5 "construction").
func (e *Engine) NewPipe(t PipeType, imageID, pipeIdentity uint64, iwidth, iheight int, iscale float64, slabElems int, modules []Module) *Pipe {
	p := NewPipe(t, imageID, pipeIdentity, iwidth, iheight, iscale, slabElems)
	p.Nodes = NewNodeList(modules)
	return p
}
