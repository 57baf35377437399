// Command pixelpipe-bench drives a small synthetic pipeline through
// pixelpipe.Pipe.Process and reports cache and backbuf behavior across
// repeated runs, for sanity-checking a module chain without a GUI host.
package main

import (
	"flag"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/rawpipe/pixelpipe"
)

func main() {
	var (
		width   = flag.Int("width", 256, "synthetic image width")
		height  = flag.Int("height", 256, "synthetic image height")
		runs    = flag.Int("runs", 3, "number of Process calls to issue")
		verbose = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	pixelpipe.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	e := pixelpipe.NewEngine(pixelpipe.WithDebug(*verbose))

	chain := []pixelpipe.Module{
		&exposureModule{stops: 0.5},
		&vignetteModule{strength: 0.3, flags: pixelpipe.FlagSupportsBlending},
	}

	slab := *width * *height * 4
	p := e.NewPipe(pixelpipe.Full, 1, 1, *width, *height, 1.0, slab, chain)

	data := make([]float32, slab)
	for i := range data {
		data[i] = 0.5
	}
	p.Input = &pixelpipe.Buffer{Data: data, ROI: pixelpipe.FullImage(*width, *height)}

	for _, n := range p.Nodes.Nodes() {
		p.Nodes.CommitParams(n, nil, nil, true)
	}

	for i := 0; i < *runs; i++ {
		start := time.Now()
		if err := p.Process(e, 0, 0, *width, *height, 1.0); err != nil {
			log.Fatalf("run %d: process: %v", i, err)
		}
		_, hash := p.Backbuf()
		log.Printf("run %d: backbuf_hash=%d elapsed=%s", i, hash, time.Since(start))
	}
}

// exposureModule is a minimal brightness-stop operator: output = input *
// 2^stops, clamped to the buffer's existing channel layout.
type exposureModule struct {
	stops float64
}

var _ pixelpipe.Module = (*exposureModule)(nil)

func (m *exposureModule) Op() string                         { return "exposure" }
func (m *exposureModule) Name() string                       { return "Exposure" }
func (m *exposureModule) Flags() pixelpipe.Flags             { return 0 }
func (m *exposureModule) OperationTags() pixelpipe.OperationTags { return pixelpipe.TagTone }
func (m *exposureModule) OperationTagsFilter() pixelpipe.OperationTags { return 0 }

func (m *exposureModule) ModifyROIIn(p *pixelpipe.Piece, roiOut pixelpipe.ROI) pixelpipe.ROI {
	return roiOut
}

func (m *exposureModule) ModifyROIOut(p *pixelpipe.Piece, roiIn pixelpipe.ROI) pixelpipe.ROI {
	return roiIn
}

func (m *exposureModule) OutputBPP(pipe *pixelpipe.Pipe, p *pixelpipe.Piece) int { return 16 }

func (m *exposureModule) TilingCallback(p *pixelpipe.Piece, roiIn, roiOut pixelpipe.ROI) pixelpipe.Tiling {
	return pixelpipe.Tiling{Factor: 2}
}

func (m *exposureModule) Process(p *pixelpipe.Piece, input, output *pixelpipe.Buffer, roiIn, roiOut pixelpipe.ROI) error {
	gain := float32(math.Exp2(m.stops))
	for i, v := range input.Data {
		output.Data[i] = v * gain
	}
	return nil
}

func (m *exposureModule) CommitParams(p *pixelpipe.Piece, params, blendParams []byte) {}
func (m *exposureModule) CleanupPipe(pipe *pixelpipe.Pipe, p *pixelpipe.Piece)        {}

// vignetteModule darkens output toward the edges and blends its result back
// with BlendProcess, exercising the blend stage in a CPU-only run.
type vignetteModule struct {
	strength float64
	flags    pixelpipe.Flags
}

var _ pixelpipe.Module = (*vignetteModule)(nil)
var _ pixelpipe.BlendOp = (*vignetteModule)(nil)

func (m *vignetteModule) Op() string                         { return "vignette" }
func (m *vignetteModule) Name() string                       { return "Vignette" }
func (m *vignetteModule) Flags() pixelpipe.Flags             { return m.flags }
func (m *vignetteModule) OperationTags() pixelpipe.OperationTags { return pixelpipe.TagEffect }
func (m *vignetteModule) OperationTagsFilter() pixelpipe.OperationTags { return 0 }

func (m *vignetteModule) ModifyROIIn(p *pixelpipe.Piece, roiOut pixelpipe.ROI) pixelpipe.ROI {
	return roiOut
}

func (m *vignetteModule) ModifyROIOut(p *pixelpipe.Piece, roiIn pixelpipe.ROI) pixelpipe.ROI {
	return roiIn
}

func (m *vignetteModule) OutputBPP(pipe *pixelpipe.Pipe, p *pixelpipe.Piece) int { return 16 }

func (m *vignetteModule) TilingCallback(p *pixelpipe.Piece, roiIn, roiOut pixelpipe.ROI) pixelpipe.Tiling {
	return pixelpipe.Tiling{Factor: 2}
}

func (m *vignetteModule) Process(p *pixelpipe.Piece, input, output *pixelpipe.Buffer, roiIn, roiOut pixelpipe.ROI) error {
	w, h := roiOut.Width, roiOut.Height
	cx, cy := float64(w)/2, float64(h)/2
	maxDist := cx*cx + cy*cy
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			falloff := 1 - m.strength*(dx*dx+dy*dy)/maxDist
			base := (y*w + x) * 4
			for c := 0; c < 4; c++ {
				output.Data[base+c] = input.Data[base+c] * float32(falloff)
			}
		}
	}
	return nil
}

func (m *vignetteModule) BlendProcess(p *pixelpipe.Piece, input, output *pixelpipe.Buffer, roiIn, roiOut pixelpipe.ROI) error {
	for i := range output.Data {
		output.Data[i] = (input.Data[i] + output.Data[i]) / 2
	}
	return nil
}

func (m *vignetteModule) CommitParams(p *pixelpipe.Piece, params, blendParams []byte) {}
func (m *vignetteModule) CleanupPipe(pipe *pixelpipe.Pipe, p *pixelpipe.Piece)        {}
