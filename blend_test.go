package pixelpipe

import (
	"testing"

	"github.com/rawpipe/pixelpipe/masks"
)

func solidBuffer(roi ROI, v float32) *Buffer {
	data := make([]float32, roi.Width*roi.Height*4)
	for i := range data {
		data[i] = v
	}
	return &Buffer{Data: data, ROI: roi}
}

func TestDefaultBlendNilMaskLeavesOutputUntouched(t *testing.T) {
	roi := ROI{Width: 2, Height: 2, Scale: 1}
	input := solidBuffer(roi, 0)
	output := solidBuffer(roi, 1)
	defaultBlend(input, output, nil)
	for i, v := range output.Data {
		if v != 1 {
			t.Fatalf("output[%d] = %v, want 1 (untouched) with a nil mask", i, v)
		}
	}
}

func TestDefaultBlendZeroAlphaRevertsToInput(t *testing.T) {
	roi := ROI{Width: 2, Height: 2, Scale: 1}
	input := solidBuffer(roi, 0.25)
	output := solidBuffer(roi, 0.75)
	mask := masks.NewMask(0, 0, 2, 2) // all zero alpha

	defaultBlend(input, output, mask)
	for i, v := range output.Data {
		if v != 0.25 {
			t.Fatalf("output[%d] = %v, want input value 0.25 under zero mask alpha", i, v)
		}
	}
}

func TestDefaultBlendFullAlphaKeepsOutput(t *testing.T) {
	roi := ROI{Width: 2, Height: 2, Scale: 1}
	input := solidBuffer(roi, 0.25)
	output := solidBuffer(roi, 0.75)
	mask := masks.NewMask(0, 0, 2, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			mask.Set(x, y, 1)
		}
	}

	defaultBlend(input, output, mask)
	for i, v := range output.Data {
		if v != 0.75 {
			t.Fatalf("output[%d] = %v, want output value 0.75 under full mask alpha", i, v)
		}
	}
}

func TestDefaultBlendPartialAlphaInterpolates(t *testing.T) {
	roi := ROI{Width: 1, Height: 1, Scale: 1}
	input := solidBuffer(roi, 0.0)
	output := solidBuffer(roi, 1.0)
	mask := masks.NewMask(0, 0, 1, 1)
	mask.Set(0, 0, 0.5)

	defaultBlend(input, output, mask)
	for i, v := range output.Data {
		if v != 0.5 {
			t.Fatalf("output[%d] = %v, want 0.5 at half alpha", i, v)
		}
	}
}

func TestApplyBlendSkipsModulesWithoutSupportsBlendingFlag(t *testing.T) {
	roi := ROI{Width: 1, Height: 1, Scale: 1}
	input := solidBuffer(roi, 0)
	output := solidBuffer(roi, 1)
	mod := &fakeModule{op: "noblend", flags: 0}
	node := &Node{Module: mod, Piece: &Piece{Module: mod}}

	applyBlend(node, input, output, nil)
	if output.Data[0] != 1 {
		t.Fatalf("applyBlend should leave output alone when FlagSupportsBlending is unset, got %v", output.Data[0])
	}
}

// blendOpModule implements BlendOp, multiplying output by 3 to make the
// custom-blend path distinguishable from defaultBlend.
type blendOpModule struct {
	fakeModule
	calls int
}

func (m *blendOpModule) BlendProcess(p *Piece, input, output *Buffer, roiIn, roiOut ROI) error {
	m.calls++
	for i := range output.Data {
		output.Data[i] *= 3
	}
	return nil
}

func TestApplyBlendPrefersCustomBlendOpOverDefault(t *testing.T) {
	roi := ROI{Width: 1, Height: 1, Scale: 1}
	input := solidBuffer(roi, 0)
	output := solidBuffer(roi, 1)
	mod := &blendOpModule{fakeModule: fakeModule{op: "custom", flags: FlagSupportsBlending}}
	node := &Node{Module: mod, Piece: &Piece{Module: mod}}

	applyBlend(node, input, output, nil)
	if mod.calls != 1 {
		t.Fatalf("BlendProcess called %d times, want 1", mod.calls)
	}
	if output.Data[0] != 3 {
		t.Fatalf("output[0] = %v, want 3 from the custom BlendOp", output.Data[0])
	}
}
