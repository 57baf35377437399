package pixelpipe

import (
	"math"
	"testing"
)

func TestDrawResamplerIdentityOnConstantBuffer(t *testing.T) {
	roi := ROI{X: 0, Y: 0, Width: 16, Height: 16, Scale: 1}
	input := &Buffer{Data: make([]float32, roi.Width*roi.Height*4), ROI: roi}
	for i := 0; i < len(input.Data); i += 4 {
		input.Data[i+0] = 0.25
		input.Data[i+1] = 0.5
		input.Data[i+2] = 0.75
		input.Data[i+3] = 1.0
	}

	out, err := (drawResampler{}).Resample(input, roi)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if out.ROI.Width != roi.Width || out.ROI.Height != roi.Height {
		t.Fatalf("output ROI = %+v, want %+v", out.ROI, roi)
	}

	const tol = 1e-3
	want := []float32{0.25, 0.5, 0.75, 1.0}
	for i := 0; i < len(out.Data); i += 4 {
		for c := 0; c < 4; c++ {
			if math.Abs(float64(out.Data[i+c]-want[c])) > tol {
				t.Fatalf("pixel %d channel %d = %v, want ~%v", i/4, c, out.Data[i+c], want[c])
			}
		}
	}
}

func TestFloatBufferToNRGBA64ClampsOutOfRangeValues(t *testing.T) {
	roi := ROI{Width: 1, Height: 1, Scale: 1}
	buf := &Buffer{Data: []float32{-1, 2, 0.5, 1}, ROI: roi}
	img := floatBufferToNRGBA64(buf)
	px := img.NRGBA64At(0, 0)
	if px.R != 0 {
		t.Errorf("R = %d, want 0 after clamping -1", px.R)
	}
	if px.G != 65535 {
		t.Errorf("G = %d, want 65535 after clamping 2.0", px.G)
	}
}

func TestClamp01(t *testing.T) {
	if got := clamp01(-0.5); got != 0 {
		t.Errorf("clamp01(-0.5) = %v, want 0", got)
	}
	if got := clamp01(1.5); got != 1 {
		t.Errorf("clamp01(1.5) = %v, want 1", got)
	}
	if got := clamp01(0.5); got != 0.5 {
		t.Errorf("clamp01(0.5) = %v, want 0.5", got)
	}
}
