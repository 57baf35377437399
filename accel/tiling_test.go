package accel

import (
	"testing"

	"github.com/rawpipe/pixelpipe"
)

func TestFitsRejectsNonPositiveBudget(t *testing.T) {
	roi := pixelpipe.ROI{Width: 10, Height: 10, Scale: 1.0}
	if fits(0, roi, pixelpipe.Tiling{}) {
		t.Fatal("a zero budget should never fit")
	}
	if fits(-1, roi, pixelpipe.Tiling{}) {
		t.Fatal("a negative budget should never fit")
	}
}

func TestFitsWithinBudgetNoTiling(t *testing.T) {
	roi := pixelpipe.ROI{Width: 4, Height: 4, Scale: 1.0}
	need := int64(4 * 4 * bytesPerPixel)
	if !fits(need, roi, pixelpipe.Tiling{}) {
		t.Fatal("a buffer exactly at budget with factor 0 (treated as 1) should fit")
	}
	if fits(need-1, roi, pixelpipe.Tiling{}) {
		t.Fatal("a budget one byte short should not fit")
	}
}

func TestFitsScalesByTilingFactor(t *testing.T) {
	roi := pixelpipe.ROI{Width: 4, Height: 4, Scale: 1.0}
	single := int64(4 * 4 * bytesPerPixel)

	if !fits(single*3, roi, pixelpipe.Tiling{Factor: 3}) {
		t.Fatal("budget covering exactly factor*single-buffer should fit")
	}
	if fits(single*3-1, roi, pixelpipe.Tiling{Factor: 3}) {
		t.Fatal("budget one byte short of factor*single-buffer should not fit")
	}
}

func TestFitsAddsFixedOverhead(t *testing.T) {
	roi := pixelpipe.ROI{Width: 4, Height: 4, Scale: 1.0}
	single := int64(4 * 4 * bytesPerPixel)

	if fits(single, roi, pixelpipe.Tiling{Overhead: 1}) {
		t.Fatal("overhead should push a borderline buffer over budget")
	}
	if !fits(single+1, roi, pixelpipe.Tiling{Overhead: 1}) {
		t.Fatal("budget covering buffer plus overhead should fit")
	}
}

func TestFitsEnforcesMaxBufHardCap(t *testing.T) {
	roi := pixelpipe.ROI{Width: 100, Height: 4, Scale: 1.0}
	// Budget is generous, but MaxBuf caps a single dimension regardless.
	if fits(1<<30, roi, pixelpipe.Tiling{MaxBuf: 50}) {
		t.Fatal("a width exceeding MaxBuf should never fit, regardless of budget")
	}

	roiTall := pixelpipe.ROI{Width: 4, Height: 100, Scale: 1.0}
	if fits(1<<30, roiTall, pixelpipe.Tiling{MaxBuf: 50}) {
		t.Fatal("a height exceeding MaxBuf should never fit, regardless of budget")
	}

	roiOK := pixelpipe.ROI{Width: 50, Height: 50, Scale: 1.0}
	need := int64(50 * 50 * bytesPerPixel)
	if !fits(need, roiOK, pixelpipe.Tiling{MaxBuf: 50}) {
		t.Fatal("dimensions exactly at MaxBuf should be allowed")
	}
}

func TestFitsZeroMaxBufIsUnbounded(t *testing.T) {
	roi := pixelpipe.ROI{Width: 10000, Height: 10000, Scale: 1.0}
	need := int64(10000) * 10000 * bytesPerPixel
	if !fits(need, roi, pixelpipe.Tiling{MaxBuf: 0}) {
		t.Fatal("MaxBuf of 0 means unbounded, so only the byte budget should matter")
	}
}
