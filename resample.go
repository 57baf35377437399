package pixelpipe

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Resampler performs the clip-and-zoom resample used by process_rec's base
// case when the requested ROI is neither a zero-copy alias of the whole
// input nor a unity-scale origin shift (spec §4.7 step 4: "Otherwise invoke
// a clip-and-zoom resampler into a freshly allocated cache slab").
type Resampler interface {
	Resample(input *Buffer, roi ROI) (*Buffer, error)
}

// drawResampler is the default Resampler, built on
// golang.org/x/image/draw's CatmullRom kernel — chosen over the stdlib's
// nearest-neighbor-only image/draw.Draw because module outputs are
// continuous-tone float data where a soft kernel avoids aliasing at
// fractional pipe scales.
type drawResampler struct{}

func (drawResampler) Resample(input *Buffer, roi ROI) (*Buffer, error) {
	srcImg := floatBufferToNRGBA64(input)
	dstRect := image.Rect(0, 0, roi.Width, roi.Height)
	dst := image.NewNRGBA64(dstRect)

	srcRect := image.Rect(
		roi.X-input.ROI.X, roi.Y-input.ROI.Y,
		roi.X-input.ROI.X+int(float64(roi.Width)/roi.Scale),
		roi.Y-input.ROI.Y+int(float64(roi.Height)/roi.Scale),
	)
	xdraw.CatmullRom.Scale(dst, dstRect, srcImg, srcRect, draw.Over, nil)

	return nrgba64ToFloatBuffer(dst, roi), nil
}

// floatBufferToNRGBA64 reinterprets a row-major float32x4 buffer as a
// 16-bit-per-channel image so x/image/draw's kernels can operate on it.
// Values are assumed normalised to [0,1] and are clamped before the
// lossy conversion to uint16.
func floatBufferToNRGBA64(b *Buffer) *image.NRGBA64 {
	img := image.NewNRGBA64(image.Rect(0, 0, b.ROI.Width, b.ROI.Height))
	for y := 0; y < b.ROI.Height; y++ {
		for x := 0; x < b.ROI.Width; x++ {
			off := (y*b.ROI.Width + x) * 4
			if off+4 > len(b.Data) {
				continue
			}
			i := img.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				v := clamp01(b.Data[off+c])
				u := uint16(v * 65535)
				img.Pix[i+c*2] = byte(u >> 8)
				img.Pix[i+c*2+1] = byte(u)
			}
		}
	}
	return img
}

func nrgba64ToFloatBuffer(img *image.NRGBA64, roi ROI) *Buffer {
	out := &Buffer{Data: make([]float32, roi.Width*roi.Height*4), ROI: roi}
	for y := 0; y < roi.Height; y++ {
		for x := 0; x < roi.Width; x++ {
			i := img.PixOffset(x, y)
			off := (y*roi.Width + x) * 4
			for c := 0; c < 4; c++ {
				u := uint16(img.Pix[i+c*2])<<8 | uint16(img.Pix[i+c*2+1])
				out.Data[off+c] = float32(u) / 65535
			}
		}
	}
	return out
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
